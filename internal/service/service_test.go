package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/db"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/jira"
	"github.com/airenas/jira-case-importer/internal/oauth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAuth struct {
	auth *domain.Auth
	err  error
}

func (a *testAuth) Auth(ctx context.Context) (*domain.Auth, error) {
	return a.auth, a.err
}

type testTracker struct {
	bulkResp    *api.BulkCreateResponse
	bulkErr     error
	bulkCalls   int
	sentUpdates []jira.IssueUpdate
	links       []api.LinkResult
	users       []api.UserInfo
}

func (tr *testTracker) BulkCreate(ctx context.Context, auth *domain.Auth, updates []jira.IssueUpdate) (*api.BulkCreateResponse, error) {
	tr.bulkCalls++
	tr.sentUpdates = updates
	return tr.bulkResp, tr.bulkErr
}

func (tr *testTracker) CreateLink(ctx context.Context, auth *domain.Auth, linkType, fromKey, toKey string) api.LinkResult {
	res := api.LinkResult{OK: toKey != "BAD-1", Status: 201, From: fromKey, To: toKey, LinkType: linkType}
	if !res.OK {
		res.Status = 404
		res.Error = "no such issue"
	}
	tr.links = append(tr.links, res)
	return res
}

func (tr *testTracker) SearchUsers(ctx context.Context, auth *domain.Auth, query string) ([]api.UserInfo, error) {
	return tr.users, nil
}

type testOAuth struct {
	exchangeResp *api.TokenResponse
	resources    []api.Resource
}

func (o *testOAuth) AuthorizeURL(state string) string {
	return "https://auth.example.com/authorize?state=" + state
}

func (o *testOAuth) ExchangeCode(ctx context.Context, code string) (*api.TokenResponse, error) {
	if o.exchangeResp == nil {
		return nil, fmt.Errorf("bad code")
	}
	return o.exchangeResp, nil
}

func (o *testOAuth) AccessibleResources(ctx context.Context, accessToken string) ([]api.Resource, error) {
	return o.resources, nil
}

type testCSV struct {
	saved     []domain.CaseRow
	issueType string
}

func (w *testCSV) Save(issueType string, rows []domain.CaseRow) (string, error) {
	w.issueType = issueType
	w.saved = rows
	return "Test-ticket-x.csv", nil
}

func (w *testCSV) FilePath(name string) (string, error) {
	return "", fmt.Errorf("file not found")
}

func newTestData() (*Data, *testTracker) {
	tracker := &testTracker{}
	store := db.NewMemoryStore()
	return &Data{
		Port:   8000,
		Cases:  store,
		Tokens: store,
		OAuth:  &testOAuth{},
		Auth:   &testAuth{auth: &domain.Auth{AccessToken: "at", CloudID: "cid", CloudURL: "https://x.atlassian.net"}},
		Jira:   tracker,
		CSV:    &testCSV{},
		Cfg: Config{
			FrontendURL:  "http://front",
			SiteURL:      "https://x.atlassian.net",
			Fields:       jira.FieldConfig{ProjectKey: "NSOC", CFTeam: "customfield_10337", CFSeverity: "customfield_10300"},
			LinkTypeTest: "Relates",
			LinkTypeBug:  "Problem/Incident",
		},
		Ctx: context.Background(),
	}, tracker
}

func invoke(data *Data, method, target, body string) *httptest.ResponseRecorder {
	e := initRoutes(data)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func payload(rows ...domain.CaseRow) string {
	bs, _ := json.Marshal(api.CasePayload{Rows: rows})
	return string(bs)
}

func TestLive(t *testing.T) {
	data, _ := newTestData()
	rec := invoke(data, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBulkCreate(t *testing.T) {
	data, tracker := newTestData()
	failedAt := 1
	tracker.bulkResp = &api.BulkCreateResponse{
		Issues: []api.BulkIssue{{Key: "NSOC-1"}, {Key: "NSOC-3"}},
		Errors: []api.BulkError{{FailedElementNumber: &failedAt}},
	}

	rec := invoke(data, http.MethodPost, "/jira/bulk-create?issue_type=Test", payload(
		domain.CaseRow{Summary: "a"},
		domain.CaseRow{Summary: "b"},
		domain.CaseRow{Summary: "c"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res api.BulkCreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []api.CreatedIssue{{Index: 0, Key: "NSOC-1"}, {Index: 2, Key: "NSOC-3"}}, res.Created)
	assert.Equal(t, "https://x.atlassian.net", res.JiraBaseURL)
	assert.Empty(t, res.Links)
	require.Len(t, tracker.sentUpdates, 3)
}

func TestBulkCreate_WithLinks(t *testing.T) {
	data, tracker := newTestData()
	tracker.bulkResp = &api.BulkCreateResponse{
		Issues: []api.BulkIssue{{Key: "NSOC-1"}, {Key: "NSOC-2"}},
	}

	rec := invoke(data, http.MethodPost, "/jira/bulk-create?issue_type=Bug&create_links=true", payload(
		domain.CaseRow{Summary: "a", LinkRelates: "X-1, X-2"},
		domain.CaseRow{Summary: "b", LinkRelates: "BAD-1"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res api.BulkCreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Links, 3)
	assert.Equal(t, "Problem/Incident", res.Links[0].LinkType)
	assert.Equal(t, "NSOC-1", res.Links[0].From)
	assert.Equal(t, "X-1", res.Links[0].To)
	assert.True(t, res.Links[0].OK)
	assert.True(t, res.Links[1].OK)
	// the failed link is reported, the call still succeeds
	assert.False(t, res.Links[2].OK)
	assert.Equal(t, "BAD-1", res.Links[2].To)
}

func TestBulkCreate_SummarylessRowSkipped(t *testing.T) {
	data, tracker := newTestData()
	tracker.bulkResp = &api.BulkCreateResponse{Issues: []api.BulkIssue{{Key: "NSOC-1"}}}

	// labels-only row passes the non-empty filter but can't become a request
	rec := invoke(data, http.MethodPost, "/jira/bulk-create?issue_type=Test&create_links=true", payload(
		domain.CaseRow{Labels: "x", LinkRelates: "X-9"},
		domain.CaseRow{Summary: "a"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, tracker.sentUpdates, 1)

	var res api.BulkCreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []api.CreatedIssue{{Index: 0, Key: "NSOC-1"}}, res.Created)
	assert.Empty(t, res.Links, "dropped row must not contribute links")
}

func TestBulkCreate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"bad issue type", "/jira/bulk-create?issue_type=Story", payload(domain.CaseRow{Summary: "a"}), http.StatusBadRequest},
		{"no rows", "/jira/bulk-create?issue_type=Test", payload(), http.StatusBadRequest},
		{"all empty rows", "/jira/bulk-create?issue_type=Test", payload(domain.CaseRow{}, domain.CaseRow{}), http.StatusBadRequest},
		{"no summaries", "/jira/bulk-create?issue_type=Test", payload(domain.CaseRow{Labels: "x"}), http.StatusBadRequest},
		{"over cap", "/jira/bulk-create?issue_type=Test", payload(manyRows(51)...), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, tracker := newTestData()
			rec := invoke(data, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, 0, tracker.bulkCalls, "no remote call on client error")
		})
	}
}

func TestBulkCreate_CapBoundary(t *testing.T) {
	data, tracker := newTestData()
	tracker.bulkResp = &api.BulkCreateResponse{}
	rec := invoke(data, http.MethodPost, "/jira/bulk-create?issue_type=Test", payload(manyRows(50)...))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, tracker.bulkCalls)
}

func TestBulkCreate_NotConnected(t *testing.T) {
	data, tracker := newTestData()
	data.Auth = &testAuth{err: fmt.Errorf("%w: no stored token", oauth.ErrNotConnected)}
	rec := invoke(data, http.MethodPost, "/jira/bulk-create?issue_type=Test", payload(domain.CaseRow{Summary: "a"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, tracker.bulkCalls)
}

func TestBulkCreate_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"jira 401", &jira.StatusError{Code: 401, Body: "expired"}, http.StatusUnauthorized},
		{"jira 400", &jira.StatusError{Code: 400, Body: "bad field"}, http.StatusBadRequest},
		{"jira 502", &jira.StatusError{Code: 502, Body: "gateway"}, http.StatusBadGateway},
		{"transport", fmt.Errorf("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, tracker := newTestData()
			tracker.bulkErr = tt.err
			rec := invoke(data, http.MethodPost, "/jira/bulk-create?issue_type=Test", payload(domain.CaseRow{Summary: "a"}))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestCases_SaveListClear(t *testing.T) {
	data, _ := newTestData()

	rec := invoke(data, http.MethodPost, "/save-db?issue_type=Test", payload(
		domain.CaseRow{Summary: " a "},
		domain.CaseRow{},
		domain.CaseRow{Labels: "x"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = invoke(data, http.MethodGet, "/cases?issue_type=Test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed api.CasePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Rows, 2)
	assert.Equal(t, "a", listed.Rows[0].Summary, "rows are stored trimmed")

	rec = invoke(data, http.MethodGet, "/cases?issue_type=Bug", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Rows)

	rec = invoke(data, http.MethodDelete, "/cases?issue_type=Test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":2`)
}

func TestCases_SaveRejectsEmpty(t *testing.T) {
	data, _ := newTestData()
	rec := invoke(data, http.MethodPost, "/save-db?issue_type=Test", payload(domain.CaseRow{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveCSV(t *testing.T) {
	data, _ := newTestData()
	rec := invoke(data, http.MethodPost, "/save-csv?issue_type=Test", payload(domain.CaseRow{Summary: "a"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Test-ticket-x.csv")

	csvw := data.CSV.(*testCSV)
	assert.Equal(t, "Test", csvw.issueType)
	require.Len(t, csvw.saved, 1)
}

func TestDownload_NotFound(t *testing.T) {
	data, _ := newTestData()
	rec := invoke(data, http.MethodGet, "/download/nope.csv", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthStatus(t *testing.T) {
	data, _ := newTestData()

	rec := invoke(data, http.MethodGet, "/oauth/atlassian/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connected":false`)

	require.NoError(t, data.Tokens.SaveToken(context.Background(), &domain.Token{
		AccessToken: "at", RefreshToken: "rt",
		ExpiresAt: time.Now().Unix() + 600,
		CloudID:   "cid", CloudURL: "https://x.atlassian.net",
	}))
	rec = invoke(data, http.MethodGet, "/oauth/atlassian/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st api.OAuthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Connected)
	assert.True(t, st.HasRefreshToken)
	assert.Equal(t, "https://x.atlassian.net", st.CloudURL)
	assert.Greater(t, st.ExpiresInSeconds, int64(0))
}

func TestOAuthStartAndCallback(t *testing.T) {
	data, _ := newTestData()
	data.OAuth = &testOAuth{
		exchangeResp: &api.TokenResponse{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600},
		resources: []api.Resource{
			{ID: "other", URL: "https://other.atlassian.net"},
			{ID: "cid", URL: "https://x.atlassian.net"},
		},
	}

	rec := invoke(data, http.MethodGet, "/oauth/atlassian/start", "")
	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	require.Contains(t, loc, "state=")
	state := loc[strings.Index(loc, "state=")+len("state="):]

	rec = invoke(data, http.MethodGet, "/oauth/atlassian/callback?code=c&state="+state, "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://front/index.html?jira=connected", rec.Header().Get("Location"))

	token, err := data.Tokens.GetToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "cid", token.CloudID, "resource matched by site URL, not order")
	assert.Equal(t, "https://x.atlassian.net", token.CloudURL)
}

func TestOAuthCallback_BadState(t *testing.T) {
	data, _ := newTestData()
	rec := invoke(data, http.MethodGet, "/oauth/atlassian/callback?code=c&state=wrong", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=invalid_state")
}

func TestUserSearch(t *testing.T) {
	data, tracker := newTestData()
	tracker.users = []api.UserInfo{{AccountID: "a1", DisplayName: "Jo", Active: true}}

	rec := invoke(data, http.MethodGet, "/jira/user-search?q=jo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accountId":"a1"`)

	rec = invoke(data, http.MethodGet, "/jira/user-search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func manyRows(n int) []domain.CaseRow {
	res := make([]domain.CaseRow, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, domain.CaseRow{Summary: fmt.Sprintf("row %d", i)})
	}
	return res
}
