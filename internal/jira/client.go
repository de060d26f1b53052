package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/utils"
)

// StatusError carries an upstream Jira failure back to the caller
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira returned %d: %s", e.Code, e.Body)
}

// Client calls the Jira cloud REST API through the api.atlassian.com gateway
type Client struct {
	httpclient *http.Client
	baseURL    string
	timeout    time.Duration
}

// NewClient creates a Jira REST client. Empty gatewayURL selects the
// Atlassian cloud gateway
func NewClient(gatewayURL string) *Client {
	res := &Client{}
	if gatewayURL == "" {
		gatewayURL = "https://api.atlassian.com"
	}
	res.baseURL = gatewayURL
	res.timeout = time.Second * 60
	res.httpclient = &http.Client{Transport: newTransport()}
	goapp.Log.Info().Str("url", res.baseURL).Msg("Jira client")
	return res
}

func (c *Client) apiURL(auth *domain.Auth, path string) string {
	return fmt.Sprintf("%s/ex/jira/%s/rest/api/3%s", c.baseURL, auth.CloudID, path)
}

// BulkCreate submits up to MaxBulkIssues issue creations in one call.
// Jira reports per element failures inside a 2xx body, transport level
// failures come back as StatusError (401 as ErrUnauthorized)
func (c *Client) BulkCreate(ctx context.Context, auth *domain.Auth, updates []IssueUpdate) (*api.BulkCreateResponse, error) {
	defer utils.MeasureTime("jira bulk create", time.Now())
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()

	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(bulkRequest{IssueUpdates: updates}); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(auth, "/issue/bulk"), b)
	if err != nil {
		return nil, err
	}
	setJSONHeaders(req, auth.AccessToken)
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	defer drainClose(resp)
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	res := &api.BulkCreateResponse{}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	return res, nil
}

// CreateLink makes one directional issue link. Failures are returned as
// data, not errors - one bad target must not break sibling links
func (c *Client) CreateLink(ctx context.Context, auth *domain.Auth, linkType, fromKey, toKey string) api.LinkResult {
	res := api.LinkResult{From: fromKey, To: toKey, LinkType: linkType}
	ctx, cancelF := context.WithTimeout(ctx, time.Second*30)
	defer cancelF()

	body := map[string]any{
		"type":         map[string]any{"name": linkType},
		"inwardIssue":  map[string]any{"key": fromKey},
		"outwardIssue": map[string]any{"key": toKey},
	}
	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(body); err != nil {
		res.Error = err.Error()
		return res
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(auth, "/issueLink"), b)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	setJSONHeaders(req, auth.AccessToken)
	resp, err := c.httpclient.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer drainClose(resp)
	res.Status = resp.StatusCode
	if resp.StatusCode >= 400 {
		bs, _ := io.ReadAll(io.LimitReader(resp.Body, 1000))
		res.Error = string(bs)
		return res
	}
	res.OK = true
	return res
}

// SearchUsers queries Jira user search, trimmed to the fields the UI needs
func (c *Client) SearchUsers(ctx context.Context, auth *domain.Auth, query string) ([]api.UserInfo, error) {
	ctx, cancelF := context.WithTimeout(ctx, time.Second*30)
	defer cancelF()

	u := c.apiURL(auth, "/user/search") + "?" + url.Values{"query": {query}, "maxResults": {"50"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	setJSONHeaders(req, auth.AccessToken)
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	defer drainClose(resp)
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var users []jiraUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	res := make([]api.UserInfo, 0, len(users))
	for _, usr := range users {
		res = append(res, api.UserInfo{AccountID: usr.AccountID, DisplayName: usr.DisplayName,
			EmailAddress: usr.EmailAddress, Active: usr.Active})
	}
	return res, nil
}

type bulkRequest struct {
	IssueUpdates []IssueUpdate `json:"issueUpdates"`
}

type jiraUser struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

func setJSONHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	bs, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
	return &StatusError{Code: resp.StatusCode, Body: string(bs)}
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1000))
	_ = resp.Body.Close()
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 5
	res.MaxIdleConns = 2
	res.MaxIdleConnsPerHost = 2
	res.IdleConnTimeout = 90 * time.Second
	return res
}
