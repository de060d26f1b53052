package service

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/api"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/airenas/jira-case-importer/internal/jira"
	"github.com/airenas/jira-case-importer/internal/utils"
	"github.com/labstack/echo/v4"
)

func bulkCreate(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer utils.MeasureTime("bulk create", time.Now())
		issueType, err := issueTypeParam(c)
		if err != nil {
			return err
		}
		createLinks := c.QueryParam("create_links") == "true"

		var payload api.CasePayload
		if err := c.Bind(&payload); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode payload")
		}
		rows := jira.FilterNonEmpty(payload.Rows)
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "No non-empty rows to create.")
		}
		if len(rows) > jira.MaxBulkIssues {
			return echo.NewHTTPError(http.StatusBadRequest, "Bulk create supports up to 50 issues per request.")
		}

		ctx := c.Request().Context()
		auth, err := data.Auth.Auth(ctx)
		if err != nil {
			return authError(err)
		}

		updates, keptRows := jira.BuildIssueUpdates(rows, data.Cfg.Fields, issueType)
		if len(updates) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "No valid issues (missing summary?).")
		}

		resp, err := data.Jira.BulkCreate(ctx, auth, updates)
		if err != nil {
			return jiraError(err)
		}

		idxToKey := jira.MapCreatedKeys(resp, len(updates))
		goapp.Log.Info().Int("requested", len(updates)).Int("created", len(idxToKey)).Msg("bulk create done")

		res := &api.BulkCreateResult{Created: createdList(idxToKey), JiraBaseURL: auth.CloudURL}
		if createLinks {
			res.Links = createIssueLinks(c, data, auth, issueType, keptRows, idxToKey)
		}
		return c.JSON(http.StatusOK, res)
	}
}

// createIssueLinks fans out one link call per parsed target of every
// created issue. Calls go sequentially in row order, failures are
// collected, never raised - one bad target must not block the rest
func createIssueLinks(c echo.Context, data *Data, auth *domain.Auth, issueType string,
	keptRows []domain.CaseRow, idxToKey map[int]string) []api.LinkResult {
	linkType := data.Cfg.LinkTypeTest
	if issueType == domain.IssueTypeBug {
		linkType = data.Cfg.LinkTypeBug
	}

	res := []api.LinkResult{}
	for idx, row := range keptRows {
		createdKey := idxToKey[idx]
		if createdKey == "" {
			continue
		}
		for _, toKey := range jira.SplitIssueKeys(row.LinkRelates) {
			lr := data.Jira.CreateLink(c.Request().Context(), auth, linkType, createdKey, toKey)
			if !lr.OK {
				goapp.Log.Warn().Str("from", lr.From).Str("to", lr.To).Str("err", lr.Error).Msg("link failed")
			}
			res = append(res, lr)
		}
	}
	return res
}

func createdList(idxToKey map[int]string) []api.CreatedIssue {
	res := make([]api.CreatedIssue, 0, len(idxToKey))
	for idx, key := range idxToKey {
		res = append(res, api.CreatedIssue{Index: idx, Key: key})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

func jiraError(err error) error {
	var serr *jira.StatusError
	if errors.As(err, &serr) {
		if serr.Code == http.StatusUnauthorized {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized calling Jira: "+serr.Body)
		}
		return echo.NewHTTPError(serr.Code, serr.Body)
	}
	goapp.Log.Error().Err(err).Msg("jira call failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "can't call Jira")
}
