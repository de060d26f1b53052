package jira

import (
	"strings"

	"github.com/airenas/jira-case-importer/internal/adf"
	"github.com/airenas/jira-case-importer/internal/domain"
)

// MaxBulkIssues is the Jira bulk create limit per request
const MaxBulkIssues = 50

// FieldConfig carries the project level settings for issue field building
type FieldConfig struct {
	ProjectKey string
	CFTeam     string
	CFSeverity string
}

// IssueUpdate is one element of the bulk create request body
type IssueUpdate struct {
	Fields map[string]any `json:"fields"`
	Update map[string]any `json:"update"`
}

// BuildIssueUpdates projects rows into bulk create elements. Rows
// without a non-empty summary cannot become a valid request and are
// dropped, the returned kept rows align one to one with the updates
func BuildIssueUpdates(rows []domain.CaseRow, cfg FieldConfig, issueType string) ([]IssueUpdate, []domain.CaseRow) {
	var updates []IssueUpdate
	var kept []domain.CaseRow
	for _, r := range rows {
		summary := strings.TrimSpace(r.Summary)
		if summary == "" {
			continue
		}

		fields := map[string]any{
			"project":     map[string]any{"key": cfg.ProjectKey},
			"issuetype":   map[string]any{"name": issueType},
			"summary":     summary,
			"description": adf.Compile(r.Description),
			"labels":      SplitLabels(r.Labels),
		}
		if v := strings.TrimSpace(r.Assignee); v != "" {
			fields["assignee"] = map[string]any{"accountId": v}
		}
		if v := strings.TrimSpace(r.NSOCTeam); cfg.CFTeam != "" && v != "" {
			fields[cfg.CFTeam] = v
		}
		if v := strings.TrimSpace(r.Severity); cfg.CFSeverity != "" && v != "" {
			fields[cfg.CFSeverity] = v
		}

		updates = append(updates, IssueUpdate{Fields: fields, Update: map[string]any{}})
		kept = append(kept, r)
	}
	return updates, kept
}

// SplitLabels splits on whitespace, empty tokens dropped, order kept,
// no deduplication
func SplitLabels(s string) []string {
	// non-nil so the field serializes as [] and not null
	return append([]string{}, strings.Fields(s)...)
}

// SplitIssueKeys splits link targets on commas and/or whitespace,
// order kept, no deduplication
func SplitIssueKeys(s string) []string {
	return strings.Fields(strings.ReplaceAll(s, ",", " "))
}

// FilterNonEmpty keeps rows with at least one non-empty field
func FilterNonEmpty(rows []domain.CaseRow) []domain.CaseRow {
	var res []domain.CaseRow
	for _, r := range rows {
		if r.HasContent() {
			res = append(res, r)
		}
	}
	return res
}
