package domain

import "strings"

const (
	IssueTypeTest = "Test"
	IssueTypeBug  = "Bug"
)

// ValidIssueType tells if the service accepts the issue type
func ValidIssueType(s string) bool {
	return s == IssueTypeTest || s == IssueTypeBug
}

// CaseRow is one staged ticket row as edited by the operator.
// All fields are free text and optional
type CaseRow struct {
	Summary     string `json:"summary"`
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
	LinkRelates string `json:"link_relates"`
	Assignee    string `json:"assignee"`
	Labels      string `json:"labels"`
	NSOCTeam    string `json:"nsoc_team"`
	Severity    string `json:"severity"`
}

// HasContent tells if any field of the row is non-empty
func (r *CaseRow) HasContent() bool {
	return r.Summary != "" || r.IssueType != "" || r.Description != "" ||
		r.LinkRelates != "" || r.Assignee != "" || r.Labels != "" ||
		r.NSOCTeam != "" || r.Severity != ""
}

// Trimmed returns a copy with all fields space trimmed
func (r *CaseRow) Trimmed() CaseRow {
	return CaseRow{
		Summary:     strings.TrimSpace(r.Summary),
		IssueType:   strings.TrimSpace(r.IssueType),
		Description: strings.TrimSpace(r.Description),
		LinkRelates: strings.TrimSpace(r.LinkRelates),
		Assignee:    strings.TrimSpace(r.Assignee),
		Labels:      strings.TrimSpace(r.Labels),
		NSOCTeam:    strings.TrimSpace(r.NSOCTeam),
		Severity:    strings.TrimSpace(r.Severity),
	}
}

// Token is the persisted Atlassian OAuth record
type Token struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
	CloudID      string `json:"cloudID,omitempty"`
	CloudURL     string `json:"cloudURL,omitempty"`
	OAuthState   string `json:"oauthState,omitempty"`
}

// Auth is a ready to use credential for one Jira call
type Auth struct {
	AccessToken string
	CloudID     string
	CloudURL    string
}
