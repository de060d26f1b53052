package api

import "github.com/airenas/jira-case-importer/internal/domain"

// CasePayload is the request body carrying staged rows
type CasePayload struct {
	Rows []domain.CaseRow `json:"rows"`
}

// BulkCreateResponse mirrors the Jira bulk issue create response body.
// Successes come back in submission order, failures name the original
// request position only
type BulkCreateResponse struct {
	Issues []BulkIssue `json:"issues"`
	Errors []BulkError `json:"errors"`
}

type BulkIssue struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Self string `json:"self,omitempty"`
}

type BulkError struct {
	Status              int  `json:"status,omitempty"`
	FailedElementNumber *int `json:"failedElementNumber,omitempty"`
	ElementErrors       any  `json:"elementErrors,omitempty"`
}

// CreatedIssue reports one created issue back to the caller
type CreatedIssue struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
}

// LinkResult is the outcome of one issue link creation call
type LinkResult struct {
	OK       bool   `json:"ok"`
	Status   int    `json:"status"`
	From     string `json:"from"`
	To       string `json:"to"`
	LinkType string `json:"type"`
	Error    string `json:"error,omitempty"`
}

// BulkCreateResult is the bulk-create endpoint response
type BulkCreateResult struct {
	Created     []CreatedIssue `json:"created"`
	Links       []LinkResult   `json:"links,omitempty"`
	JiraBaseURL string         `json:"jira_base_url,omitempty"`
}

// OAuthStatus reports the stored connection state
type OAuthStatus struct {
	Connected        bool   `json:"connected"`
	CloudURL         string `json:"cloud_url,omitempty"`
	HasRefreshToken  bool   `json:"has_refresh_token,omitempty"`
	ExpiresInSeconds int64  `json:"expires_in_seconds,omitempty"`
}

// UserInfo is the trimmed Jira user search result
type UserInfo struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
}

// TokenResponse is the auth.atlassian.com token endpoint body
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Resource is one entry of the accessible-resources response
type Resource struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}
