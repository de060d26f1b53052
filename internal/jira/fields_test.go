package jira

import (
	"testing"

	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIssueUpdates(t *testing.T) {
	cfg := FieldConfig{ProjectKey: "NSOC", CFTeam: "customfield_10337", CFSeverity: "customfield_10300"}

	rows := []domain.CaseRow{
		{Summary: " First ", Labels: "a  b", Assignee: "acc-1", NSOCTeam: "blue", Severity: "high"},
		{Labels: "only-labels"}, // kept by the non-empty filter but has no summary
		{Summary: "Second"},
	}

	updates, kept := BuildIssueUpdates(rows, cfg, domain.IssueTypeTest)
	require.Len(t, updates, 2)
	require.Len(t, kept, 2)
	assert.Equal(t, " First ", kept[0].Summary)
	assert.Equal(t, "First", updates[0].Fields["summary"])
	assert.Equal(t, map[string]any{"key": "NSOC"}, updates[0].Fields["project"])
	assert.Equal(t, map[string]any{"name": "Test"}, updates[0].Fields["issuetype"])
	assert.Equal(t, []string{"a", "b"}, updates[0].Fields["labels"])
	assert.Equal(t, map[string]any{"accountId": "acc-1"}, updates[0].Fields["assignee"])
	assert.Equal(t, "blue", updates[0].Fields["customfield_10337"])
	assert.Equal(t, "high", updates[0].Fields["customfield_10300"])

	assert.Equal(t, "Second", updates[1].Fields["summary"])
	_, ok := updates[1].Fields["assignee"]
	assert.False(t, ok)
	assert.Equal(t, []string{}, updates[1].Fields["labels"])
}

func TestBuildIssueUpdates_NoCustomFieldsConfigured(t *testing.T) {
	cfg := FieldConfig{ProjectKey: "NSOC"}
	updates, _ := BuildIssueUpdates([]domain.CaseRow{{Summary: "s", NSOCTeam: "blue", Severity: "high"}}, cfg, domain.IssueTypeBug)
	require.Len(t, updates, 1)
	for k := range updates[0].Fields {
		assert.NotContains(t, k, "customfield")
	}
}

func TestSplitIssueKeys(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"commas", "A-1,B-2", []string{"A-1", "B-2"}},
		{"spaces", "A-1 B-2", []string{"A-1", "B-2"}},
		{"mixed", "A-1, B-2  C-3", []string{"A-1", "B-2", "C-3"}},
		{"duplicates kept", "A-1 A-1", []string{"A-1", "A-1"}},
		{"stray separators", " , A-1 ,, ", []string{"A-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIssueKeys(tt.in))
		})
	}
}

func TestSplitLabels(t *testing.T) {
	assert.Equal(t, []string{}, SplitLabels(""))
	assert.Equal(t, []string{"x"}, SplitLabels(" x "))
	assert.Equal(t, []string{"x", "x", "y"}, SplitLabels("x x\ty"))
}

func TestFilterNonEmpty(t *testing.T) {
	rows := []domain.CaseRow{
		{},
		{Labels: "x"},
		{Summary: "s"},
	}
	got := FilterNonEmpty(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].Labels)
	assert.Equal(t, "s", got[1].Summary)
}
