package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/jira-case-importer/internal/domain"
	"github.com/oklog/ulid/v2"
)

var headers = map[string][]string{
	domain.IssueTypeTest: {"Summary", "Issue Type", "Description", `Link "Relates"`, "Assignee", "Labels", "NSOC_Team", "Severity"},
	domain.IssueTypeBug:  {"Summary", "Issue Type", "Description", `Link "Problem/Incident"`, "Assignee", "Labels", "NSOC_Team", "Severity"},
}

// Writer saves staged rows as downloadable CSV files
type Writer struct {
	dir string
}

// NewWriter creates a CSV writer rooted at dir
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("no export dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	goapp.Log.Info().Str("dir", dir).Msg("CSV export")
	return &Writer{dir: dir}, nil
}

// Save writes rows in Jira CSV import layout, returns the file name
func (w *Writer) Save(issueType string, rows []domain.CaseRow) (string, error) {
	header, ok := headers[issueType]
	if !ok {
		return "", fmt.Errorf("unknown issue type '%s'", issueType)
	}

	name := fmt.Sprintf("%s-ticket-%s-%s.csv", issueType,
		time.Now().Format("20060102-150405"), ulid.Make().String())
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}

	cw := csv.NewWriter(f)
	werr := cw.Write(header)
	for _, r := range rows {
		if werr != nil {
			break
		}
		werr = cw.Write([]string{r.Summary, r.IssueType, r.Description, r.LinkRelates,
			r.Assignee, r.Labels, r.NSOCTeam, r.Severity})
	}
	cw.Flush()
	if werr == nil {
		werr = cw.Error()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", fmt.Errorf("write csv: %w", werr)
	}
	return name, nil
}

// FilePath resolves a previously saved file name, refusing anything
// that would escape the export dir
func (w *Writer) FilePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("bad file name '%s'", name)
	}
	path := filepath.Join(w.dir, name)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return "", fmt.Errorf("file not found")
	}
	return path, nil
}
