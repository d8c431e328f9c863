package support

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// AuditEntry is one line of the append-only run log.
type AuditEntry struct {
	TimestampUtc   string         `json:"timestampUtc"`
	RunID          string         `json:"runId"`
	Root           string         `json:"root"`
	DryRun         bool           `json:"dryRun,omitempty"`
	Files          int            `json:"files"`
	Tests          int            `json:"tests"`
	Flagged        int            `json:"flagged"`
	Categories     map[string]int `json:"categories,omitempty"`
	FilesModified  int            `json:"filesModified"`
	Failures       int            `json:"failures,omitempty"`
	DurationMillis int64          `json:"durationMs"`
	Result         string         `json:"result"`
}

// AppendAudit appends entry as a JSON line to the log at path.
func AppendAudit(path string, entry AuditEntry) error {
	if entry.TimestampUtc == "" {
		entry.TimestampUtc = time.Now().UTC().Format(time.RFC3339)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
