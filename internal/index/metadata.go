// Package index tracks the state of a repository's imported lineage data:
// the import lock and the metadata of the last import.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MetadataVersion is the current version of the metadata format.
	MetadataVersion = 1

	// metadataFile is the filename for import metadata.
	metadataFile = "import-meta.json"

	// staleAfter is how old an import may get when the current head is unknown
	staleAfter = 24 * time.Hour
)

// ImportMeta describes the last import into a data directory.
type ImportMeta struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	RunID     string    `json:"runId"`
	Backend   string    `json:"backend"`
	Ref       string    `json:"ref,omitempty"`
	// LastRevision is the newest integrated revision in text form
	LastRevision string `json:"lastRevision"`
	// Commits counts every commit in the graph, not only this run's
	Commits  int    `json:"commits"`
	Paths    int    `json:"paths"`
	Duration string `json:"duration"`
}

// FreshnessResult describes whether the import covers the current head.
type FreshnessResult struct {
	Fresh            bool
	Reason           string
	ImportedRevision string
	CurrentRevision  string
}

// LoadMeta loads import metadata from the data directory.
// Returns nil without error if no metadata file exists.
func LoadMeta(dataDir string) (*ImportMeta, error) {
	path := filepath.Join(dataDir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import metadata: %w", err)
	}

	var meta ImportMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing import metadata: %w", err)
	}

	// Version mismatch - treat as no metadata
	if meta.Version != MetadataVersion {
		return nil, nil
	}

	return &meta, nil
}

// Save writes import metadata to the data directory.
func (m *ImportMeta) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	m.Version = MetadataVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling import metadata: %w", err)
	}

	path := filepath.Join(dataDir, metadataFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing import metadata: %w", err)
	}

	return nil
}

// CheckFreshness compares the imported revision with currentRevision, the
// backend's newest revision in text form. A bare commit hash matches the
// hash part of a commit revision. An empty currentRevision falls back to
// the age of the import.
func (m *ImportMeta) CheckFreshness(currentRevision string) FreshnessResult {
	if m == nil {
		return FreshnessResult{
			Fresh:  false,
			Reason: "no import metadata found",
		}
	}

	if currentRevision == "" {
		return m.checkTimeFreshness()
	}

	result := FreshnessResult{
		ImportedRevision: m.LastRevision,
		CurrentRevision:  currentRevision,
	}
	if m.LastRevision == currentRevision || strings.HasSuffix(m.LastRevision, ":"+currentRevision) {
		result.Fresh = true
		return result
	}
	result.Reason = fmt.Sprintf("imported up to %s, repository is at %s", m.LastRevision, currentRevision)
	return result
}

// checkTimeFreshness checks freshness when the current head is unknown.
func (m *ImportMeta) checkTimeFreshness() FreshnessResult {
	age := time.Since(m.UpdatedAt)
	if age > staleAfter {
		return FreshnessResult{
			Fresh:            false,
			Reason:           fmt.Sprintf("import is %s old", humanDuration(age)),
			ImportedRevision: m.LastRevision,
		}
	}
	return FreshnessResult{
		Fresh:            true,
		ImportedRevision: m.LastRevision,
	}
}

// humanDuration formats a duration in human-readable form.
func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
