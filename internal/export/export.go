package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"lineage/internal/errors"
	"lineage/internal/lineage"
)

// FormatVersion identifies the export file layout
const FormatVersion = 1

// Extension is the conventional file extension of an export
const Extension = ".lineage.zst"

// Header describes where an export came from
type Header struct {
	FormatVersion int       `json:"formatVersion"`
	Repo          string    `json:"repo"`
	Backend       string    `json:"backend"`
	Generated     time.Time `json:"generated"`
	// Analyzed holds the integrated revisions, so an import can resume from
	// the export.
	Analyzed []string `json:"analyzed,omitempty"`
}

// File is a graph snapshot plus its header
type File struct {
	Header   Header            `json:"header"`
	Snapshot *lineage.Snapshot `json:"snapshot"`
}

// Write serializes f as zstd-compressed JSON
func Write(w io.Writer, f *File) error {
	if f == nil || f.Snapshot == nil {
		return errors.Newf(errors.InvalidInput, "nothing to export")
	}
	if f.Header.FormatVersion == 0 {
		f.Header.FormatVersion = FormatVersion
	}
	if f.Header.Generated.IsZero() {
		f.Header.Generated = time.Now().UTC()
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := json.NewEncoder(encoder).Encode(f); err != nil {
		encoder.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return nil
}

// Read decodes an export written by Write
func Read(r io.Reader) (*File, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	var f File
	if err := json.NewDecoder(decoder).Decode(&f); err != nil {
		return nil, errors.Wrap(errors.InvalidInput, err, "unreadable export")
	}
	if f.Header.FormatVersion != FormatVersion {
		return nil, errors.Newf(errors.InvalidInput, "unsupported export format %d", f.Header.FormatVersion)
	}
	if f.Snapshot == nil {
		return nil, errors.Newf(errors.InvalidInput, "export has no snapshot")
	}
	return &f, nil
}

// WriteFile writes f to path, replacing any existing file only once the
// export is complete
func WriteFile(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile reads an export from path
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer fh.Close()
	return Read(fh)
}
