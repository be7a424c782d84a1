package export

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/lineage"
	"lineage/internal/revision"
)

func buildGraph(t *testing.T) *lineage.Graph[revision.Linear] {
	t.Helper()
	script, err := history.ParseScript([]byte(`
commits:
  - revision: 1
    changes:
      - {path: a.txt, kind: A}
  - revision: 2
    changes:
      - {path: b.txt, kind: A, from: a.txt}
      - {path: a.txt, kind: D}
`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	commits, err := script.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g := lineage.New[revision.Linear](revision.LinearOrdering{})
	for _, c := range commits {
		if _, err := g.Integrate(c); err != nil {
			t.Fatalf("Integrate(r%d): %v", c.Revision, err)
		}
	}
	return g
}

func TestWriteRead(t *testing.T) {
	g := buildGraph(t)
	generated := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	in := &File{
		Header:   Header{Repo: "demo", Backend: "svn", Generated: generated, Analyzed: []string{"1", "2"}},
		Snapshot: g.Snapshot(),
	}
	if err := Write(&buf, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Header.FormatVersion != FormatVersion || out.Header.Repo != "demo" || !out.Header.Generated.Equal(generated) {
		t.Errorf("header = %+v", out.Header)
	}
	if !reflect.DeepEqual(out.Header.Analyzed, []string{"1", "2"}) {
		t.Errorf("analyzed = %v", out.Header.Analyzed)
	}

	restored, err := lineage.Restore[revision.Linear](revision.LinearOrdering{}, out.Snapshot)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got := restored.GetLatestFiles("a.txt", 1)
	if len(got) != 1 || got[0].Path != "b.txt" || got[0].Revision != 2 {
		t.Errorf("GetLatestFiles(a.txt, 1) = %v, want [b.txt@2]", got)
	}
}

func TestWriteReadFile(t *testing.T) {
	g := buildGraph(t)
	path := filepath.Join(t.TempDir(), "nested", "demo"+Extension)

	if err := WriteFile(path, &File{Header: Header{Repo: "demo"}, Snapshot: g.Snapshot()}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if out.Header.Generated.IsZero() {
		t.Error("Generated was not filled in")
	}
	if out.Snapshot.Commits != 2 {
		t.Errorf("Commits = %d, want 2", out.Snapshot.Commits)
	}
}

func TestReadRejectsBadInput(t *testing.T) {
	g := buildGraph(t)

	var wrongVersion bytes.Buffer
	if err := Write(&wrongVersion, &File{Header: Header{FormatVersion: 99}, Snapshot: g.Snapshot()}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"not zstd", []byte("plain text, not an export")},
		{"wrong version", wrongVersion.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(bytes.NewReader(tt.input)); err == nil {
				t.Fatal("Read succeeded on bad input")
			}
		})
	}

	if err := Write(&bytes.Buffer{}, &File{}); !errors.IsCode(err, errors.InvalidInput) {
		t.Errorf("Write without snapshot = %v, want INVALID_INPUT", err)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil || !strings.Contains(err.Error(), "open export") {
		t.Errorf("ReadFile(missing) = %v", err)
	}
}
