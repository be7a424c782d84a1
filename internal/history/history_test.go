package history

import (
	"strings"
	"testing"

	"lineage/internal/errors"
	"lineage/internal/revision"
)

func TestParseChangeKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ChangeKind
		wantErr bool
	}{
		{"A", Added, false},
		{"added", Added, false},
		{"M", Modified, false},
		{"changed", Modified, false},
		{"D", Deleted, false},
		{" R ", Replaced, false},
		{"X", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseChangeKind(tt.in)
		if tt.wantErr {
			if !errors.IsCode(err, errors.InvalidInput) {
				t.Errorf("ParseChangeKind(%q) error = %v, want INVALID_INPUT", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseChangeKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestChangeKindPredicates(t *testing.T) {
	if !Replaced.IsDeletion() || !Replaced.IsAddition() {
		t.Error("replaced is both a deletion and an addition")
	}
	if Deleted.IsAddition() || !Deleted.IsDeletion() {
		t.Error("deleted is only a deletion")
	}
	if Modified.IsDeletion() || Added.IsDeletion() {
		t.Error("added/modified are not deletions")
	}
}

func TestCommitValidate(t *testing.T) {
	tests := []struct {
		name    string
		items   []ChangeItem[revision.Linear]
		wantErr bool
	}{
		{"ok", []ChangeItem[revision.Linear]{{Path: "a", Kind: Modified}}, false},
		{"empty path", []ChangeItem[revision.Linear]{{Path: "", Kind: Added}}, true},
		{"bad kind", []ChangeItem[revision.Linear]{{Path: "a", Kind: "moved"}}, true},
		{
			"deleted with copy",
			[]ChangeItem[revision.Linear]{{Path: "a", Kind: Deleted, CopyFrom: &CopySource[revision.Linear]{Path: "b", Revision: 1}}},
			true,
		},
		{
			"empty copy path",
			[]ChangeItem[revision.Linear]{{Path: "a", Kind: Added, CopyFrom: &CopySource[revision.Linear]{Revision: 1}}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Commit[revision.Linear]{Revision: 2, ParentRevision: 1, HasParent: true, Items: tt.items}
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	f, err := NewFilter([]string{"src/**"}, []string{"**/*.gen.go", "src/vendor/**"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"src/main.go", true},
		{"/src/pkg/a.go", true},
		{"src/pkg/a.gen.go", false},
		{"src/vendor/x/y.go", false},
		{"docs/readme.md", false},
	}
	for _, tt := range tests {
		if got := f.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	var nilFilter *Filter
	if !nilFilter.Match("anything") || !nilFilter.IsEmpty() {
		t.Error("nil filter should match everything")
	}

	if _, err := NewFilter([]string{"src/["}, nil); err == nil {
		t.Error("expected invalid pattern error")
	}
}

func TestApplyFilter(t *testing.T) {
	f, _ := NewFilter(nil, []string{"build/**"})
	c := Commit[revision.Linear]{
		Revision: 3,
		Items: []ChangeItem[revision.Linear]{
			{Path: "build/out.bin", Kind: Added},
			{Path: "src/a.go", Kind: Added, CopyFrom: &CopySource[revision.Linear]{Path: "build/tmp.go", Revision: 2}},
		},
	}

	got := Apply(f, c)
	if len(got.Items) != 1 || got.Items[0].Path != "src/a.go" {
		t.Fatalf("Apply kept %v", got.Paths())
	}
	if got.Items[0].CopyFrom == nil {
		t.Error("copy-from to an excluded path should be kept")
	}
	if len(c.Items) != 2 {
		t.Error("Apply must not modify the input commit")
	}
}

const sampleScript = `
name: fan-out move
commits:
  - revision: 1
    changes:
      - {path: a, kind: added}
  - revision: 6
    parent: 5
    message: split a
    changes:
      - {path: b, kind: added, from: a}
      - {path: c, kind: A, from: a, fromRevision: 5}
      - {path: a, kind: D}
queries:
  - {path: a, revision: 1, expect: ["b@6", "c@6"]}
`

func TestParseScript(t *testing.T) {
	s, err := LoadScript(strings.NewReader(sampleScript))
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if s.Name != "fan-out move" || len(s.Queries) != 1 {
		t.Fatalf("unexpected script: %+v", s)
	}

	commits, err := s.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}

	first := commits[0]
	if first.Revision != 1 || first.ParentRevision != 0 || !first.HasParent {
		t.Errorf("first commit = %+v", first)
	}

	second := commits[1]
	if second.ParentRevision != 5 || second.Message != "split a" {
		t.Errorf("second commit = %+v", second)
	}
	if got := second.Items[0].CopyFrom; got == nil || got.Path != "a" || got.Revision != 5 {
		t.Errorf("copy-from should default to the parent revision, got %+v", got)
	}
	if second.Items[2].Kind != Deleted {
		t.Errorf("kind = %q, want deleted", second.Items[2].Kind)
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "commits: [\n"},
		{"no commits", "name: empty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScript([]byte(tt.yaml)); !errors.IsCode(err, errors.InvalidInput) {
				t.Errorf("ParseScript error = %v, want INVALID_INPUT", err)
			}
		})
	}

	s, err := ParseScript([]byte("commits:\n  - revision: 1\n    changes:\n      - {path: a, kind: moved}\n"))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if _, err := s.Build(); err == nil {
		t.Error("Build should reject an unknown change kind")
	}
}

func TestScriptMarshalRoundTrip(t *testing.T) {
	s, err := ParseScript([]byte(sampleScript))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := ParseScript(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again.Commits) != len(s.Commits) || len(again.Commits[1].Changes) != 3 {
		t.Errorf("round trip lost data: %+v", again)
	}
}
