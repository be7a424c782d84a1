package main

import (
	"errors"
	"strings"
	"testing"

	"lineage/internal/backends"
	"lineage/internal/repos"
	"lineage/internal/session"
)

func TestFormatResponse_JSON(t *testing.T) {
	resp := &LatestResponseCLI{Path: "a.c", Revision: "3", Files: []FileRefCLI{{Path: "b.c", Revision: "4"}}}

	result, err := FormatResponse(resp, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, `"path": "b.c"`) || !strings.Contains(result, `"revision": "4"`) {
		t.Errorf("JSON output = %s", result)
	}
}

func TestFormatResponse_UnsupportedFormat(t *testing.T) {
	_, err := FormatResponse(map[string]string{"key": "value"}, "xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("error = %v, want unsupported format", err)
	}
	if _, err := parseFormat("yaml"); err == nil {
		t.Error("parseFormat accepted yaml")
	}
}

func TestDisplayRevision(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"1700000000000000000:0123456789abcdef", "01234567"},
		{"1700000000000000000:abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := displayRevision(tt.in); got != tt.want {
			t.Errorf("displayRevision(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHuman(t *testing.T) {
	tests := []struct {
		name string
		resp interface{}
		want []string
	}{
		{
			"latest",
			&LatestResponseCLI{Path: "a.c", Revision: "3", Files: []FileRefCLI{{Path: "lib/a.c", Revision: "5"}}},
			[]string{"a.c@3", "-> lib/a.c@5"},
		},
		{
			"latest without files",
			&LatestResponseCLI{Path: "gone.c", Revision: "3", Files: []FileRefCLI{}},
			[]string{"(no files)"},
		},
		{
			"node",
			&NodeResponseCLI{Path: "a.c", Found: true, Nodes: []NodeCLI{{
				Path: "a.c", Type: "moved-out", Origin: "created", BornAt: "1", FirstSeen: "1",
				DiesAt: "3", LastAlive: "2", MoveTargets: []FileRefCLI{{Path: "b.c", Revision: "3"}},
			}}},
			[]string{"a.c [created, moved-out]", "dies:       3", "last alive: 2", "moved to:   b.c@3"},
		},
		{
			"node missing",
			&NodeResponseCLI{Path: "x"},
			[]string{"x: no lineage node"},
		},
		{
			"outcome",
			&repos.Outcome{Name: "core", Backend: "svn", Report: &session.Report{Commits: 3, Moves: 1}, Commits: 3, Paths: 4, Moves: 1, LastRevision: "3"},
			[]string{"core (svn)", "imported: 3 commits", "last 3"},
		},
		{
			"replay",
			&ReplayResponseCLI{Script: "s.yaml", Report: &session.Report{Commits: 2}, Queries: []QueryResultCLI{
				{Path: "a", Revision: 1, Files: []string{"b@2"}, Expect: []string{"c@2"}, OK: false},
			}, Failed: 1},
			[]string{"[FAIL] a@1 -> b@2 (want c@2)"},
		},
		{
			"status",
			&StatusResponseCLI{Version: "0.4.0", Root: "/r", ResolvedFrom: "flag", Backend: BackendStatusCLI{ID: "git", Available: true, Head: "0123456789abcdef"}, Reason: "no import metadata found"},
			[]string{"Backend:    git, available", "Head:       01234567", "Import:     never", "Fresh:      no (no import metadata found)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := FormatResponse(tt.resp, FormatHuman)
			if err != nil {
				t.Fatalf("FormatResponse: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestByBackend(t *testing.T) {
	called := ""
	git := func() error { called = "git"; return nil }
	svn := func() error { called = "svn"; return errors.New("boom") }

	if err := byBackend(backends.BackendGit, git, svn); err != nil || called != "git" {
		t.Errorf("git: called %s, err %v", called, err)
	}
	if err := byBackend(backends.BackendSVN, git, svn); err == nil || called != "svn" {
		t.Errorf("svn: called %s, err %v", called, err)
	}
	if err := byBackend("hg", git, svn); err == nil {
		t.Error("unknown backend accepted")
	}
}
