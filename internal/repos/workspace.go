// Package repos manages the repositories lineage imports: a single
// repository's import pipeline and TOML workspaces of several repositories.
package repos

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"lineage/internal/backends"
)

// DefaultConcurrency bounds how many repositories a workspace imports at once
const DefaultConcurrency = 4

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Workspace is a set of repositories stored in a TOML file
type Workspace struct {
	// Name is the workspace identifier
	Name string `toml:"name"`

	// Description is an optional human-readable description
	Description string `toml:"description,omitempty"`

	// Concurrency limits parallel imports; DefaultConcurrency when zero
	Concurrency int `toml:"concurrency,omitempty"`

	CreatedAt time.Time `toml:"created_at"`
	UpdatedAt time.Time `toml:"updated_at"`

	Repos []RepoEntry `toml:"repos"`
}

// RepoEntry is one repository of a workspace
type RepoEntry struct {
	// RepoUID is the immutable UUID for this repository (never changes)
	RepoUID string `toml:"repo_uid"`

	// Name is the mutable human-friendly alias
	Name string `toml:"name"`

	// Backend is "git" or "svn"
	Backend string `toml:"backend"`

	// Path is the git worktree, or for svn the directory that receives lineage
	// data. An svn entry may leave it empty.
	Path string `toml:"path,omitempty"`

	Ref           string `toml:"ref,omitempty"`
	DetectRenames *bool  `toml:"detect_renames,omitempty"`
	MaxCommits    int    `toml:"max_commits,omitempty"`

	LogFile string `toml:"log_file,omitempty"`
	URL     string `toml:"url,omitempty"`

	MovePairing string   `toml:"move_pairing,omitempty"`
	Include     []string `toml:"include,omitempty"`
	Exclude     []string `toml:"exclude,omitempty"`
	Tags        []string `toml:"tags,omitempty"`

	AddedAt time.Time `toml:"added_at"`
}

// ValidateName checks if a repo name is valid.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("repo name cannot be empty")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("repo name must contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// NewWorkspace creates an empty workspace
func NewWorkspace(name, description string) *Workspace {
	now := time.Now().UTC()
	return &Workspace{
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Repos:       []RepoEntry{},
	}
}

// AddRepo validates entry and appends it with a fresh UID
func (w *Workspace) AddRepo(entry RepoEntry) (*RepoEntry, error) {
	if err := ValidateName(entry.Name); err != nil {
		return nil, err
	}
	if _, ok := backends.Parse(entry.Backend); !ok {
		return nil, fmt.Errorf("repo %q has unknown backend %q", entry.Name, entry.Backend)
	}
	if err := checkLocation(entry); err != nil {
		return nil, err
	}
	if entry.Path != "" {
		absPath, err := filepath.Abs(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}
		entry.Path = filepath.Clean(absPath)
	}

	for _, r := range w.Repos {
		if r.Name == entry.Name {
			return nil, fmt.Errorf("repository with name %q already exists", entry.Name)
		}
		if entry.Path != "" && r.Path == entry.Path {
			return nil, fmt.Errorf("repository at path %q already exists (as %q)", entry.Path, r.Name)
		}
	}

	entry.RepoUID = uuid.New().String()
	entry.AddedAt = time.Now().UTC()
	w.Repos = append(w.Repos, entry)
	w.UpdatedAt = time.Now().UTC()
	return &w.Repos[len(w.Repos)-1], nil
}

// checkLocation requires a path, except for svn repositories read from a
// log file or URL, whose data then lives under the lineage home.
func checkLocation(r RepoEntry) error {
	if r.Path != "" {
		return nil
	}
	if r.Backend == "svn" && (r.LogFile != "" || r.URL != "") {
		return nil
	}
	return fmt.Errorf("repo %q has no path", r.Name)
}

// RemoveRepo removes a repository from the workspace by name
func (w *Workspace) RemoveRepo(name string) error {
	for i, r := range w.Repos {
		if r.Name == name {
			w.Repos = append(w.Repos[:i], w.Repos[i+1:]...)
			w.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("repository %q not found", name)
}

// GetRepo returns a repository by name
func (w *Workspace) GetRepo(name string) *RepoEntry {
	for i := range w.Repos {
		if w.Repos[i].Name == name {
			return &w.Repos[i]
		}
	}
	return nil
}

// Validate checks every entry of a loaded workspace
func (w *Workspace) Validate() error {
	seen := make(map[string]bool, len(w.Repos))
	for _, r := range w.Repos {
		if err := ValidateName(r.Name); err != nil {
			return fmt.Errorf("repo %q: %w", r.Name, err)
		}
		if seen[r.Name] {
			return fmt.Errorf("repository %q is listed twice", r.Name)
		}
		seen[r.Name] = true
		if _, ok := backends.Parse(r.Backend); !ok {
			return fmt.Errorf("repo %q has unknown backend %q", r.Name, r.Backend)
		}
		if err := checkLocation(r); err != nil {
			return err
		}
	}
	if w.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}

// LoadWorkspace reads a workspace file. Relative repository paths are
// resolved against the file's directory.
func LoadWorkspace(path string) (*Workspace, error) {
	var w Workspace
	if _, err := toml.DecodeFile(path, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}
	base := filepath.Dir(path)
	for i := range w.Repos {
		r := &w.Repos[i]
		if r.Path != "" && !filepath.IsAbs(r.Path) {
			r.Path = filepath.Join(base, r.Path)
		}
		if r.LogFile != "" && !filepath.IsAbs(r.LogFile) {
			r.LogFile = filepath.Join(base, r.LogFile)
		}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Save writes the workspace to path atomically
func (w *Workspace) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create workspace file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(w); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode workspace: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename workspace: %w", err)
	}
	return nil
}

func errNotInWorkspace(name, workspace string) error {
	return fmt.Errorf("repository %q is not part of workspace %q", name, workspace)
}
