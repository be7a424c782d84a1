package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DirName is the per-repository data directory
	DirName = ".lineage"
	// HomeEnvVar overrides the global data directory
	HomeEnvVar = "LINEAGE_HOME"
	// DefaultHome is the global data directory under the user's home
	DefaultHome = ".lineage"
	// ReposSubdir holds per-repository data for workspace imports
	ReposSubdir = "repos"
)

// GetHome returns the global data directory ($LINEAGE_HOME or ~/.lineage)
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(userHome, DefaultHome), nil
}

// ComputeRepoHash returns a short stable hash of a repository location
func ComputeRepoHash(repoPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(repoPath)))
	return hex.EncodeToString(sum[:8])
}

// DataDir returns the data directory of the repository at repoRoot
func DataDir(repoRoot string) string {
	return filepath.Join(repoRoot, DirName)
}

// EnsureDataDir creates the data directory of the repository at repoRoot
func EnsureDataDir(repoRoot string) (string, error) {
	dir := DataDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}
	return dir, nil
}

// GetWorkspaceRepoDir returns the global data directory for a workspace
// repository. Repositories are keyed by name plus a hash of their location
// so two workspaces can reuse a name.
func GetWorkspaceRepoDir(name, location string) (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ReposSubdir, name+"-"+ComputeRepoHash(location)), nil
}

// CanonicalizePath converts a filesystem path to a repo-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to repo root
// - Returns repo-relative path with forward slashes
func CanonicalizePath(p string, repoRoot string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(repoRoot, p)
	}

	resolved, err := evalExisting(p)
	if err != nil {
		return "", err
	}
	repoRootResolved, err := evalExisting(repoRoot)
	if err != nil {
		return "", err
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(relativePath), nil
}

// evalExisting resolves symlinks in the longest existing prefix of p.
// Deleted files are a normal query target.
func evalExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	base, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, filepath.Base(p)), nil
}

// IsWithinRepo checks if a path is within the repository root
func IsWithinRepo(p string, repoRoot string) bool {
	canonical, err := CanonicalizePath(p, repoRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath turns a path reported by a version-control log into the form
// the lineage graph keys on: forward slashes, no leading slash, cleaned.
func NormalizePath(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	return strings.TrimPrefix(p, "/")
}
