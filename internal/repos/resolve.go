package repos

import (
	"os"
	"path/filepath"
	"strings"

	"lineage/internal/backends"
	"lineage/internal/errors"
	"lineage/internal/paths"
)

// RepoEnvVar names the repository to use when --repo is not given
const RepoEnvVar = "LINEAGE_REPO"

// ResolutionSource indicates how the repository root was determined.
type ResolutionSource string

const (
	// ResolvedFromFlag indicates the root was set via --repo flag.
	ResolvedFromFlag ResolutionSource = "flag"

	// ResolvedFromEnv indicates the root was set via LINEAGE_REPO.
	ResolvedFromEnv ResolutionSource = "env"

	// ResolvedFromData indicates a parent directory holds lineage data.
	ResolvedFromData ResolutionSource = "data"

	// ResolvedFromCWDGit indicates the CWD is inside a git repository.
	ResolvedFromCWDGit ResolutionSource = "cwd_git"

	// ResolvedFromCWD indicates nothing better was found.
	ResolvedFromCWD ResolutionSource = "cwd"
)

// ResolveRepoRoot determines the repository root using the resolution order:
// 1. flagValue (--repo flag, if provided)
// 2. LINEAGE_REPO environment variable
// 3. The nearest parent of the CWD holding a .lineage directory
// 4. The git root containing the CWD
// 5. The CWD itself
func ResolveRepoRoot(flagValue string) (string, ResolutionSource, error) {
	if flagValue != "" {
		root, err := filepath.Abs(flagValue)
		return root, ResolvedFromFlag, err
	}
	if env := os.Getenv(RepoEnvVar); env != "" {
		root, err := filepath.Abs(env)
		return root, ResolvedFromEnv, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	// the global data directory is not a repository
	globalHome, _ := paths.GetHome()
	if root := findUp(cwd, paths.DirName, true, globalHome); root != "" {
		return root, ResolvedFromData, nil
	}
	if root := FindGitRoot(cwd); root != "" {
		return root, ResolvedFromCWDGit, nil
	}
	return cwd, ResolvedFromCWD, nil
}

// FindGitRoot walks up the directory tree from the given path to find the git root.
// Returns the path containing .git, or empty string if not in a git repo.
func FindGitRoot(path string) string {
	return findUp(path, ".git", false, "")
}

// findUp returns the nearest directory at or above path containing name,
// ignoring a match at skip
func findUp(path, name string, dirOnly bool, skip string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	// Resolve symlinks (handles macOS /var -> /private/var)
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	current := absPath
	for {
		candidate := filepath.Join(current, name)
		if info, err := os.Stat(candidate); err == nil && candidate != skip {
			// .git can be a directory (normal repo) or file (worktree/submodule)
			if info.IsDir() || (!dirOnly && info.Mode().IsRegular()) {
				return current
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// QueryPath turns a command-line path into the repo-relative form the graph
// is keyed on. For git, an absolute path or one starting with ./ or ../
// names a worktree file relative to the working directory; every other
// argument is already repo-relative.
func QueryPath(t Target, arg string) (string, error) {
	if t.Backend == backends.BackendGit && isFilesystemPath(arg) {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", errors.Wrap(errors.InvalidInput, err, "failed to resolve path")
		}
		if !paths.IsWithinRepo(abs, t.Root) {
			return "", errors.Newf(errors.InvalidInput, "%s is outside the repository at %s", arg, t.Root)
		}
		rel, err := paths.CanonicalizePath(abs, t.Root)
		if err != nil {
			return "", errors.Wrap(errors.InvalidInput, err, "failed to resolve path")
		}
		arg = rel
	}
	return paths.NormalizePath(arg), nil
}

func isFilesystemPath(p string) bool {
	if filepath.IsAbs(p) {
		return true
	}
	p = filepath.ToSlash(p)
	return p == "." || p == ".." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../")
}
