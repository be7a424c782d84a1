package svn

import (
	"sort"
	"strings"
)

// span is one lifetime of a file; died is 0 while the file is alive
type span struct {
	born, died int64
}

// tree remembers which files existed at which revision, so directory
// operations can be expanded into per-file change items
type tree struct {
	files map[string][]span
}

func newTree() *tree {
	return &tree{files: make(map[string][]span)}
}

func (t *tree) aliveAt(path string, rev int64) bool {
	for _, s := range t.files[path] {
		if s.born <= rev && (s.died == 0 || rev < s.died) {
			return true
		}
	}
	return false
}

// under returns the files below dir that were alive at rev, sorted
func (t *tree) under(dir string, rev int64) []string {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var out []string
	for path := range t.files {
		if strings.HasPrefix(path, prefix) && t.aliveAt(path, rev) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func (t *tree) isDir(path string, rev int64) bool {
	return len(t.under(path, rev)) > 0
}

func (t *tree) add(path string, rev int64) {
	if t.aliveAt(path, rev) {
		return
	}
	t.files[path] = append(t.files[path], span{born: rev})
}

func (t *tree) remove(path string, rev int64) {
	spans := t.files[path]
	if n := len(spans); n > 0 && spans[n-1].died == 0 {
		spans[n-1].died = rev
	}
}
