package history

import (
	"io"

	"gopkg.in/yaml.v3"

	"lineage/internal/errors"
	"lineage/internal/revision"
)

// Script is a hand-written commit log with linear revisions, used for
// fixtures and the replay command.
//
//	commits:
//	  - revision: 6
//	    changes:
//	      - {path: b, kind: added, from: a, fromRevision: 5}
//	      - {path: a, kind: deleted}
//	queries:
//	  - {path: a, revision: 1, expect: ["b@6"]}
type Script struct {
	Name    string         `yaml:"name"`
	Commits []ScriptCommit `yaml:"commits"`
	Queries []ScriptQuery  `yaml:"queries"`
}

// ScriptCommit is one commit of a Script. Parent defaults to Revision-1.
type ScriptCommit struct {
	Revision int64          `yaml:"revision"`
	Parent   *int64         `yaml:"parent,omitempty"`
	Author   string         `yaml:"author,omitempty"`
	Message  string         `yaml:"message,omitempty"`
	Changes  []ScriptChange `yaml:"changes"`
}

// ScriptChange is one change item. FromRevision defaults to the commit's parent.
type ScriptChange struct {
	Path         string `yaml:"path"`
	Kind         string `yaml:"kind"`
	From         string `yaml:"from,omitempty"`
	FromRevision *int64 `yaml:"fromRevision,omitempty"`
}

// ScriptQuery is a latest-files query with its expected answer ("path@rev").
type ScriptQuery struct {
	Path     string   `yaml:"path"`
	Revision int64    `yaml:"revision"`
	Expect   []string `yaml:"expect,omitempty"`
}

// LoadScript decodes a YAML script from r
func LoadScript(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput, err, "failed to read script")
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML script
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.InvalidInput, err, "failed to parse script")
	}
	if len(s.Commits) == 0 {
		return nil, errors.Newf(errors.InvalidInput, "script %q has no commits", s.Name)
	}
	return &s, nil
}

// Marshal encodes the script back to YAML
func (s *Script) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Build converts the script into adapter commits
func (s *Script) Build() ([]Commit[revision.Linear], error) {
	commits := make([]Commit[revision.Linear], 0, len(s.Commits))
	for _, sc := range s.Commits {
		parent := sc.Revision - 1
		if sc.Parent != nil {
			parent = *sc.Parent
		}

		c := Commit[revision.Linear]{
			Revision:       revision.Linear(sc.Revision),
			ParentRevision: revision.Linear(parent),
			HasParent:      parent >= 0,
			Author:         sc.Author,
			Message:        sc.Message,
			Items:          make([]ChangeItem[revision.Linear], 0, len(sc.Changes)),
		}

		for _, ch := range sc.Changes {
			kind, err := ParseChangeKind(ch.Kind)
			if err != nil {
				return nil, errors.Wrap(errors.InvalidInput, err, "revision "+revision.LinearOrdering{}.Format(c.Revision))
			}
			item := ChangeItem[revision.Linear]{Path: ch.Path, Kind: kind}
			if ch.From != "" {
				from := parent
				if ch.FromRevision != nil {
					from = *ch.FromRevision
				}
				item.CopyFrom = &CopySource[revision.Linear]{Path: ch.From, Revision: revision.Linear(from)}
			}
			c.Items = append(c.Items, item)
		}

		if err := c.Validate(); err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}
