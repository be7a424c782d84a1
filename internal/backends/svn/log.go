package svn

import (
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"

	"lineage/internal/errors"
)

// LogEntry is one <logentry> of `svn log --xml -v`
type LogEntry struct {
	Revision int64     `xml:"revision,attr"`
	Author   string    `xml:"author"`
	Date     string    `xml:"date"`
	Paths    []LogPath `xml:"paths>path"`
	Message  string    `xml:"msg"`
}

// LogPath is one changed path of a log entry
type LogPath struct {
	Action       string `xml:"action,attr"`
	Kind         string `xml:"kind,attr"`
	CopyFromPath string `xml:"copyfrom-path,attr"`
	CopyFromRev  string `xml:"copyfrom-rev,attr"`
	Path         string `xml:",chardata"`
}

// IsDir reports whether svn marked the path as a directory
func (p LogPath) IsDir() bool {
	return p.Kind == "dir"
}

// copyRevision returns the copy-from revision, if any
func (p LogPath) copyRevision() (int64, bool, error) {
	if p.CopyFromPath == "" {
		return 0, false, nil
	}
	rev, err := strconv.ParseInt(strings.TrimSpace(p.CopyFromRev), 10, 64)
	if err != nil {
		return 0, false, errors.Newf(errors.InvalidRevision, "bad copyfrom-rev %q on %s", p.CopyFromRev, p.Path)
	}
	return rev, true, nil
}

// ParseLog reads `svn log --xml -v` output and returns its entries in
// ascending revision order, whichever order the log was printed in.
func ParseLog(r io.Reader) ([]LogEntry, error) {
	dec := xml.NewDecoder(r)
	var entries []LogEntry
	sawLog := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.InvalidInput, err, "malformed svn log")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "log":
			sawLog = true
		case "logentry":
			var e LogEntry
			if err := dec.DecodeElement(&e, &start); err != nil {
				return nil, errors.Wrap(errors.InvalidInput, err, "malformed svn log entry")
			}
			if e.Revision <= 0 {
				return nil, errors.Newf(errors.InvalidRevision, "log entry without a revision")
			}
			for i := range e.Paths {
				e.Paths[i].Path = strings.TrimSpace(e.Paths[i].Path)
			}
			e.Message = strings.TrimSpace(e.Message)
			entries = append(entries, e)
		}
	}
	if !sawLog {
		return nil, errors.Newf(errors.InvalidInput, "input is not svn log --xml output")
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Revision < entries[j].Revision })
	for i := 1; i < len(entries); i++ {
		if entries[i].Revision == entries[i-1].Revision {
			return nil, errors.Newf(errors.InvalidInput, "revision %d is logged twice", entries[i].Revision)
		}
	}
	return entries, nil
}
