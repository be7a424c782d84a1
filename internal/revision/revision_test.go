package revision

import (
	"errors"
	"testing"
	"time"
)

func TestLinearOrdering(t *testing.T) {
	o := LinearOrdering{}

	tests := []struct {
		a, b Linear
		want int
	}{
		{1, 2, -1},
		{2, 1, 1},
		{7, 7, 0},
		{0, 100, -1},
	}
	for _, tt := range tests {
		if got := o.Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}

	if prev, ok := o.Previous(12); !ok || prev != 11 {
		t.Errorf("Previous(12) = %d, %v; want 11, true", prev, ok)
	}
	if _, ok := o.Previous(0); ok {
		t.Error("Previous(0) should report no predecessor")
	}
}

func TestLinearParse(t *testing.T) {
	o := LinearOrdering{}

	tests := []struct {
		in      string
		want    Linear
		wantErr bool
	}{
		{"42", 42, false},
		{"r42", 42, false},
		{" 7 ", 7, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		got, err := o.Parse(tt.in)
		if tt.wantErr {
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("Parse(%q) error = %v, want *ParseError", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if back := o.Format(got); back != o.Format(tt.want) {
			t.Errorf("Format(%d) = %q", got, back)
		}
	}
}

func TestCommitOrdering(t *testing.T) {
	o := CommitOrdering{}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	early := Commit{Hash: "bbbb", Time: base}
	late := Commit{Hash: "aaaa", Time: base.Add(time.Minute)}
	sameTime := Commit{Hash: "cccc", Time: base}

	if o.Compare(early, late) >= 0 {
		t.Error("earlier commit should sort first regardless of hash")
	}
	if o.Compare(early, sameTime) >= 0 {
		t.Error("equal times should fall back to hash order")
	}
	if o.Compare(early, early) != 0 {
		t.Error("commit should equal itself")
	}
	if _, ok := o.Previous(late); ok {
		t.Error("commit ordering cannot step back")
	}
}

func TestCommitFormatParse(t *testing.T) {
	o := CommitOrdering{}
	c := Commit{Hash: "0123456789abcdef", Time: time.Date(2023, 11, 5, 8, 30, 15, 250, time.UTC)}

	parsed, err := o.Parse(o.Format(c))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if o.Compare(parsed, c) != 0 {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, c)
	}
	if c.ShortHash() != "01234567" {
		t.Errorf("ShortHash() = %q", c.ShortHash())
	}

	for _, bad := range []string{"", "deadbeef", "x:abc", "12:"} {
		if _, err := o.Parse(bad); err == nil {
			t.Errorf("Parse(%q) should fail", bad)
		}
	}
}

func TestHelpers(t *testing.T) {
	o := LinearOrdering{}
	if Max[Linear](o, 3, 9) != 9 || Max[Linear](o, 9, 3) != 9 {
		t.Error("Max misbehaves")
	}
}
