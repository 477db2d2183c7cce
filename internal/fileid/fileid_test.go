package fileid

import (
	"path/filepath"
	"testing"
)

func TestRecordID(t *testing.T) {
	id1 := RecordID("/data/paper.pdf", 0)
	id2 := RecordID("/data/paper.pdf", 0)
	if id1 != id2 {
		t.Errorf("same input should give same ID: %q vs %q", id1, id2)
	}
	if !HasPrefix(id1) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+36 {
		t.Errorf("unexpected ID length: %q", id1)
	}
}

func TestRecordID_differentInputs(t *testing.T) {
	base := RecordID("/data/paper.pdf", 0)
	if base == RecordID("/data/paper.pdf", 1) {
		t.Error("different chunk index should give different ID")
	}
	if base == RecordID("/data/other.pdf", 0) {
		t.Error("different path should give different ID")
	}
	// Path and index are separated, so "a1"+0 and "a"+10 must not collide.
	if RecordID("/data/a1", 0) == RecordID("/data/a", 10) {
		t.Error("path/index boundary should be unambiguous")
	}
}

func TestRecordID_normalized(t *testing.T) {
	id1 := RecordID("/foo/bar.pdf", 3)
	id2 := RecordID("/foo/./bar.pdf", 3)
	id3 := RecordID("/foo/baz/../bar.pdf", 3)
	if id1 != id2 || id1 != id3 {
		t.Errorf("equivalent paths should match: %q %q %q", id1, id2, id3)
	}
}

func TestRecordID_absoluteFromFilepath(t *testing.T) {
	abs, _ := filepath.Abs("paper.pdf")
	if id := RecordID(abs, 0); !HasPrefix(id) {
		t.Errorf("absolute path should get valid ID: %q", id)
	}
}

func TestHasPrefix(t *testing.T) {
	for _, tt := range []struct {
		id   string
		want bool
	}{
		{"doc_abc", true},
		{"doc_", false},
		{"file:abc", false},
		{"", false},
	} {
		if got := HasPrefix(tt.id); got != tt.want {
			t.Errorf("HasPrefix(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
