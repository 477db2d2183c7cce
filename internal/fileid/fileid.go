// Package fileid provides deterministic record IDs for chunks of ingested files.
package fileid

import (
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const prefix = "doc_"

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("researchpilot:record"))

// RecordID returns a stable record ID for chunk chunkIndex of the file at path.
// The same (path, index) pair always yields the same ID, so re-ingesting a file
// overwrites its earlier records instead of duplicating them.
func RecordID(path string, chunkIndex int) string {
	key := filepath.Clean(path) + "\x00" + strconv.Itoa(chunkIndex)
	return prefix + uuid.NewSHA1(namespace, []byte(key)).String()
}

// HasPrefix reports whether id looks like a record ID produced by RecordID.
func HasPrefix(id string) bool {
	return len(id) > len(prefix) && id[:len(prefix)] == prefix
}
