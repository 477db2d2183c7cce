package storage

import (
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of a collection database and its document folder.
type Usage struct {
	DatabaseBytes  int64 `json:"database_bytes"`
	DocumentsBytes int64 `json:"documents_bytes"`
	DocumentFiles  int   `json:"document_files"`
}

// Total returns database and document bytes combined.
func (u Usage) Total() int64 {
	return u.DatabaseBytes + u.DocumentsBytes
}

// sqliteSidecars are the files SQLite keeps next to the database in WAL mode.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// MeasureUsage sums the database file with its WAL sidecars and the regular files
// directly inside dataDir, mirroring what a directory ingest reads. Missing paths count as zero.
func MeasureUsage(dbFile, dataDir string) (Usage, error) {
	var u Usage
	if dbFile != "" {
		for _, suffix := range sqliteSidecars {
			info, err := os.Stat(dbFile + suffix)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return Usage{}, err
			}
			u.DatabaseBytes += info.Size()
		}
	}
	if dataDir == "" {
		return u, nil
	}
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return u, nil
	}
	if err != nil {
		return Usage{}, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := os.Stat(filepath.Join(dataDir, e.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Usage{}, err
		}
		u.DocumentsBytes += info.Size()
		u.DocumentFiles++
	}
	return u, nil
}
