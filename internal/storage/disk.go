package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sqliteSidecars are the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"-wal", "-shm"}

// StoreFiles returns the files that make up the store at path: the file itself and,
// for SQLite, its write-ahead log and shared-memory sidecars.
func StoreFiles(driver, path string) []string {
	if path == "" {
		return nil
	}
	files := []string{path}
	if driver == "" || driver == DriverSQLite {
		for _, suffix := range sqliteSidecars {
			files = append(files, path+suffix)
		}
	}
	return files
}

// DiskUsageBytes returns the combined size of the given files. Files that do not
// exist count as zero; directories are rejected.
func DiskUsageBytes(files ...string) (int64, error) {
	var total int64
	for _, f := range files {
		if f == "" {
			continue
		}
		info, err := os.Stat(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			return 0, &fs.PathError{Op: "disk usage", Path: f, Err: errors.New("is a directory")}
		}
		total += info.Size()
	}
	return total, nil
}
