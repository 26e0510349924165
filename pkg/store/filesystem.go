package store

import (
	"os"
	"path/filepath"
)

type filesystemManagement interface {
	readSnapshotFile(filepath string) ([]byte, error)
	writeSnapshotFile(filepath string, data []byte) error
}

type fileManagement struct{}

func (fs *fileManagement) readSnapshotFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path))
}

// writeSnapshotFile replaces the snapshot atomically through a rename
func (fs *fileManagement) writeSnapshotFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
