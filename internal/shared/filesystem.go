package shared

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements FileSystem using operating system facilities.
type OSFileSystem struct{}

// NewOSFileSystem constructs an operating system backed filesystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// Stat reports file metadata for the provided path.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadFile returns the contents of the file at the provided path.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to the provided path with the requested permissions.
func (OSFileSystem) WriteFile(path string, data []byte, permissions fs.FileMode) error {
	return os.WriteFile(path, data, permissions)
}

// MkdirAll creates the directory hierarchy for the provided path.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// Remove deletes the file or empty directory at the provided path.
func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// ReadDir lists the entries of the directory at the provided path.
func (OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// Abs resolves the provided path to an absolute path.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}
