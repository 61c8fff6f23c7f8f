package shared

import (
	"io/fs"
	"time"
)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FileSystem exposes the filesystem operations required by migration services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
	MkdirAll(path string, permissions fs.FileMode) error
	Remove(path string) error
	ReadDir(path string) ([]fs.DirEntry, error)
	Abs(path string) (string, error)
}

// ConfirmationResult captures the outcome of a user confirmation prompt.
type ConfirmationResult struct {
	Confirmed  bool
	ApplyToAll bool
}

// ConfirmationPrompter collects user confirmations prior to mutating actions.
type ConfirmationPrompter interface {
	Confirm(prompt string) (ConfirmationResult, error)
}

// Reporter receives human-facing output as plain data and owns all rendering.
type Reporter interface {
	Info(message string)
	Warn(message string)
	Error(message string)
	Table(headers []string, rows [][]string)
}
