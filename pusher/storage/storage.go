package storage

import "io"

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Storage is the shared filesystem that holds model artifacts, push job
// configs, and serving directories.
type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	Exists(path string) (bool, error)

	Usage() (UsageStats, error)

	// Location returns the absolute path of the storage root.
	Location() string
}
