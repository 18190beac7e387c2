// Package storage defines the screenshot blob store.
package storage

import (
	"errors"
	"io"
	"time"
)

// ErrInvalidKey is returned for keys that are empty, absolute or escape the
// store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Blob is an open blob. Callers must Close it.
type Blob struct {
	io.ReadSeekCloser
	Info BlobInfo
}

// Provider stores screenshot bytes. Keys are slash-separated and take the
// form <sessionID>/<file>.
type Provider interface {
	Open(key string) (*Blob, error)
	// Write replaces the blob at key in one step; readers never see a
	// partial file.
	Write(key string, content []byte) error
	Delete(key string) error
	// DeleteDir removes a session's blobs. A missing dir is not an error.
	DeleteDir(dir string) error
}

// Key builds the blob key for a file in a session.
func Key(sessionID, file string) string {
	return sessionID + "/" + file
}
