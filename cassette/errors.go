package cassette

import "fmt"

// StorageError is returned when a Storage fails to load or save a cassette.
type StorageError struct {
	Backend string // "file", "sqlite", "memory"
	Op      string // "load", "save"
	Name    string // cassette name
	Err     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, op=%s, cassette=%s]: %v", e.Backend, e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError creates a new StorageError.
func NewStorageError(backend, op, name string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Name: name, Err: err}
}

// EncodingError is returned when a body cannot be encoded or decoded
// consistently.
type EncodingError struct {
	Name   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	msg := "encoding error"
	if e.Name != "" {
		msg += " [cassette=" + e.Name + "]"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EncodingError) Unwrap() error { return e.Err }
