// Package storage defines the vault file-system abstraction.
package storage

// Provider is the interface for vault file operations. Paths are
// always relative to the vault root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a file exists at path.
	Exists(path string) (bool, error)
}
