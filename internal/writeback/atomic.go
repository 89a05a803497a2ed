// Package writeback writes output files atomically.
package writeback

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is an output file that appears at its final path only on Commit.
// Until then content goes to a temp file in the same directory, so a failed
// run never leaves a partial file behind.
type File struct {
	tmp  *os.File
	path string
	perm os.FileMode
	done bool
}

// Create starts writing path. An existing file at path keeps its content
// and permissions until Commit replaces it.
func Create(path string) (*File, error) {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".riffle-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &File{tmp: tmp, path: path, perm: perm}, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) { return f.tmp.Write(p) }

// Path is the final destination.
func (f *File) Path() string { return f.path }

// Commit flushes the temp file to disk and renames it over the destination.
func (f *File) Commit() error {
	if f.done {
		return fmt.Errorf("%s already finished", f.path)
	}
	f.done = true
	tmpName := f.tmp.Name()

	if err := f.tmp.Sync(); err != nil {
		_ = f.tmp.Close()
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpName, f.perm) // best-effort permission sync

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", f.path, err)
	}
	return nil
}

// Abort discards everything written. It is a no-op after Commit, so it can
// be deferred unconditionally.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	_ = f.tmp.Close()
	_ = os.Remove(f.tmp.Name())
}

// WriteFile atomically replaces path with whatever fn writes.
func WriteFile(path string, fn func(w io.Writer) error) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()
	if err := fn(f); err != nil {
		return err
	}
	return f.Commit()
}
