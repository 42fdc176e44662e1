// Package gobdb keeps a single Go value in a file, encoded with
// encoding/gob. Writes go through a temporary file in the same
// directory followed by a rename, so readers see either the old or
// the new value and never a torn write.
package gobdb

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmpty is returned by Load for a zero length file.
var ErrEmpty = errors.New("gob file is empty")

type GobFile[T any] struct {
	path string
	mode os.FileMode
}

// NewGobFile stores values of T at path with mode 0600.
func NewGobFile[T any](path string) *GobFile[T] {
	return &GobFile[T]{path: path, mode: 0o600}
}

// WithMode changes the permissions new files are written with.
func (f *GobFile[T]) WithMode(mode os.FileMode) *GobFile[T] {
	f.mode = mode
	return f
}

func (f *GobFile[T]) Path() string {
	return f.path
}

func (f *GobFile[T]) Save(v T) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(f.mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	committed = true
	return nil
}

// Load wraps os.ErrNotExist when nothing was saved yet and ErrEmpty
// for a zero length file.
func (f *GobFile[T]) Load() (T, error) {
	var v T
	b, err := os.ReadFile(f.path)
	if err != nil {
		return v, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(b) == 0 {
		return v, fmt.Errorf("%s: %w", f.path, ErrEmpty)
	}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		return v, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return v, nil
}
