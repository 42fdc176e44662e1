package network_persistor

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFile is the supplicant's persistent configuration. The connect
// procedure snapshots it before touching the adapter and writes the
// snapshot back if the new network never comes up.
type ConfigFile interface {
	// Read returns an error wrapping os.ErrNotExist when there is no file.
	Read() (string, error)
	Write(contents string) error
	Path() string
}

func NewConfigFile(path string) ConfigFile {
	return SupplicantConfig{path: path}
}

var _ ConfigFile = SupplicantConfig{}

type SupplicantConfig struct {
	path string
}

func (t SupplicantConfig) Path() string {
	return t.path
}

func (t SupplicantConfig) Read() (string, error) {
	b, err := os.ReadFile(t.path)
	if err != nil {
		return "", fmt.Errorf("cannot read %q: %w", t.path, err)
	}
	return string(b), nil
}

// Write replaces the file atomically. The temp file lives next to the
// target so the rename never crosses a filesystem.
func (t SupplicantConfig) Write(contents string) error {
	mode := os.FileMode(0o600)
	if fi, err := os.Stat(t.path); err == nil {
		mode = fi.Mode().Perm()
	}

	tempFile, err := os.CreateTemp(filepath.Dir(t.path), ".wpa_supplicant.conf.*")
	if err != nil {
		return fmt.Errorf("cannot create temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.WriteString(contents); err != nil {
		tempFile.Close()
		return fmt.Errorf("cannot write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("cannot sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("cannot close temporary file: %w", err)
	}

	if err := os.Chmod(tempFile.Name(), mode); err != nil {
		return fmt.Errorf("cannot chmod temporary file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), t.path); err != nil {
		return fmt.Errorf("cannot rename temporary file to %q: %w", t.path, err)
	}

	return nil
}
