// Package testutil provides fixture files and golden comparisons for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}

// TempFile writes content to name inside a fresh temporary directory.
func TempFile(t *testing.T, name, content string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), name, content)
}

// Tree writes every name/content pair under a fresh temporary directory and
// returns it. Names may contain slashes.
func Tree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		WriteFile(t, dir, filepath.FromSlash(name), content)
	}
	return dir
}
