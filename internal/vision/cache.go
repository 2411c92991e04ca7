package vision

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Cache is the plain text file holding the latest scene description.
// Each write replaces the whole file.
type Cache struct {
	path string
}

func NewCache(path string) *Cache { return &Cache{path: path} }

func (c *Cache) Path() string { return c.path }

// Read returns the cached description, or "" if there is none.
func (c *Cache) Read() (string, error) {
	if c == nil || c.path == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (c *Cache) Write(description string) error {
	if c == nil || c.path == "" {
		return nil
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.WriteString(description); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
