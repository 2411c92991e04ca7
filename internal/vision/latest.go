package vision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoScreenshot means the screenshot directory holds no images.
var ErrNoScreenshot = errors.New("vision: no screenshot found")

// Shot is one screenshot file on disk.
type Shot struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// ID identifies a file version: same path, mtime and size is the same shot.
func (s Shot) ID() string {
	return fmt.Sprintf("%s@%d:%d", s.Path, s.ModTime.UnixNano(), s.Size)
}

func IsImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// List returns the images in dir, newest first. Equal modification times
// are ordered by name, greatest first.
func List(dir string) ([]Shot, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	shots := make([]Shot, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		shots = append(shots, Shot{Path: filepath.Join(dir, e.Name()), ModTime: info.ModTime(), Size: info.Size()})
	}
	sort.Slice(shots, func(i, j int) bool {
		if !shots[i].ModTime.Equal(shots[j].ModTime) {
			return shots[i].ModTime.After(shots[j].ModTime)
		}
		return shots[i].Path > shots[j].Path
	})
	return shots, nil
}

// Latest returns the most recently modified image in dir.
func Latest(dir string) (Shot, error) {
	shots, err := List(dir)
	if err != nil {
		return Shot{}, err
	}
	if len(shots) == 0 {
		return Shot{}, ErrNoScreenshot
	}
	return shots[0], nil
}

// Prune deletes all but the keep newest images and returns how many were removed.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	shots, err := List(dir)
	if err != nil || len(shots) <= keep {
		return 0, err
	}
	removed := 0
	var firstErr error
	for _, s := range shots[keep:] {
		if err := os.Remove(s.Path); err != nil {
			if firstErr == nil && !errors.Is(err, fs.ErrNotExist) {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
