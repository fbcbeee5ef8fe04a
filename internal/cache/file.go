// Package cache stores synthesized prompt audio so each message is sent to
// the speech service at most once.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ivr/pkg/pcm"
)

// extensions tried by Get, in order. Clips of unknown format are stored
// without one.
var extensions = []string{".wav", ".mp3", ""}

// File keeps one clip per key in a directory, named after the clip's format
// (e.g. "welcome-0a1b2c3d.wav").
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (c *File) base(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(c.dir, key), nil
}

func (c *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	base, err := c.base(key)
	if err != nil {
		return nil, false, err
	}

	for _, ext := range extensions {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if len(data) == 0 {
			continue
		}
		return data, true, nil
	}
	return nil, false, nil
}

// Put writes through a temp file and rename so a crash never leaves a
// truncated clip behind.
func (c *File) Put(_ context.Context, key string, clip []byte) error {
	base, err := c.base(key)
	if err != nil {
		return err
	}

	ext := ""
	if format := pcm.Sniff(clip); format != "" {
		ext = "." + format
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(clip); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), base+ext); err != nil {
		return err
	}

	// drop a clip stored earlier under another format
	for _, other := range extensions {
		if other != ext {
			_ = os.Remove(base + other)
		}
	}
	return nil
}
