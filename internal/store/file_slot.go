package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileSlot stores a slot as a JSON file next to other Chime data.
// Writes go through a temp file and rename, so readers never see a torn slot.
type FileSlot struct {
	path string
	name string
}

// OpenFileSlot prepares <dir>/<name>.json. The file itself is created lazily.
func OpenFileSlot(dir, name string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileSlot{path: filepath.Join(dir, name+".json"), name: name}, nil
}

// Name returns the slot identifier.
func (f *FileSlot) Name() string {
	return f.name
}

// Path returns the backing file path.
func (f *FileSlot) Path() string {
	return f.path
}

// Load reads the slot file.
func (f *FileSlot) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot file: %w", err)
	}
	return data, nil
}

// Save atomically replaces the slot file.
func (f *FileSlot) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write slot file: %w", err)
	}
	return nil
}

// Close is a no-op; files are not held open between writes.
func (f *FileSlot) Close() error {
	return nil
}

// Ping checks that the slot directory is still reachable.
func (f *FileSlot) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(f.path))
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", filepath.Dir(f.path))
	}
	return nil
}
