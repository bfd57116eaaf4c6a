package stream

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// SlotStore persists fetched frames into a fixed ring of local files so
// disk use stays bounded however long the session runs.
type SlotStore struct {
	fs      afero.Fs
	dir     string
	pattern string
	width   int
}

// NewSlotStore prepares dir on fs for width slots named by pattern, which
// must contain a single %d verb.
func NewSlotStore(fs afero.Fs, dir, pattern string, width int) (*SlotStore, error) {
	if width < 1 {
		return nil, fmt.Errorf("rotation width must be at least 1, got %d", width)
	}
	if strings.Count(pattern, "%d") != 1 {
		return nil, fmt.Errorf("slot pattern %q must contain exactly one %%d", pattern)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	return &SlotStore{fs: fs, dir: dir, pattern: pattern, width: width}, nil
}

func (s *SlotStore) Width() int { return s.width }

func (s *SlotStore) Dir() string { return s.dir }

// Path is the file backing slot.
func (s *SlotStore) Path(slot int) string {
	return filepath.Join(s.dir, fmt.Sprintf(s.pattern, slot))
}

func (s *SlotStore) check(slot int, op string) error {
	if slot < 0 || slot >= s.width {
		return &StoreError{Slot: slot, Op: op, Err: fmt.Errorf("out of range [0,%d)", s.width)}
	}
	return nil
}

// Write replaces the contents of slot with data. The bytes land in a
// temporary file first, so a reader never sees a partially written slot.
func (s *SlotStore) Write(slot int, data []byte) error {
	if err := s.check(slot, "write"); err != nil {
		return err
	}

	final := s.Path(slot)
	tmp := final + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return &StoreError{Slot: slot, Op: "write", Err: err}
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return &StoreError{Slot: slot, Op: "write", Err: err}
	}
	return nil
}

// SlotReader is an open slot positioned at its first byte.
type SlotReader interface {
	io.ReadSeeker
	io.Closer
}

// Open returns the current contents of slot.
func (s *SlotStore) Open(slot int) (SlotReader, error) {
	if err := s.check(slot, "open"); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(s.Path(slot))
	if err != nil {
		return nil, &StoreError{Slot: slot, Op: "open", Err: err}
	}
	return f, nil
}

// CheckWritable checks that the slot directory accepts writes.
func (s *SlotStore) CheckWritable() error {
	f, err := afero.TempFile(s.fs, s.dir, ".writecheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return s.fs.Remove(name)
}
