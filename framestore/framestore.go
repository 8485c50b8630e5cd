// Package framestore provides an in-memory, append-only collection of
// fixed-geometry RGB frames, shared by the container writer and the stream
// server as the frame source they iterate.
package framestore

import (
	"fmt"

	"github.com/cbx/sanchez/container"
	"github.com/cbx/sanchez/internal/errs"
)

// Store holds frames sharing one (width, height) geometry, enforced at
// construction and on every Push. It owns its pixel buffers; Get and Iter
// expose references whose lifetime is bounded by the Store.
type Store struct {
	width, height int
	frames        [][]byte
}

// New creates an empty Store fixed to the given geometry.
func New(width, height int) *Store {
	return &Store{width: width, height: height}
}

// Width returns the store's fixed frame width.
func (s *Store) Width() int { return s.width }

// Height returns the store's fixed frame height.
func (s *Store) Height() int { return s.height }

// Push appends frame, which must be exactly width*height*3 row-major RGB
// bytes. Returns ErrGeometryMismatch otherwise.
func (s *Store) Push(frame []byte) error {
	want := s.width * s.height * 3
	if len(frame) != want {
		return fmt.Errorf("%w: frame is %d bytes, want %d for %dx%d", errs.ErrGeometryMismatch, len(frame), want, s.width, s.height)
	}
	s.frames = append(s.frames, frame)
	return nil
}

// Len returns the number of frames currently stored.
func (s *Store) Len() int {
	return len(s.frames)
}

// Get returns the frame at index i.
func (s *Store) Get(i int) ([]byte, error) {
	if i < 0 || i >= len(s.frames) {
		return nil, fmt.Errorf("sanchez: frame index %d out of range [0,%d)", i, len(s.frames))
	}
	return s.frames[i], nil
}

// Config returns the (width, height, frame_count) triple matching the
// store's current contents, suitable for container.Write.
func (s *Store) Config() container.Config {
	return container.Config{Width: s.width, Height: s.height, FrameCount: len(s.frames)}
}

// Iter returns a FrameIterator over the store's frames in insertion order,
// as a snapshot of its length at call time.
func (s *Store) Iter() container.FrameIterator {
	return &storeIterator{store: s, limit: len(s.frames)}
}

type storeIterator struct {
	store *Store
	pos   int
	limit int
}

func (it *storeIterator) Next() ([]byte, bool, error) {
	if it.pos >= it.limit {
		return nil, false, nil
	}
	f := it.store.frames[it.pos]
	it.pos++
	return f, true, nil
}
