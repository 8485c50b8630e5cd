package container

import (
	"fmt"
	"io"

	"github.com/cbx/sanchez/internal/errs"
)

// FrameIterator yields row-major RGB frames one at a time. Next returns
// ok=false once exhausted; a non-nil err is always terminal. Implementations
// are finite and non-restartable: once exhausted, a FrameIterator
// must not be reused.
type FrameIterator interface {
	Next() (frame []byte, ok bool, err error)
}

// SliceIterator adapts an in-memory slice of frames to a FrameIterator,
// primarily for tests and small in-memory encodes.
type SliceIterator struct {
	frames [][]byte
	pos    int
}

// NewSliceIterator creates a FrameIterator over frames.
func NewSliceIterator(frames [][]byte) *SliceIterator {
	return &SliceIterator{frames: frames}
}

func (s *SliceIterator) Next() ([]byte, bool, error) {
	if s.pos >= len(s.frames) {
		return nil, false, nil
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true, nil
}

// Write emits the metadata line, the config line, then one line per frame
// pulled from frames, in the chosen encoding. It returns
// GeometryMismatch if a frame's length disagrees with cfg's declared
// width*height*3, Overflow if cfg's fields don't fit their declared field
// widths, and ErrFrameCountMismatch if the number of frames actually
// produced by frames disagrees with cfg.FrameCount.
func Write(w io.Writer, meta Metadata, cfg Config, frames FrameIterator, compress bool) error {
	metaLine, err := meta.MarshalLine()
	if err != nil {
		return err
	}
	if _, err := w.Write(append(metaLine, '\n')); err != nil {
		return err
	}

	cfgLine, err := cfg.MarshalLine()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, cfgLine+"\n"); err != nil {
		return err
	}

	wantSize := cfg.FrameSize()
	written := 0
	for {
		frame, ok, err := frames.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if len(frame) != wantSize {
			return fmt.Errorf("%w: frame %d is %d bytes, want %d", errs.ErrGeometryMismatch, written, len(frame), wantSize)
		}

		line, err := encodeFrameLine(frame, compress)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
		written++
	}

	if written != cfg.FrameCount {
		return fmt.Errorf("%w: wrote %d frames, config declares %d", errs.ErrFrameCountMismatch, written, cfg.FrameCount)
	}
	return nil
}
