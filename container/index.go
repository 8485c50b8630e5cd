package container

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Index provides index-addressable random access over a file-backed
// .sanchez container by recording each frame line's byte offset on a
// single forward pass. The underlying FrameIterator is finite and
// non-restartable; Index is the escape hatch for callers that
// need to seek by frame index without assuming rewindability of the
// iterator itself — it pays for a second read, not a second decode.
type Index struct {
	file    *os.File
	meta    Metadata
	cfg     Config
	offsets []int64
}

// BuildIndex reads f's header and scans its frame lines, recording each
// line's starting byte offset without decoding it. f must support Seek.
func BuildIndex(f *os.File) (*Index, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	r := bufio.NewReader(f)
	meta, cfg, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	idx := &Index{file: f, meta: meta, cfg: cfg, offsets: make([]int64, 0, cfg.FrameCount)}

	offset, err := currentOffset(f, r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cfg.FrameCount; i++ {
		idx.offsets = append(idx.offsets, offset)
		line, err := readLine(r)
		if err != nil {
			return nil, fmt.Errorf("sanchez: indexing frame %d: %w", i, err)
		}
		offset += int64(len(line)) + 1 // +1 for the stripped newline
	}

	return idx, nil
}

// currentOffset returns the file offset corresponding to r's current read
// position, accounting for bytes buffered but not yet consumed.
func currentOffset(f *os.File, r *bufio.Reader) (int64, error) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return pos - int64(r.Buffered()), nil
}

// Len returns the number of frames in the index.
func (idx *Index) Len() int {
	return len(idx.offsets)
}

// Metadata returns the container's header metadata.
func (idx *Index) Metadata() Metadata {
	return idx.meta
}

// Config returns the container's geometry/length triple.
func (idx *Index) Config() Config {
	return idx.cfg
}

// Frame decodes and returns the frame at index i by seeking directly to
// its recorded offset, without decoding any other frame.
func (idx *Index) Frame(i int) ([]byte, error) {
	if i < 0 || i >= len(idx.offsets) {
		return nil, fmt.Errorf("sanchez: frame index %d out of range [0,%d)", i, len(idx.offsets))
	}
	if _, err := idx.file.Seek(idx.offsets[i], io.SeekStart); err != nil {
		return nil, err
	}
	r := bufio.NewReader(idx.file)
	return ReadFrame(r, idx.cfg)
}
