package container

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cbx/sanchez/internal/errs"
)

// ReadHeader consumes exactly two lines from source — the metadata JSON
// line and the config line — and returns them decoded.
func ReadHeader(source *bufio.Reader) (Metadata, Config, error) {
	metaLine, err := readLine(source)
	if err != nil {
		return Metadata{}, Config{}, fmt.Errorf("%w: reading metadata line: %v", errs.ErrMalformedHeader, err)
	}
	meta, err := ParseMetadata(metaLine)
	if err != nil {
		return Metadata{}, Config{}, err
	}

	cfgLine, err := readLine(source)
	if err != nil {
		return Metadata{}, Config{}, fmt.Errorf("%w: reading config line: %v", errs.ErrMalformedHeader, err)
	}
	cfg, err := ParseConfig(string(cfgLine))
	if err != nil {
		return Metadata{}, Config{}, err
	}

	return meta, cfg, nil
}

// ReadFrame consumes and decodes one frame line. It returns io.EOF once
// source is exhausted.
func ReadFrame(source *bufio.Reader, cfg Config) ([]byte, error) {
	line, err := readLine(source)
	if err != nil {
		return nil, err
	}
	return decodeFrameLine(string(line), cfg)
}

// readLine reads up to and including the next '\n', stripping it (and any
// preceding '\r') from the returned bytes. It returns io.EOF only when no
// bytes at all were read before end of stream.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			if len(line) == 0 {
				return nil, io.EOF
			}
			// Final line with no trailing newline: still usable.
			return trimEOL(line), nil
		}
		return nil, err
	}
	return trimEOL(line), nil
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// frameReaderIterator adapts a streaming *bufio.Reader into a FrameIterator
// bound to a fixed Config: a lazy, finite, non-restartable sequence of
// frames.
type frameReaderIterator struct {
	source *bufio.Reader
	cfg    Config
	remain int
}

// Frames returns a lazy FrameIterator over the container's remaining frame
// lines (up to cfg.FrameCount of them). The iterator is finite and
// non-restartable: once cfg.FrameCount frames have been read, Next reports
// exhaustion without reading source again, and any bytes left in source are
// not examined.
func Frames(source *bufio.Reader, cfg Config) FrameIterator {
	return &frameReaderIterator{source: source, cfg: cfg, remain: cfg.FrameCount}
}

func (it *frameReaderIterator) Next() ([]byte, bool, error) {
	if it.remain <= 0 {
		return nil, false, nil
	}
	frame, err := ReadFrame(it.source, it.cfg)
	if err != nil {
		return nil, false, err
	}
	it.remain--
	return frame, true, nil
}
