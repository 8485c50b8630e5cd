// Package container implements the .sanchez file format: a text metadata
// line, a fixed-width geometry/length line, and one line per frame in
// either a compressed (zlib+base64) or uncompressed (ASCII hex) encoding.
// Every line, including the last frame line, ends with a single '\n'.
package container

import (
	"encoding/json"
	"fmt"

	"github.com/cbx/sanchez/internal/errs"
)

// Metadata is the container's single JSON header line. All
// fields are strings; Seconds encodes duration as a decimal string rather
// than a numeric type so the container never loses precision round-tripping
// it through JSON.
type Metadata struct {
	Title     string `json:"title"`
	Creator   string `json:"creator"`
	CreatedAt string `json:"created_at"`
	Seconds   string `json:"seconds"`
}

// MarshalLine renders the metadata as the single-line JSON object written
// as line 1 of a .sanchez file, with no trailing whitespace.
func (m Metadata) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidJSON, err)
	}
	return b, nil
}

// ParseMetadata decodes the JSON metadata line. line must not include its
// trailing newline.
func ParseMetadata(line []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(line, &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", errs.ErrInvalidJSON, err)
	}
	return m, nil
}

// MaxWidth, MaxHeight, and MaxFrameCount are the declared field widths of
// the config line: width and height are 4-digit fields in
// [1, 9999], frame_count is a 7-digit field in [0, 9999999].
const (
	MaxWidth      = 9999
	MaxHeight     = 9999
	MaxFrameCount = 9_999_999
)

// ConfigLineLen is the exact byte length of the config line: width(4) +
// height(4) + frame_count(7).
const ConfigLineLen = 4 + 4 + 7

// Config is the container's geometry/length triple.
type Config struct {
	Width      int
	Height     int
	FrameCount int
}

// FrameSize returns the byte length of one row-major RGB frame under this
// config: width * height * 3.
func (c Config) FrameSize() int {
	return c.Width * c.Height * 3
}

// validateRange reports UnsupportedGeometry if width/height/frame_count
// fall outside their declared ranges. Used on read, where an
// out-of-range-but-well-formed line is a semantic error distinct from a
// malformed one.
func (c Config) validateRange() error {
	if c.Width < 1 || c.Width > MaxWidth {
		return fmt.Errorf("%w: width %d out of [1,%d]", errs.ErrUnsupportedGeometry, c.Width, MaxWidth)
	}
	if c.Height < 1 || c.Height > MaxHeight {
		return fmt.Errorf("%w: height %d out of [1,%d]", errs.ErrUnsupportedGeometry, c.Height, MaxHeight)
	}
	if c.FrameCount < 0 || c.FrameCount > MaxFrameCount {
		return fmt.Errorf("%w: frame_count %d out of [0,%d]", errs.ErrUnsupportedGeometry, c.FrameCount, MaxFrameCount)
	}
	return nil
}

// validateOverflow reports Overflow if a value about to be written would
// not fit in its declared field width. Distinct from validateRange: this
// is the write-side check a writer must perform before emitting a frame.
func (c Config) validateOverflow() error {
	if c.Width < 1 || c.Width > MaxWidth || c.Height < 1 || c.Height > MaxHeight {
		return fmt.Errorf("%w: geometry %dx%d exceeds 4-digit field width", errs.ErrOverflow, c.Width, c.Height)
	}
	if c.FrameCount < 0 || c.FrameCount > MaxFrameCount {
		return fmt.Errorf("%w: frame_count %d exceeds 7-digit field width", errs.ErrOverflow, c.FrameCount)
	}
	return nil
}

// MarshalLine renders the config as the exact 15-character config line
// (without trailing newline): WWWWHHHHFFFFFFF.
func (c Config) MarshalLine() (string, error) {
	if err := c.validateOverflow(); err != nil {
		return "", err
	}
	line := fmt.Sprintf("%04d%04d%07d", c.Width, c.Height, c.FrameCount)
	if len(line) != ConfigLineLen {
		// Unreachable given validateOverflow, but guards the invariant
		// the emitted config line is always exactly this many bytes.
		return "", fmt.Errorf("%w: produced %d-byte line", errs.ErrOverflow, len(line))
	}
	return line, nil
}

// ParseConfig decodes a config line. It is strictly positional: the line
// must be exactly 15 ASCII digits with no whitespace, and leading zeros are
// required. A malformed line (wrong length or a non-digit) is
// ErrInvalidConfig; a well-formed line whose values fall outside the
// declared ranges is ErrUnsupportedGeometry.
func ParseConfig(line string) (Config, error) {
	if len(line) != ConfigLineLen {
		return Config{}, fmt.Errorf("%w: line is %d bytes, want %d", errs.ErrInvalidConfig, len(line), ConfigLineLen)
	}
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return Config{}, fmt.Errorf("%w: non-digit byte at offset %d", errs.ErrInvalidConfig, i)
		}
	}

	width := atoi(line[0:4])
	height := atoi(line[4:8])
	frameCount := atoi(line[8:15])

	cfg := Config{Width: width, Height: height, FrameCount: frameCount}
	if err := cfg.validateRange(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// atoi parses a string of decimal digits already validated by the caller.
func atoi(digits string) int {
	n := 0
	for i := 0; i < len(digits); i++ {
		n = n*10 + int(digits[i]-'0')
	}
	return n
}
