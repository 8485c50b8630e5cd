package container

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbx/sanchez/internal/errs"
)

func TestConfigLineWidthIsAlways15Bytes(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{Width: 1, Height: 1, FrameCount: 0},
		{Width: 2, Height: 2, FrameCount: 1},
		{Width: 9999, Height: 9999, FrameCount: 9_999_999},
	}
	for _, cfg := range cases {
		line, err := cfg.MarshalLine()
		require.NoError(t, err)
		require.Len(t, line, ConfigLineLen)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := Config{Width: 2, Height: 2, FrameCount: 1}
	line, err := cfg.MarshalLine()
	require.NoError(t, err)
	require.Equal(t, "000200020000001", line)

	got, err := ParseConfig(line)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestParseConfigRejectsWrongLength(t *testing.T) {
	t.Parallel()
	_, err := ParseConfig("0002000200001")
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestParseConfigRejectsNonDigit(t *testing.T) {
	t.Parallel()
	_, err := ParseConfig("00A200020000001")
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestParseConfigRejectsOutOfRangeGeometry(t *testing.T) {
	t.Parallel()
	_, err := ParseConfig("000000020000001") // width 0
	require.ErrorIs(t, err, errs.ErrUnsupportedGeometry)
}

func TestWriteRejectsOverflow(t *testing.T) {
	t.Parallel()
	cfg := Config{Width: 10000, Height: 2, FrameCount: 0}
	_, err := cfg.MarshalLine()
	require.ErrorIs(t, err, errs.ErrOverflow)
}

// single-frame file, compressed.
func TestSingleFrameCompressedRoundTrip(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "0.04"}
	cfg := Config{Width: 2, Height: 2, FrameCount: 1}
	frame := []byte{
		0xFF, 0x00, 0x00,
		0x00, 0xFF, 0x00,
		0x00, 0x00, 0xFF,
		0xFF, 0xFF, 0xFF,
	}

	var buf bytes.Buffer
	err := Write(&buf, meta, cfg, NewSliceIterator([][]byte{frame}), true)
	require.NoError(t, err)

	r := bufio.NewReader(&buf)
	gotMeta, gotCfg, err := ReadHeader(r)
	require.NoError(t, err)
	require.Equal(t, meta, gotMeta)
	require.Equal(t, cfg, gotCfg)

	line, err := gotCfg.MarshalLine()
	require.NoError(t, err)
	require.Equal(t, "000200020000001", line)

	got, err := ReadFrame(r, gotCfg)
	require.NoError(t, err)
	require.Equal(t, frame, got)

	_, err = ReadFrame(r, gotCfg)
	require.ErrorIs(t, err, io.EOF)
}

// same file, uncompressed.
func TestSingleFrameUncompressedRoundTrip(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "0.04"}
	cfg := Config{Width: 2, Height: 2, FrameCount: 1}
	frame := []byte{
		0xFF, 0x00, 0x00,
		0x00, 0xFF, 0x00,
		0x00, 0x00, 0xFF,
		0xFF, 0xFF, 0xFF,
	}

	var buf bytes.Buffer
	err := Write(&buf, meta, cfg, NewSliceIterator([][]byte{frame}), false)
	require.NoError(t, err)

	lines := bytes.Split(buf.Bytes(), []byte("\n"))
	require.Equal(t, "{FF0000,00FF00,0000FF,FFFFFF}", string(lines[2]))

	r := bufio.NewReader(&buf)
	_, gotCfg, err := ReadHeader(r)
	require.NoError(t, err)

	got, err := ReadFrame(r, gotCfg)
	require.NoError(t, err)
	require.Equal(t, frame, got)
}

// geometry mismatch aborts before writing the bad line.
func TestWriteGeometryMismatchWritesNothingBeyondHeader(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "1"}
	cfg := Config{Width: 2, Height: 2, FrameCount: 1}
	badFrame := make([]byte, 3*2*3) // shaped for a 3x2 frame, not 2x2

	var buf bytes.Buffer
	err := Write(&buf, meta, cfg, NewSliceIterator([][]byte{badFrame}), true)
	require.ErrorIs(t, err, errs.ErrGeometryMismatch)

	r := bufio.NewReader(&buf)
	_, _, err = ReadHeader(r)
	require.NoError(t, err)
	_, err = r.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestWriteFrameCountMismatch(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "1"}
	cfg := Config{Width: 1, Height: 1, FrameCount: 2}
	frame := make([]byte, 3)

	var buf bytes.Buffer
	err := Write(&buf, meta, cfg, NewSliceIterator([][]byte{frame}), true)
	require.ErrorIs(t, err, errs.ErrFrameCountMismatch)
}

func TestMixedEncodingFileReadsBothLines(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "1"}
	cfg := Config{Width: 1, Height: 1, FrameCount: 2}
	red := []byte{0xFF, 0x00, 0x00}
	green := []byte{0x00, 0xFF, 0x00}

	var buf bytes.Buffer
	metaLine, err := meta.MarshalLine()
	require.NoError(t, err)
	buf.Write(metaLine)
	buf.WriteByte('\n')
	cfgLine, err := cfg.MarshalLine()
	require.NoError(t, err)
	buf.WriteString(cfgLine)
	buf.WriteByte('\n')
	buf.WriteString("{FF0000}\n")

	compressedLine, err := encodeFrameLine(green, true)
	require.NoError(t, err)
	buf.WriteString(compressedLine)
	buf.WriteByte('\n')

	r := bufio.NewReader(&buf)
	_, gotCfg, err := ReadHeader(r)
	require.NoError(t, err)

	f1, err := ReadFrame(r, gotCfg)
	require.NoError(t, err)
	require.Equal(t, red, f1)

	f2, err := ReadFrame(r, gotCfg)
	require.NoError(t, err)
	require.Equal(t, green, f2)
}

func TestShortFrameUncompressed(t *testing.T) {
	t.Parallel()
	cfg := Config{Width: 2, Height: 2, FrameCount: 1}
	_, err := decodeFrameLine("{FF0000,00FF00}", cfg)
	require.ErrorIs(t, err, errs.ErrShortFrame)
}

func TestBuildIndexRandomAccess(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "1"}
	cfg := Config{Width: 1, Height: 1, FrameCount: 3}
	frames := [][]byte{
		{0xFF, 0x00, 0x00},
		{0x00, 0xFF, 0x00},
		{0x00, 0x00, 0xFF},
	}

	f, err := os.CreateTemp(t.TempDir(), "idx-*.sanchez")
	require.NoError(t, err)
	defer f.Close()

	err = Write(f, meta, cfg, NewSliceIterator(frames), true)
	require.NoError(t, err)

	idx, err := BuildIndex(f)
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	// Out-of-order access, exercising true random access rather than
	// incidental forward iteration.
	got2, err := idx.Frame(2)
	require.NoError(t, err)
	require.Equal(t, frames[2], got2)

	got0, err := idx.Frame(0)
	require.NoError(t, err)
	require.Equal(t, frames[0], got0)

	got1, err := idx.Frame(1)
	require.NoError(t, err)
	require.Equal(t, frames[1], got1)
}

func TestBuildInfoComputesFPSAndDuration(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: "2"}
	cfg := Config{Width: 4, Height: 4, FrameCount: 48}

	info := BuildInfo(meta, cfg, 12345)
	require.Equal(t, 24.0, info.FPS)
	require.Equal(t, 2.0, info.DurationSeconds)
	require.Equal(t, int64(12345), info.FileSizeBytes)
}

func TestBuildInfoDefaultsFPSWhenSecondsMissing(t *testing.T) {
	t.Parallel()

	meta := Metadata{Title: "t", Creator: "c", CreatedAt: "2026-01-02T01:30:43Z", Seconds: ""}
	cfg := Config{Width: 4, Height: 4, FrameCount: 48}

	info := BuildInfo(meta, cfg, 0)
	require.Equal(t, DefaultFPS, info.FPS)
}
