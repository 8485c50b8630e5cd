package container

import (
	"fmt"

	"github.com/cbx/sanchez/codec"
	"github.com/cbx/sanchez/internal/errs"
)

// encodeFrameLine renders one frame's row-major RGB bytes as a container
// line body (without the trailing newline), in the chosen encoding.
func encodeFrameLine(pixels []byte, compress bool) (string, error) {
	if compress {
		deflated, err := codec.Deflate(pixels)
		if err != nil {
			return "", err
		}
		return codec.Base64Encode(deflated), nil
	}
	return "{" + codec.EncodeHexRow(pixels) + "}", nil
}

// decodeFrameLine decodes one frame line body back into row-major RGB
// bytes, dispatching on the first character: '{' means
// uncompressed, anything else means compressed.
func decodeFrameLine(line string, cfg Config) ([]byte, error) {
	if len(line) > 0 && line[0] == '{' {
		if line[len(line)-1] != '}' {
			return nil, fmt.Errorf("%w: uncompressed line missing closing '}'", errs.ErrTrailingData)
		}
		body := line[1 : len(line)-1]
		wantPixels := cfg.Width * cfg.Height
		return codec.DecodeHexRow(body, wantPixels)
	}

	raw, err := codec.Base64Decode(line)
	if err != nil {
		return nil, err
	}
	pixels, err := codec.Inflate(raw)
	if err != nil {
		return nil, err
	}
	if len(pixels) != cfg.FrameSize() {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", errs.ErrShortFrame, len(pixels), cfg.FrameSize())
	}
	return pixels, nil
}
