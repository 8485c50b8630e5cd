// Package codec implements the low-level byte-conversion primitives shared
// by the container codec and the stream server and client: RGB-to-hex-ASCII conversion,
// zlib deflate/inflate, and base64 encoding, all operating on plain byte
// slices with no knowledge of the container's line framing.
package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/cbx/sanchez/internal/errs"
)

// Deflate compresses data with zlib, the compression used for the
// container's per-frame "compressed" line encoding.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrZlib, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrZlib, err)
	}
	return buf.Bytes(), nil
}

// Inflate decompresses zlib-compressed data.
func Inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrZlib, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrZlib, err)
	}
	return out, nil
}

// Base64Encode encodes data using standard base64, with no surrounding
// punctuation or line wrapping — the raw text that appears on a compressed
// frame line.
func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64Decode decodes standard base64 text, ignoring any trailing
// whitespace (including the line's trailing newline).
func Base64Decode(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, " \t\r\n")
	out, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrBase64, err)
	}
	return out, nil
}

// EncodeHexRow renders width*height RGB triples as the uncompressed frame
// line body (without the surrounding '{' '}'): comma-separated six-digit
// uppercase hex triples in row-major order.
func EncodeHexRow(pixels []byte) string {
	n := len(pixels) / 3
	var b strings.Builder
	b.Grow(n*7 - 1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		triple := pixels[i*3 : i*3+3]
		b.WriteString(strings.ToUpper(hex.EncodeToString(triple)))
	}
	return b.String()
}

// DecodeHexRow parses the comma-separated six-hex-char tokens between the
// '{' and '}' of an uncompressed frame line into row-major RGB bytes.
// Accepts either letter case. Returns ErrShortFrame if the token count
// disagrees with wantPixels.
func DecodeHexRow(body string, wantPixels int) ([]byte, error) {
	var tokens []string
	if body == "" {
		tokens = nil
	} else {
		tokens = strings.Split(body, ",")
	}
	if len(tokens) != wantPixels {
		return nil, fmt.Errorf("%w: got %d tokens, want %d", errs.ErrShortFrame, len(tokens), wantPixels)
	}

	out := make([]byte, wantPixels*3)
	for i, tok := range tokens {
		if len(tok) != 6 {
			return nil, fmt.Errorf("%w: token %d has length %d, want 6", errs.ErrHex, i, len(tok))
		}
		triple, err := hex.DecodeString(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d: %v", errs.ErrHex, i, err)
		}
		copy(out[i*3:i*3+3], triple)
	}
	return out, nil
}
