// Package wire implements the fixed-header binary packet format that
// carries .sanchez frames, audio, and control messages over the network:
// encode/decode of the big-endian header, CRC32 integrity check, and the
// packet type registry.
package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/cbx/sanchez/internal/errs"
)

// Magic is the fixed 4-byte constant that opens every wire packet. It is
// implementation-defined and stable across protocol versions.
const Magic = "SANC"

// Version is the current wire protocol version. Decode rejects any other
// value with ErrUnsupportedVersion.
const Version = 1

// HeaderSize is the fixed size, in bytes, of everything before the payload:
// magic(4) + version(1) + type(1) + seq(4) + ts_ns(8) + payload_len(4).
const HeaderSize = 4 + 1 + 1 + 4 + 8 + 4

// CRCSize is the size of the trailing CRC32 field.
const CRCSize = 4

// Type is a wire packet type code.
type Type byte

// Packet type codes.
const (
	TypeMetadata    Type = 0x01
	TypeConfig      Type = 0x02
	TypeFrameStart  Type = 0x10
	TypeFrameChunk  Type = 0x11
	TypeFrameEnd    Type = 0x12
	TypeSync        Type = 0x20
	TypeFECData     Type = 0x30
	TypeAudioConfig Type = 0x40
	TypeAudioChunk  Type = 0x41
	TypeEndStream   Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case TypeMetadata:
		return "METADATA"
	case TypeConfig:
		return "CONFIG"
	case TypeFrameStart:
		return "FRAME_START"
	case TypeFrameChunk:
		return "FRAME_CHUNK"
	case TypeFrameEnd:
		return "FRAME_END"
	case TypeSync:
		return "SYNC"
	case TypeFECData:
		return "FEC_DATA"
	case TypeAudioConfig:
		return "AUDIO_CONFIG"
	case TypeAudioChunk:
		return "AUDIO_CHUNK"
	case TypeEndStream:
		return "END_STREAM"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
	}
}

// knownTypes lists every type code this version defines. Decode flags any
// other code via UnknownTypeError rather than treating it as fatal.
var knownTypes = map[Type]bool{
	TypeMetadata: true, TypeConfig: true,
	TypeFrameStart: true, TypeFrameChunk: true, TypeFrameEnd: true,
	TypeSync: true, TypeFECData: true,
	TypeAudioConfig: true, TypeAudioChunk: true,
	TypeEndStream: true,
}

// Packet is a fully decoded wire packet.
type Packet struct {
	Type    Type
	Seq     uint32
	TSNanos uint64
	Payload []byte
}

// Encode assembles the wire representation of a packet: header, payload,
// then a CRC32 (IEEE polynomial) computed over the header and payload.
func Encode(t Type, seq uint32, tsNanos uint64, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload)+CRCSize)

	copy(buf[0:4], Magic)
	buf[4] = Version
	buf[5] = byte(t)
	binary.BigEndian.PutUint32(buf[6:10], seq)
	binary.BigEndian.PutUint64(buf[10:18], tsNanos)
	binary.BigEndian.PutUint32(buf[18:22], uint32(len(payload)))
	copy(buf[HeaderSize:HeaderSize+len(payload)], payload)

	sum := crc32.ChecksumIEEE(buf[:HeaderSize+len(payload)])
	binary.BigEndian.PutUint32(buf[HeaderSize+len(payload):], sum)

	return buf
}

// Decode parses a complete wire packet out of buf. If the type code is not
// one this version recognizes, Decode still returns the parsed Packet along
// with a non-nil *errs.UnknownTypeError — callers that don't care about
// type-level dispatch may ignore that error and use the packet as-is.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize+CRCSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, need at least %d", errs.ErrTruncated, len(buf), HeaderSize+CRCSize)
	}
	if string(buf[0:4]) != Magic {
		return Packet{}, fmt.Errorf("%w: got %q", errs.ErrBadMagic, buf[0:4])
	}
	if buf[4] != Version {
		return Packet{}, fmt.Errorf("%w: got %d, want %d", errs.ErrUnsupportedVersion, buf[4], Version)
	}

	t := Type(buf[5])
	seq := binary.BigEndian.Uint32(buf[6:10])
	ts := binary.BigEndian.Uint64(buf[10:18])
	payloadLen := binary.BigEndian.Uint32(buf[18:22])

	want := HeaderSize + int(payloadLen) + CRCSize
	if len(buf) < want {
		return Packet{}, fmt.Errorf("%w: have %d bytes, want %d", errs.ErrTruncated, len(buf), want)
	}
	if len(buf) != want {
		return Packet{}, fmt.Errorf("%w: have %d bytes, want exactly %d", errs.ErrLengthMismatch, len(buf), want)
	}

	payload := buf[HeaderSize : HeaderSize+int(payloadLen)]
	gotCRC := binary.BigEndian.Uint32(buf[HeaderSize+int(payloadLen):])
	wantCRC := crc32.ChecksumIEEE(buf[:HeaderSize+int(payloadLen)])
	if gotCRC != wantCRC {
		return Packet{}, fmt.Errorf("%w: got 0x%08X, want 0x%08X", errs.ErrChecksumMismatch, gotCRC, wantCRC)
	}

	// Copy the payload out so the returned Packet does not alias buf. An
	// empty payload decodes as nil.
	var payloadCopy []byte
	if len(payload) > 0 {
		payloadCopy = make([]byte, len(payload))
		copy(payloadCopy, payload)
	}

	p := Packet{Type: t, Seq: seq, TSNanos: ts, Payload: payloadCopy}
	if !knownTypes[t] {
		return p, &errs.UnknownTypeError{Code: byte(t)}
	}
	return p, nil
}

// Size returns the total wire size of a packet with the given payload length.
func Size(payloadLen int) int {
	return HeaderSize + payloadLen + CRCSize
}
