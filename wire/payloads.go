package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/cbx/sanchez/internal/errs"
)

// FrameStart is the payload of a FRAME_START packet.
type FrameStart struct {
	FrameIndex uint32
	TotalBytes uint32
	ChunkCount uint32
}

func (f FrameStart) Encode() []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], f.FrameIndex)
	binary.BigEndian.PutUint32(buf[4:8], f.TotalBytes)
	binary.BigEndian.PutUint32(buf[8:12], f.ChunkCount)
	return buf
}

func DecodeFrameStart(payload []byte) (FrameStart, error) {
	if len(payload) != 12 {
		return FrameStart{}, fmt.Errorf("%w: FRAME_START payload is %d bytes, want 12", errs.ErrLengthMismatch, len(payload))
	}
	return FrameStart{
		FrameIndex: binary.BigEndian.Uint32(payload[0:4]),
		TotalBytes: binary.BigEndian.Uint32(payload[4:8]),
		ChunkCount: binary.BigEndian.Uint32(payload[8:12]),
	}, nil
}

// FrameChunk is the payload of a FRAME_CHUNK packet: the (frame_index,
// chunk_index) prefix followed by a slice of the frame's deflated bytes.
type FrameChunk struct {
	FrameIndex uint32
	ChunkIndex uint32
	Data       []byte
}

func (c FrameChunk) Encode() []byte {
	buf := make([]byte, 8+len(c.Data))
	binary.BigEndian.PutUint32(buf[0:4], c.FrameIndex)
	binary.BigEndian.PutUint32(buf[4:8], c.ChunkIndex)
	copy(buf[8:], c.Data)
	return buf
}

func DecodeFrameChunk(payload []byte) (FrameChunk, error) {
	if len(payload) < 8 {
		return FrameChunk{}, fmt.Errorf("%w: FRAME_CHUNK payload is %d bytes, want at least 8", errs.ErrLengthMismatch, len(payload))
	}
	return FrameChunk{
		FrameIndex: binary.BigEndian.Uint32(payload[0:4]),
		ChunkIndex: binary.BigEndian.Uint32(payload[4:8]),
		Data:       payload[8:],
	}, nil
}

// FrameEnd is the payload of a FRAME_END packet.
type FrameEnd struct {
	FrameIndex uint32
	CRC32      uint32
}

func (e FrameEnd) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], e.FrameIndex)
	binary.BigEndian.PutUint32(buf[4:8], e.CRC32)
	return buf
}

func DecodeFrameEnd(payload []byte) (FrameEnd, error) {
	if len(payload) != 8 {
		return FrameEnd{}, fmt.Errorf("%w: FRAME_END payload is %d bytes, want 8", errs.ErrLengthMismatch, len(payload))
	}
	return FrameEnd{
		FrameIndex: binary.BigEndian.Uint32(payload[0:4]),
		CRC32:      binary.BigEndian.Uint32(payload[4:8]),
	}, nil
}

// Sync is the payload of a SYNC packet.
type Sync struct {
	ServerTS   uint64
	FrameIndex uint32
}

func (s Sync) Encode() []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[0:8], s.ServerTS)
	binary.BigEndian.PutUint32(buf[8:12], s.FrameIndex)
	return buf
}

func DecodeSync(payload []byte) (Sync, error) {
	if len(payload) != 12 {
		return Sync{}, fmt.Errorf("%w: SYNC payload is %d bytes, want 12", errs.ErrLengthMismatch, len(payload))
	}
	return Sync{
		ServerTS:   binary.BigEndian.Uint64(payload[0:8]),
		FrameIndex: binary.BigEndian.Uint32(payload[8:12]),
	}, nil
}

// FECData is the payload of a FEC_DATA packet: the XOR parity of a group
// of chunk payloads, each zero-padded to MemberLength before XORing.
type FECData struct {
	GroupID      uint32
	MemberCount  uint32
	MemberLength uint32
	Parity       []byte
}

func (f FECData) Encode() []byte {
	buf := make([]byte, 12+len(f.Parity))
	binary.BigEndian.PutUint32(buf[0:4], f.GroupID)
	binary.BigEndian.PutUint32(buf[4:8], f.MemberCount)
	binary.BigEndian.PutUint32(buf[8:12], f.MemberLength)
	copy(buf[12:], f.Parity)
	return buf
}

func DecodeFECData(payload []byte) (FECData, error) {
	if len(payload) < 12 {
		return FECData{}, fmt.Errorf("%w: FEC_DATA payload is %d bytes, want at least 12", errs.ErrLengthMismatch, len(payload))
	}
	memberLength := binary.BigEndian.Uint32(payload[8:12])
	parity := payload[12:]
	if uint32(len(parity)) != memberLength {
		return FECData{}, fmt.Errorf("%w: FEC_DATA parity is %d bytes, want member_length %d", errs.ErrLengthMismatch, len(parity), memberLength)
	}
	return FECData{
		GroupID:      binary.BigEndian.Uint32(payload[0:4]),
		MemberCount:  binary.BigEndian.Uint32(payload[4:8]),
		MemberLength: memberLength,
		Parity:       parity,
	}, nil
}

// AudioConfig is the payload of an AUDIO_CONFIG packet.
type AudioConfig struct {
	CodecTag   uint32
	TotalBytes uint32
}

func (a AudioConfig) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], a.CodecTag)
	binary.BigEndian.PutUint32(buf[4:8], a.TotalBytes)
	return buf
}

func DecodeAudioConfig(payload []byte) (AudioConfig, error) {
	if len(payload) != 8 {
		return AudioConfig{}, fmt.Errorf("%w: AUDIO_CONFIG payload is %d bytes, want 8", errs.ErrLengthMismatch, len(payload))
	}
	return AudioConfig{
		CodecTag:   binary.BigEndian.Uint32(payload[0:4]),
		TotalBytes: binary.BigEndian.Uint32(payload[4:8]),
	}, nil
}

// AudioChunk is the payload of an AUDIO_CHUNK packet.
type AudioChunk struct {
	Offset uint32
	Data   []byte
}

func (c AudioChunk) Encode() []byte {
	buf := make([]byte, 4+len(c.Data))
	binary.BigEndian.PutUint32(buf[0:4], c.Offset)
	copy(buf[4:], c.Data)
	return buf
}

func DecodeAudioChunk(payload []byte) (AudioChunk, error) {
	if len(payload) < 4 {
		return AudioChunk{}, fmt.Errorf("%w: AUDIO_CHUNK payload is %d bytes, want at least 4", errs.ErrLengthMismatch, len(payload))
	}
	return AudioChunk{
		Offset: binary.BigEndian.Uint32(payload[0:4]),
		Data:   payload[4:],
	}, nil
}
