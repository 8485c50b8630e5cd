package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbx/sanchez/internal/errs"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		typ     Type
		seq     uint32
		ts      uint64
		payload []byte
	}{
		{"empty payload", TypeEndStream, 0, 0, nil},
		{"metadata", TypeMetadata, 1, 1234, []byte(`{"title":"t"}`)},
		{"frame chunk", TypeFrameChunk, 42, 999999999, []byte{1, 2, 3, 4, 5}},
		{"max seq", TypeSync, 0xFFFFFFFF, 0xFFFFFFFFFFFFFFFF, []byte{0xAA}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			buf := Encode(tc.typ, tc.seq, tc.ts, tc.payload)
			pkt, err := Decode(buf)
			require.NoError(t, err)
			require.Equal(t, tc.typ, pkt.Type)
			require.Equal(t, tc.seq, pkt.Seq)
			require.Equal(t, tc.ts, pkt.TSNanos)
			require.Equal(t, tc.payload, pkt.Payload)
		})
	}
}

func TestDecodeBadMagic(t *testing.T) {
	t.Parallel()
	buf := Encode(TypeSync, 0, 0, nil)
	buf[0] = 'X'
	_, err := Decode(buf)
	require.ErrorIs(t, err, errs.ErrBadMagic)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	t.Parallel()
	buf := Encode(TypeSync, 0, 0, nil)
	buf[4] = 2
	_, err := Decode(buf)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()
	buf := Encode(TypeSync, 0, 0, []byte{1, 2, 3})
	_, err := Decode(buf[:HeaderSize])
	require.ErrorIs(t, err, errs.ErrTruncated)
}

func TestDecodeLengthMismatch(t *testing.T) {
	t.Parallel()
	buf := Encode(TypeSync, 0, 0, []byte{1, 2, 3})
	_, err := Decode(append(buf, 0xFF))
	require.ErrorIs(t, err, errs.ErrLengthMismatch)
}

func TestDecodeChecksumMismatchOnBitFlip(t *testing.T) {
	t.Parallel()

	buf := Encode(TypeFrameChunk, 7, 100, []byte("payload bytes"))

	for i := range buf {
		corrupt := make([]byte, len(buf))
		copy(corrupt, buf)
		corrupt[i] ^= 0x01

		_, err := Decode(corrupt)
		require.Error(t, err, "flipping bit in byte %d should invalidate the packet", i)
		// Outside magic, version and payload_len, the flip is caught by the CRC.
		if i >= 5 && (i < 18 || i >= HeaderSize) {
			require.ErrorIs(t, err, errs.ErrChecksumMismatch, "byte %d", i)
		}
	}
}

func TestDecodeUnknownTypeIsNonFatal(t *testing.T) {
	t.Parallel()

	buf := Encode(Type(0x99), 3, 0, []byte("x"))
	pkt, err := Decode(buf)

	var unknown *errs.UnknownTypeError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, byte(0x99), unknown.Code)
	// Packet is still fully usable despite the unknown type.
	require.Equal(t, uint32(3), pkt.Seq)
	require.Equal(t, []byte("x"), pkt.Payload)
}

func TestPayloadRoundTrips(t *testing.T) {
	t.Parallel()

	fs := FrameStart{FrameIndex: 5, TotalBytes: 1000, ChunkCount: 3}
	got, err := DecodeFrameStart(fs.Encode())
	require.NoError(t, err)
	require.Equal(t, fs, got)

	fc := FrameChunk{FrameIndex: 5, ChunkIndex: 1, Data: []byte{9, 9, 9}}
	gotFC, err := DecodeFrameChunk(fc.Encode())
	require.NoError(t, err)
	require.Equal(t, fc, gotFC)

	fe := FrameEnd{FrameIndex: 5, CRC32: 0xDEADBEEF}
	gotFE, err := DecodeFrameEnd(fe.Encode())
	require.NoError(t, err)
	require.Equal(t, fe, gotFE)

	sync := Sync{ServerTS: 123456789, FrameIndex: 10}
	gotSync, err := DecodeSync(sync.Encode())
	require.NoError(t, err)
	require.Equal(t, sync, gotSync)

	fec := FECData{GroupID: 2, MemberCount: 4, MemberLength: 3, Parity: []byte{1, 2, 3}}
	gotFEC, err := DecodeFECData(fec.Encode())
	require.NoError(t, err)
	require.Equal(t, fec, gotFEC)

	ac := AudioConfig{CodecTag: 1, TotalBytes: 2048}
	gotAC, err := DecodeAudioConfig(ac.Encode())
	require.NoError(t, err)
	require.Equal(t, ac, gotAC)

	achunk := AudioChunk{Offset: 512, Data: []byte{7, 8}}
	gotAchunk, err := DecodeAudioChunk(achunk.Encode())
	require.NoError(t, err)
	require.Equal(t, achunk, gotAchunk)
}

func TestFECDataRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	payload := FECData{GroupID: 1, MemberCount: 2, MemberLength: 10, Parity: []byte{1, 2, 3}}.Encode()
	// Corrupt member_length in-place would be internally consistent here since
	// Encode trusts its fields; instead build a malformed payload directly.
	bad := make([]byte, 12+3)
	copy(bad, payload[:12])
	copy(bad[12:], []byte{1, 2, 3})
	_, err := DecodeFECData(bad)
	require.ErrorIs(t, err, errs.ErrLengthMismatch)
}
