package client

import "time"

// partialFrame owns the chunk buffers for one in-progress frame, keyed by
// chunk_index. Completion deletes the entry from Client.partials.
type partialFrame struct {
	totalBytes uint32
	chunkCount uint32
	haveStart  bool
	chunks     map[uint32][]byte
	crc32      uint32
	haveEnd    bool
	firstSeen  time.Time
	recovered  bool // true if at least one chunk arrived via FEC recovery
}

func newPartialFrame() *partialFrame {
	return &partialFrame{chunks: make(map[uint32][]byte), firstSeen: time.Now()}
}

// complete reports whether every chunk in [0, chunkCount) has arrived.
func (p *partialFrame) complete() bool {
	return p.haveStart && uint32(len(p.chunks)) >= p.chunkCount
}

// assemble concatenates chunks in order into the frame's deflated bytes.
func (p *partialFrame) assemble() []byte {
	out := make([]byte, 0, p.totalBytes)
	for i := uint32(0); i < p.chunkCount; i++ {
		out = append(out, p.chunks[i]...)
	}
	return out
}

// chunkRange records the global ordinal span one frame's chunks occupy in
// the server's continuous chunk stream, built as FRAME_START packets
// arrive. It lets the client resolve an FEC group's member ordinals back
// to (frame_index, chunk_index) pairs without the wire carrying a group id
// per chunk.
type chunkRange struct {
	base       uint32
	frameIndex uint32
	chunkCount uint32
	totalBytes uint32
}

func (r chunkRange) contains(ordinal uint32) bool {
	return ordinal >= r.base && ordinal < r.base+r.chunkCount
}

// chunkLength returns the byte length of chunk_index within this frame,
// given the session's configured chunk size: every chunk is chunkSize
// bytes except the frame's last one, which holds the remainder.
func (r chunkRange) chunkLength(chunkIndex uint32, chunkSize int) int {
	if chunkIndex < r.chunkCount-1 {
		return chunkSize
	}
	return int(r.totalBytes) - int(r.chunkCount-1)*chunkSize
}

// fecGroupState accumulates the chunk members and parity for one FEC
// group, keyed by the member's position within the group. Shorter members
// are treated as zero-padded up to member_length before XORing, matching
// how the server built the parity.
type fecGroupState struct {
	members      map[uint32][]byte // local index within the group -> chunk data
	parity       []byte
	memberCount  uint32
	memberLength uint32
	haveParity   bool
}

func newFECGroupState() *fecGroupState {
	return &fecGroupState{members: make(map[uint32][]byte)}
}

// missingIndex returns the sole local index in [0, memberCount) absent
// from members, or ok=false if zero or more than one is missing.
func (g *fecGroupState) missingIndex() (uint32, bool) {
	if g.memberCount == 0 || uint32(len(g.members)) != g.memberCount-1 {
		return 0, false
	}
	for i := uint32(0); i < g.memberCount; i++ {
		if _, ok := g.members[i]; !ok {
			return i, true
		}
	}
	return 0, false
}

// recover XORs the present members (each zero-padded to memberLength)
// with the parity, yielding the missing member's data padded to
// memberLength; the caller trims it to the missing chunk's true length.
func (g *fecGroupState) recover() []byte {
	out := make([]byte, g.memberLength)
	copy(out, g.parity)
	for _, m := range g.members {
		for i := 0; i < len(m); i++ {
			out[i] ^= m[i]
		}
	}
	return out
}
