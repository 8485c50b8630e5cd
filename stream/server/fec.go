package server

import "github.com/cbx/sanchez/wire"

// fecAccumulator buffers chunk payloads into fixed-size groups and, once a
// group fills, produces its XOR parity, zero-padding shorter members up to
// member_length before XORing. Groups are counted across the whole
// session's chunk stream, not reset per frame, so a group may straddle two
// frames. A trailing partial group at end of stream is left unflushed and
// unprotected — see the decision recorded in DESIGN.md.
type fecAccumulator struct {
	groupSize int
	members   [][]byte
	nextID    uint32
}

func newFECAccumulator(groupSize int) *fecAccumulator {
	return &fecAccumulator{groupSize: groupSize}
}

// add appends one chunk's payload to the current group. When the group
// reaches groupSize members, it returns the completed FECData and resets
// for the next group.
func (f *fecAccumulator) add(chunk []byte) (wire.FECData, bool) {
	f.members = append(f.members, chunk)
	if len(f.members) < f.groupSize {
		return wire.FECData{}, false
	}

	memberLength := 0
	for _, m := range f.members {
		if len(m) > memberLength {
			memberLength = len(m)
		}
	}

	parity := make([]byte, memberLength)
	for _, m := range f.members {
		for i := 0; i < len(m); i++ {
			parity[i] ^= m[i]
		}
	}

	group := wire.FECData{
		GroupID:      f.nextID,
		MemberCount:  uint32(len(f.members)),
		MemberLength: uint32(memberLength),
		Parity:       parity,
	}

	f.nextID++
	f.members = f.members[:0]
	return group, true
}
