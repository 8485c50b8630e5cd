package server

import (
	"strconv"
	"time"

	"github.com/cbx/sanchez/stream/transport"
	"github.com/cbx/sanchez/wire"
)

// emitter tracks the per-session sequence counter and SYNC cadence shared
// by every packet a Server sends, keeping that sequence strictly
// increasing across the whole session.
type emitter struct {
	tr           transport.Transport
	start        time.Time
	seq          uint32
	syncInterval time.Duration
	lastEmit     time.Time
	frameIndex   uint32
}

func newEmitter(tr transport.Transport, syncInterval time.Duration) *emitter {
	now := time.Now()
	return &emitter{tr: tr, start: now, syncInterval: syncInterval, lastEmit: now}
}

// send encodes and transmits one packet, advancing the sequence counter,
// and emits a SYNC beacon first if more than syncInterval has elapsed
// since the last emission.
func (e *emitter) send(t wire.Type, payload []byte) error {
	if t != wire.TypeSync && time.Since(e.lastEmit) >= e.syncInterval {
		if err := e.sendSync(); err != nil {
			return err
		}
	}
	return e.sendRaw(t, payload)
}

func (e *emitter) sendSync() error {
	sync := wire.Sync{ServerTS: uint64(time.Now().UnixNano()), FrameIndex: e.frameIndex}
	return e.sendRaw(wire.TypeSync, sync.Encode())
}

func (e *emitter) sendRaw(t wire.Type, payload []byte) error {
	pkt := wire.Encode(t, e.seq, uint64(time.Since(e.start)), payload)
	e.seq++
	e.lastEmit = time.Now()
	return e.tr.Send(pkt)
}

// setFrameIndex records the frame currently being emitted, so a SYNC
// beacon fired mid-frame reports the frame in progress rather than the
// last one fully sent.
func (e *emitter) setFrameIndex(i uint32) {
	e.frameIndex = i
}

// parseSeconds parses metadata's decimal-string duration field.
func parseSeconds(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
