// Package client implements the receiver-side reassembly engine: packet
// validation and ordering within a reorder window, frame reconstruction
// from chunks, single-chunk FEC recovery, and in-order frame delivery with
// bounded-lag loss detection. Its per-session state is a small tagged
// enum: a client is either waiting for the session header, actively
// reassembling, or terminated.
package client

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"time"

	"github.com/cbx/sanchez/codec"
	"github.com/cbx/sanchez/config"
	"github.com/cbx/sanchez/container"
	"github.com/cbx/sanchez/internal/errs"
	"github.com/cbx/sanchez/stream/transport"
	"github.com/cbx/sanchez/wire"
)

// Stats counts the per-session reassembly outcomes the client surfaces
// rather than raising as fatal errors.
type Stats struct {
	PacketsReceived    uint64
	PacketsDropped     uint64
	ChecksumMismatches uint64
	FramesDelivered    uint64
	FramesRecovered    uint64
	FramesLost         uint64
}

// Delivery is one item of the client's output sequence: either a decoded
// frame or a FrameLost marker occupying its index in the sequence.
type Delivery struct {
	Index uint32
	Frame []byte
	Lost  bool
}

// sessionState is the client's small per-session lifecycle tag.
type sessionState int

const (
	stateAwaitingHeader sessionState = iota
	stateInSession
	stateTerminated
)

// Client reassembles one stream session received over a transport.
type Client struct {
	tr   transport.Transport
	opts config.ClientOptions
	log  *slog.Logger

	state sessionState
	stats Stats

	metadata container.Metadata
	config   container.Config

	haveMaxSeq bool
	maxSeqSeen uint32

	partials  map[uint32]*partialFrame
	completed map[uint32]Delivery

	chunkRanges   []chunkRange
	nextChunkBase uint32
	fecGroups     map[uint32]*fecGroupState

	nextDeliverIndex uint32
	awaitingSince    time.Time

	audio    []byte
	audioSet bool

	finalErr error
}

// New creates a Client that reassembles packets read from tr.
func New(tr transport.Transport, opts config.ClientOptions) *Client {
	return &Client{
		tr:        tr,
		opts:      opts.Normalize(),
		log:       slog.Default().With("component", "stream.client"),
		state:     stateAwaitingHeader,
		partials:  make(map[uint32]*partialFrame),
		completed: make(map[uint32]Delivery),
		fecGroups: make(map[uint32]*fecGroupState),
	}
}

// Metadata returns the session header once received; valid only after at
// least one Delivery (or the header packets) has been processed.
func (c *Client) Metadata() container.Metadata { return c.metadata }

// Config returns the session geometry/length triple once received.
func (c *Client) Config() container.Config { return c.config }

// Stats returns a snapshot of the session's reassembly counters.
func (c *Client) Stats() Stats { return c.stats }

// Audio returns the reassembled audio blob, finalized once END_STREAM is
// observed.
func (c *Client) Audio() []byte { return c.audio }

// Err returns the terminal error that ended Run's output channel, if any.
// A clean END_STREAM leaves this nil; context cancellation sets it to the
// context's error.
func (c *Client) Err() error { return c.finalErr }

// Run starts the receive loop in a new goroutine and returns a channel of
// deliveries, closed when the session ends (END_STREAM, transport error,
// or ctx cancellation). Check Err after the channel closes.
func (c *Client) Run(ctx context.Context) <-chan Delivery {
	out := make(chan Delivery)
	go c.loop(ctx, out)
	return out
}

type rawPacket struct {
	data []byte
	err  error
}

// lagCheckInterval is how often the loop wakes to test whether the
// oldest pending frame has exceeded max_frame_lag, independent of packet
// arrival (a stalled link must still time out).
func lagCheckInterval(maxLag time.Duration) time.Duration {
	d := maxLag / 4
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (c *Client) loop(ctx context.Context, out chan<- Delivery) {
	defer close(out)
	defer func() { c.state = stateTerminated }()

	pktCh := make(chan rawPacket)
	go func() {
		for {
			data, err := c.tr.Recv()
			select {
			case pktCh <- rawPacket{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(lagCheckInterval(c.opts.MaxFrameLag))
	defer ticker.Stop()

	c.awaitingSince = time.Now()

	for {
		select {
		case <-ctx.Done():
			c.finalErr = ctx.Err()
			return
		case raw := <-pktCh:
			if raw.err != nil {
				c.finalErr = raw.err
				return
			}
			if done := c.handleRaw(raw.data); done {
				c.flush(ctx, out)
				return
			}
		case <-ticker.C:
			c.checkLag()
		}
		if !c.flush(ctx, out) {
			return
		}
	}
}

// handleRaw decodes and dispatches one wire packet. It returns true when
// the session has ended (END_STREAM or a fatal protocol violation).
func (c *Client) handleRaw(data []byte) bool {
	pkt, err := wire.Decode(data)
	if err != nil {
		if _, ok := err.(*errs.UnknownTypeError); ok {
			c.stats.PacketsReceived++
			return false
		}
		c.stats.PacketsDropped++
		if isProtocolFatal(err) {
			c.finalErr = fmt.Errorf("%w: %v", errs.ErrProtocolViolation, err)
			return true
		}
		return false
	}

	c.stats.PacketsReceived++
	if !c.acceptSeq(pkt.Seq) {
		c.stats.PacketsDropped++
		return false
	}

	switch pkt.Type {
	case wire.TypeMetadata:
		meta, err := container.ParseMetadata(pkt.Payload)
		if err == nil {
			c.metadata = meta
			c.state = stateInSession
		}
	case wire.TypeConfig:
		cfg, err := container.ParseConfig(string(pkt.Payload))
		if err == nil {
			c.config = cfg
			c.state = stateInSession
		}
	case wire.TypeAudioConfig:
		ac, err := wire.DecodeAudioConfig(pkt.Payload)
		if err == nil {
			c.audio = make([]byte, 0, ac.TotalBytes)
			c.audioSet = true
		}
	case wire.TypeAudioChunk:
		ach, err := wire.DecodeAudioChunk(pkt.Payload)
		if err == nil && c.audioSet {
			c.audio = append(c.audio, ach.Data...)
		}
	case wire.TypeFrameStart:
		c.handleFrameStart(pkt.Payload)
	case wire.TypeFrameChunk:
		c.handleFrameChunk(pkt.Payload)
	case wire.TypeFrameEnd:
		c.handleFrameEnd(pkt.Payload)
	case wire.TypeFECData:
		c.handleFECData(pkt.Payload)
	case wire.TypeSync:
		// Heartbeat only; no clock-drift correction is implemented.
	case wire.TypeEndStream:
		return true
	}
	return false
}

// isProtocolFatal reports whether a decode error is fatal to the whole
// session (bad magic, unsupported version) rather than a per-packet
// integrity failure that is merely counted.
func isProtocolFatal(err error) bool {
	return errors.Is(err, errs.ErrBadMagic) || errors.Is(err, errs.ErrUnsupportedVersion)
}

// acceptSeq implements the reorder window: sequence numbers within the
// configured span behind the highest seen are accepted; earlier ones are
// stale.
// Assumes the session does not wrap past 2^32 within one window's span.
func (c *Client) acceptSeq(seq uint32) bool {
	if !c.haveMaxSeq {
		c.haveMaxSeq = true
		c.maxSeqSeen = seq
		return true
	}
	if seq > c.maxSeqSeen {
		c.maxSeqSeen = seq
		return true
	}
	behind := c.maxSeqSeen - seq
	return behind < c.opts.ReorderWindow
}

func (c *Client) partialFor(frameIndex uint32) *partialFrame {
	p, ok := c.partials[frameIndex]
	if !ok {
		p = newPartialFrame()
		c.partials[frameIndex] = p
	}
	return p
}

func (c *Client) handleFrameStart(payload []byte) {
	fs, err := wire.DecodeFrameStart(payload)
	if err != nil {
		c.stats.PacketsDropped++
		return
	}
	p := c.partialFor(fs.FrameIndex)
	p.haveStart = true
	p.totalBytes = fs.TotalBytes
	p.chunkCount = fs.ChunkCount

	c.chunkRanges = append(c.chunkRanges, chunkRange{
		base:       c.nextChunkBase,
		frameIndex: fs.FrameIndex,
		chunkCount: fs.ChunkCount,
		totalBytes: fs.TotalBytes,
	})
	c.nextChunkBase += fs.ChunkCount

	c.tryComplete(fs.FrameIndex)
}

func (c *Client) handleFrameChunk(payload []byte) {
	fc, err := wire.DecodeFrameChunk(payload)
	if err != nil {
		c.stats.PacketsDropped++
		return
	}
	p := c.partialFor(fc.FrameIndex)
	p.chunks[fc.ChunkIndex] = fc.Data

	if c.opts.Satellite {
		c.recordFECMember(fc.FrameIndex, fc.ChunkIndex, fc.Data)
	}

	c.tryComplete(fc.FrameIndex)
}

func (c *Client) handleFrameEnd(payload []byte) {
	fe, err := wire.DecodeFrameEnd(payload)
	if err != nil {
		c.stats.PacketsDropped++
		return
	}
	p := c.partialFor(fe.FrameIndex)
	p.haveEnd = true
	p.crc32 = fe.CRC32
	c.tryComplete(fe.FrameIndex)
}

// tryComplete finalizes a frame once all chunks and FRAME_END have
// arrived: it validates the CRC, inflates the deflated payload back to
// pixels, and stages the Delivery for in-order flushing.
func (c *Client) tryComplete(frameIndex uint32) {
	p, ok := c.partials[frameIndex]
	if !ok || !p.complete() || !p.haveEnd {
		return
	}

	deflated := p.assemble()
	if crc32.ChecksumIEEE(deflated) != p.crc32 {
		c.stats.ChecksumMismatches++
		return
	}

	frame, err := codec.Inflate(deflated)
	if err != nil {
		c.stats.ChecksumMismatches++
		return
	}

	c.completed[frameIndex] = Delivery{Index: frameIndex, Frame: frame}
	if p.recovered {
		c.stats.FramesRecovered++
	}
	delete(c.partials, frameIndex)
}

// locateOrdinal resolves a global chunk ordinal to the frame and local
// chunk index it belongs to, using the FRAME_START-derived chunkRanges
// observed so far.
func (c *Client) locateOrdinal(ordinal uint32) (chunkRange, uint32, bool) {
	for _, r := range c.chunkRanges {
		if r.contains(ordinal) {
			return r, ordinal - r.base, true
		}
	}
	return chunkRange{}, 0, false
}

// recordFECMember places a just-arrived chunk into its FEC group buffer.
// It only tracks membership so a later FEC_DATA can be matched against it;
// recovery itself happens in handleFECData.
func (c *Client) recordFECMember(frameIndex, chunkIndex uint32, data []byte) {
	r, found := c.rangeFor(frameIndex)
	if !found {
		return
	}
	ordinal := r.base + chunkIndex
	groupID := ordinal / uint32(c.opts.FECGroup)
	localIndex := ordinal % uint32(c.opts.FECGroup)

	g, ok := c.fecGroups[groupID]
	if !ok {
		g = newFECGroupState()
		c.fecGroups[groupID] = g
	}
	g.members[localIndex] = data
}

func (c *Client) rangeFor(frameIndex uint32) (chunkRange, bool) {
	for _, r := range c.chunkRanges {
		if r.frameIndex == frameIndex {
			return r, true
		}
	}
	return chunkRange{}, false
}

// handleFECData records a group's parity and, if exactly one member is
// missing, recovers it and injects the recovered bytes back into the
// owning frame's partial buffer.
func (c *Client) handleFECData(payload []byte) {
	fd, err := wire.DecodeFECData(payload)
	if err != nil {
		c.stats.PacketsDropped++
		return
	}
	g, ok := c.fecGroups[fd.GroupID]
	if !ok {
		g = newFECGroupState()
		c.fecGroups[fd.GroupID] = g
	}
	g.parity = fd.Parity
	g.memberCount = fd.MemberCount
	g.memberLength = fd.MemberLength
	g.haveParity = true

	missing, ok := g.missingIndex()
	if !ok {
		return
	}

	ordinal := fd.GroupID*uint32(c.opts.FECGroup) + missing
	r, chunkIndex, found := c.locateOrdinal(ordinal)
	if !found {
		return
	}

	recoveredPadded := g.recover()
	length := r.chunkLength(chunkIndex, c.opts.ChunkSize)
	if length < 0 || length > len(recoveredPadded) {
		return
	}
	recovered := recoveredPadded[:length]

	p := c.partialFor(r.frameIndex)
	p.chunks[chunkIndex] = recovered
	p.recovered = true
	c.tryComplete(r.frameIndex)
}

// checkLag declares the oldest pending frame lost if a later frame has
// already completed and max_frame_lag has elapsed since the client began
// waiting on it.
func (c *Client) checkLag() {
	if len(c.completed) == 0 {
		return
	}
	hasLater := false
	for idx := range c.completed {
		if idx > c.nextDeliverIndex {
			hasLater = true
			break
		}
	}
	if !hasLater {
		return
	}
	if time.Since(c.awaitingSince) < c.opts.MaxFrameLag {
		return
	}

	lost := &errs.FrameLostError{Index: c.nextDeliverIndex}
	c.log.Warn("frame lag exceeded, skipping forward", "err", lost)

	delete(c.partials, c.nextDeliverIndex)
	c.completed[c.nextDeliverIndex] = Delivery{Index: c.nextDeliverIndex, Lost: true}
}

// flush delivers every contiguous completed frame starting at
// nextDeliverIndex, in order. It returns false if ctx was canceled while
// sending.
func (c *Client) flush(ctx context.Context, out chan<- Delivery) bool {
	for {
		d, ok := c.completed[c.nextDeliverIndex]
		if !ok {
			return true
		}
		select {
		case out <- d:
		case <-ctx.Done():
			c.finalErr = ctx.Err()
			return false
		}
		if d.Lost {
			c.stats.FramesLost++
		} else {
			c.stats.FramesDelivered++
		}
		delete(c.completed, c.nextDeliverIndex)
		c.nextDeliverIndex++
		c.awaitingSince = time.Now()
	}
}
