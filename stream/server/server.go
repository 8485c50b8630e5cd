// Package server implements the streaming session lifecycle: metadata and
// config announcement, optional audio interleaving, per-frame
// fragmentation into FRAME_START/FRAME_CHUNK*/FRAME_END, optional FEC
// parity emission, periodic SYNC beacons, and a final END_STREAM. It is
// generic over stream/transport's capability set and over any FrameSource,
// so the same session logic drives TCP, UDP unicast, UDP multicast, and
// UDP broadcast.
package server

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cbx/sanchez/codec"
	"github.com/cbx/sanchez/config"
	"github.com/cbx/sanchez/container"
	"github.com/cbx/sanchez/stream/transport"
	"github.com/cbx/sanchez/wire"
)

// FrameSource supplies a fresh, finite container.FrameIterator on each
// call to Iter, letting the server restart iteration when Options.Loop is
// set. framestore.Store satisfies this.
type FrameSource interface {
	Iter() container.FrameIterator
}

// AudioBlob is the optional out-of-band audio track interleaved into a
// session alongside its video frames.
type AudioBlob struct {
	CodecTag uint32
	Data     []byte
}

// Session bundles the immutable header values and options for one
// streamed session.
type Session struct {
	Metadata container.Metadata
	Config   container.Config
	Audio    *AudioBlob
	Options  config.ServerOptions
	// Paced selects UDP-style fps sleeping between frames instead of
	// TCP-style backpressure; set true for UDP transports.
	Paced bool
}

// Server streams frame sources over transports, one session at a time.
type Server struct {
	log *slog.Logger
}

// New returns a Server that logs under the "stream.server" component.
func New() *Server {
	return &Server{log: slog.Default().With("component", "stream.server")}
}

// Stream runs one session to completion: it blocks until the source is
// exhausted (and not looping), the transport fails, or ctx is canceled.
func (s *Server) Stream(ctx context.Context, tr transport.Transport, source FrameSource, sess Session) error {
	opts := sess.Options.Normalize()
	em := newEmitter(tr, opts.SyncInterval)

	metaLine, err := sess.Metadata.MarshalLine()
	if err != nil {
		return fmt.Errorf("sanchez: marshal metadata: %w", err)
	}
	if err := em.send(wire.TypeMetadata, metaLine); err != nil {
		return err
	}

	cfgLine, err := sess.Config.MarshalLine()
	if err != nil {
		return fmt.Errorf("sanchez: marshal config: %w", err)
	}
	if err := em.send(wire.TypeConfig, []byte(cfgLine)); err != nil {
		return err
	}

	var audioChunks [][]byte
	if sess.Audio != nil {
		ac := wire.AudioConfig{CodecTag: sess.Audio.CodecTag, TotalBytes: uint32(len(sess.Audio.Data))}
		if err := em.send(wire.TypeAudioConfig, ac.Encode()); err != nil {
			return err
		}
		audioChunks = splitChunks(sess.Audio.Data, opts.ChunkSize)
	}

	period := framePeriod(sess.Metadata, sess.Config, opts.FPS)
	fec := newFECAccumulator(opts.FECGroup)
	audioPos := 0

	for {
		it := source.Iter()
		var frameIndex uint32
		for {
			frame, ok, err := it.Next()
			if err != nil {
				return fmt.Errorf("sanchez: reading frame %d: %w", frameIndex, err)
			}
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := s.emitFrame(em, fec, frameIndex, frame, opts); err != nil {
				return err
			}

			if audioPos < len(audioChunks) {
				ac := wire.AudioChunk{Offset: uint32(audioPos * opts.ChunkSize), Data: audioChunks[audioPos]}
				if err := em.send(wire.TypeAudioChunk, ac.Encode()); err != nil {
					return err
				}
				audioPos++
			}

			if sess.Paced && period > 0 {
				select {
				case <-time.After(period):
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			frameIndex++
		}

		if !opts.Loop {
			break
		}
	}

	return em.send(wire.TypeEndStream, nil)
}

// emitFrame deflates one frame, fragments it into chunk_size-bounded
// FRAME_CHUNK payloads, and emits FRAME_START/FRAME_CHUNK*/FRAME_END,
// feeding each chunk into the FEC accumulator when satellite mode is
// enabled.
func (s *Server) emitFrame(em *emitter, fec *fecAccumulator, frameIndex uint32, frame []byte, opts config.ServerOptions) error {
	em.setFrameIndex(frameIndex)

	deflated, err := codec.Deflate(frame)
	if err != nil {
		return err
	}

	chunks := splitChunks(deflated, opts.ChunkSize)
	start := wire.FrameStart{FrameIndex: frameIndex, TotalBytes: uint32(len(deflated)), ChunkCount: uint32(len(chunks))}
	if err := em.send(wire.TypeFrameStart, start.Encode()); err != nil {
		return err
	}

	for i, c := range chunks {
		chunk := wire.FrameChunk{FrameIndex: frameIndex, ChunkIndex: uint32(i), Data: c}
		if err := em.send(wire.TypeFrameChunk, chunk.Encode()); err != nil {
			return err
		}
		if opts.Satellite {
			if group, ok := fec.add(c); ok {
				if err := em.send(wire.TypeFECData, group.Encode()); err != nil {
					return err
				}
			}
		}
	}

	end := wire.FrameEnd{FrameIndex: frameIndex, CRC32: crc32.ChecksumIEEE(deflated)}
	return em.send(wire.TypeFrameEnd, end.Encode())
}

// splitChunks slices data into size-bounded, non-empty pieces in order.
// An empty input yields zero chunks.
func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var out [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}

// framePeriod computes the UDP pacing interval 1/fps: frame_count /
// metadata.seconds when both are known and positive, else the explicit
// fps option. The formula is playback.DeriveFPS's; note that the playback
// scheduler, unlike this function, lets an explicit FPS take precedence.
func framePeriod(meta container.Metadata, cfg container.Config, fps float64) time.Duration {
	if cfg.FrameCount > 0 {
		if seconds, err := parseSeconds(meta.Seconds); err == nil && seconds > 0 {
			return time.Duration(seconds / float64(cfg.FrameCount) * float64(time.Second))
		}
	}
	if fps <= 0 {
		fps = config.DefaultFPS
	}
	return time.Duration(float64(time.Second) / fps)
}

// ServeTCP runs the accept loop for TCP unicast: each accepted connection
// gets its own session with sequence numbers starting at 0, built fresh by
// newSession. A client disconnecting mid-stream drops only that client;
// ServeTCP returns once ctx is canceled and every client session has
// exited.
func (s *Server) ServeTCP(ctx context.Context, ln transport.Listener, source FrameSource, newSession func() Session) error {
	var g errgroup.Group
	for {
		tr, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		g.Go(func() error {
			if err := s.Stream(ctx, tr, source, newSession()); err != nil {
				s.log.Warn("client session ended", "remote", tr.RemoteAddr(), "err", err)
			}
			return tr.Close()
		})
	}
	return g.Wait()
}
