// Package config holds the tunables for the stream server and client: small
// option structs with documented defaults filled in by a constructor, plus
// an envOr helper for command-line collaborators to override them.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default chunk sizes: roomy for unicast TCP/UDP, shrunk to fit satellite
// links' smaller, loss-prone MTU.
const (
	DefaultChunkSize          = 8 * 1024
	DefaultSatelliteChunkSize = 1400
	DefaultFECGroup           = 8
	DefaultSyncInterval       = time.Second
	DefaultFPS                = 24.0
)

// ServerOptions configures one stream.Server session.
type ServerOptions struct {
	// Loop re-emits the frame source from index 0 after the last frame
	// instead of emitting END_STREAM.
	Loop bool
	// Satellite enables FEC parity emission and forces ChunkSize down to
	// DefaultSatelliteChunkSize unless explicitly overridden.
	Satellite bool
	// ChunkSize bounds the size of one FRAME_CHUNK payload's frame bytes.
	ChunkSize int
	// FPS paces UDP emission; ignored on TCP, where pacing is backpressure.
	FPS float64
	// FECGroup is the number of chunks guarded by one FEC_DATA parity
	// packet. Ignored unless Satellite.
	FECGroup int
	// SyncInterval bounds the gap between SYNC beacons.
	SyncInterval time.Duration
}

// DefaultServerOptions returns the documented defaults for a new session.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		ChunkSize:    DefaultChunkSize,
		FPS:          DefaultFPS,
		FECGroup:     DefaultFECGroup,
		SyncInterval: DefaultSyncInterval,
	}
}

// normalize applies satellite-mode defaults and fills any zero fields left
// unset by a caller that built ServerOptions directly.
func (o ServerOptions) normalize() ServerOptions {
	if o.ChunkSize == 0 {
		if o.Satellite {
			o.ChunkSize = DefaultSatelliteChunkSize
		} else {
			o.ChunkSize = DefaultChunkSize
		}
	}
	if o.FECGroup == 0 {
		o.FECGroup = DefaultFECGroup
	}
	if o.SyncInterval == 0 {
		o.SyncInterval = DefaultSyncInterval
	}
	if o.FPS == 0 {
		o.FPS = DefaultFPS
	}
	return o
}

// Normalize returns o with every unset field replaced by its documented
// default, applying the satellite-mode chunk size rule.
func (o ServerOptions) Normalize() ServerOptions {
	return o.normalize()
}

// ClientOptions configures one stream/client.Client session. Satellite,
// ChunkSize, and FECGroup are not carried on the wire (no packet layout has
// a field for them); they are session parameters the operator configures
// symmetrically on both ends, the same way the two sides of a link agree
// on satellite mode out of band.
type ClientOptions struct {
	// ReorderWindow is the span of sequence numbers behind the highest
	// seen within which a late packet is still accepted.
	ReorderWindow uint32
	// MaxFrameLag bounds how long the client waits for a stalled frame
	// before declaring it lost and skipping forward. Zero means "use the
	// frame-period-derived default".
	MaxFrameLag time.Duration
	// FPS informs the MaxFrameLag default (2x frame period) when the
	// caller has not set MaxFrameLag explicitly.
	FPS float64
	// Satellite must match the server's Satellite setting for FEC
	// recovery to engage.
	Satellite bool
	// ChunkSize must match the server's effective ServerOptions.ChunkSize.
	ChunkSize int
	// FECGroup must match the server's effective ServerOptions.FECGroup.
	FECGroup int
}

const (
	// DefaultReorderWindow is the reorder window's default span.
	DefaultReorderWindow = 1024
	// DefaultMaxFrameLag is used when FPS is unknown.
	DefaultMaxFrameLag = 500 * time.Millisecond
)

// DefaultClientOptions returns the documented defaults for a new session.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{ReorderWindow: DefaultReorderWindow}
}

// Normalize fills MaxFrameLag from FPS (2x frame period) when unset, and
// falls back to DefaultMaxFrameLag when FPS is also unknown, and fills
// ReorderWindow with its default when zero.
func (o ClientOptions) Normalize() ClientOptions {
	if o.ReorderWindow == 0 {
		o.ReorderWindow = DefaultReorderWindow
	}
	if o.MaxFrameLag == 0 {
		if o.FPS > 0 {
			period := time.Duration(float64(time.Second) / o.FPS)
			o.MaxFrameLag = 2 * period
		} else {
			o.MaxFrameLag = DefaultMaxFrameLag
		}
	}
	if o.ChunkSize == 0 {
		if o.Satellite {
			o.ChunkSize = DefaultSatelliteChunkSize
		} else {
			o.ChunkSize = DefaultChunkSize
		}
	}
	if o.FECGroup == 0 {
		o.FECGroup = DefaultFECGroup
	}
	return o
}

// envOr reads key from the environment, falling back to def if unset or
// empty. CLI collaborators use this to override option defaults without
// the core depending on any flag-parsing library.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvOrInt is envOr parsed as an integer, falling back to def on any
// parse failure.
func EnvOrInt(key string, def int) int {
	v := envOr(key, strconv.Itoa(def))
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvOrFloat is envOr parsed as a float64, falling back to def on any
// parse failure.
func EnvOrFloat(key string, def float64) float64 {
	v := envOr(key, strconv.FormatFloat(def, 'g', -1, 64))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvOrBool is envOr parsed as a bool, falling back to def on any parse
// failure.
func EnvOrBool(key string, def bool) bool {
	v := envOr(key, strconv.FormatBool(def))
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
