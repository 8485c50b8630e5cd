package container

import "strconv"

// DefaultFPS is used when a container's metadata does not encode a usable
// duration, matching the playback scheduler's default.
const DefaultFPS = 24.0

// Info is a read-only summary view over a container's header, computed
// without decoding any frame — the data a CLI "info" command needs.
type Info struct {
	Title           string
	Creator         string
	CreatedAt       string
	Width           int
	Height          int
	FrameCount      int
	FPS             float64
	DurationSeconds float64
	FileSizeBytes   int64
}

// BuildInfo derives an Info from a container's already-parsed header and
// its on-disk size. FPS is frame_count/seconds when frame_count is positive
// and seconds parses to a positive number, else DefaultFPS, mirroring the
// playback scheduler's pacing formula.
func BuildInfo(meta Metadata, cfg Config, fileSizeBytes int64) Info {
	seconds, err := strconv.ParseFloat(meta.Seconds, 64)
	fps := DefaultFPS
	if err == nil && seconds > 0 && cfg.FrameCount > 0 {
		fps = float64(cfg.FrameCount) / seconds
	}

	duration := seconds
	if err != nil || seconds <= 0 {
		duration = float64(cfg.FrameCount) / fps
	}

	return Info{
		Title:           meta.Title,
		Creator:         meta.Creator,
		CreatedAt:       meta.CreatedAt,
		Width:           cfg.Width,
		Height:          cfg.Height,
		FrameCount:      cfg.FrameCount,
		FPS:             fps,
		DurationSeconds: duration,
		FileSizeBytes:   fileSizeBytes,
	}
}
