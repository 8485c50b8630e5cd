// Package playback implements a frame-pacing state machine: it paces a
// sequence of decoded frames at a target rate with pause/seek/step
// primitives, consuming either a container reader's
// random-access index or a stream client's delivered sequence. All
// scheduling decisions read from a caller-supplied instant rather than
// wall-clock time, so the scheduler itself never calls time.Now except
// in New and the bookkeeping operations (Pause, Resume, Seek, Restart)
// that record "now" at the moment they're invoked.
package playback

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cbx/sanchez/config"
	"github.com/cbx/sanchez/container"
)

// State is one of the playback scheduler's four states.
type State int

const (
	Playing State = iota
	Paused
	Seeking
	Ended
)

func (s State) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Seeking:
		return "Seeking"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}

// Options configures a new Scheduler.
type Options struct {
	// FPS is the explicit playback rate. If zero, it is derived from
	// Metadata and Config (frame_count / seconds), falling back to
	// config.DefaultFPS when that's not computable.
	FPS float64
	// Metadata and Config, when FPS is zero, supply the numbers FPS is
	// derived from.
	Metadata container.Metadata
	Config   container.Config
	// Loop re-enters frame 0 after the last frame instead of ending.
	Loop bool
	// StartPaused makes the initial state Paused instead of Playing.
	StartPaused bool
}

// DeriveFPS computes the target rate frame_count/metadata.seconds when
// both are known and positive, else config.DefaultFPS — the same
// frame_count/seconds formula the server's UDP pacing tries first.
func DeriveFPS(meta container.Metadata, cfg container.Config) float64 {
	if cfg.FrameCount > 0 {
		if seconds, err := strconv.ParseFloat(meta.Seconds, 64); err == nil && seconds > 0 {
			return float64(cfg.FrameCount) / seconds
		}
	}
	return config.DefaultFPS
}

// Scheduler paces frame indices against a monotonic clock, with explicit
// Playing/Paused/Seeking/Ended transitions.
type Scheduler struct {
	fps        float64
	frameCount int
	loop       bool

	state State

	// baseTime/baseIndex anchor the Playing-state index formula:
	// index(now) = baseIndex + floor((now - baseTime) * fps).
	baseTime  time.Time
	baseIndex int

	// current holds the last index computed or set, valid in every state
	// (it's what Paused/Seeking/Ended report back on Tick).
	current int

	// clock is used only by New and by the bookkeeping operations that
	// don't take an explicit "now" in their signature (Pause, Resume, Seek,
	// Restart); Tick always uses its caller-supplied instant.
	clock func() time.Time
}

// New creates a Scheduler in its initial state.
func New(opts Options) *Scheduler {
	fps := opts.FPS
	if fps <= 0 {
		fps = DeriveFPS(opts.Metadata, opts.Config)
	}
	s := &Scheduler{
		fps:        fps,
		frameCount: opts.Config.FrameCount,
		loop:       opts.Loop,
		clock:      time.Now,
	}
	s.state = Playing
	s.baseTime = s.clock()
	if opts.StartPaused {
		s.state = Paused
	}
	return s
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State { return s.state }

// Index returns the last frame index computed or set, valid in every
// state.
func (s *Scheduler) Index() int { return s.current }

// Tick advances the Playing-state clock to now and reports the frame
// index to render: floor((now - start) * fps) while Playing, clamped on
// seek, and held in place while Paused. The
// second return value is false when nothing new should be rendered
// (Paused, Seeking, or already Ended).
func (s *Scheduler) Tick(now time.Time) (int, bool) {
	if s.state != Playing {
		return s.current, false
	}

	idx := s.indexAt(now)
	if s.frameCount <= 0 {
		s.current = 0
		return 0, true
	}
	if idx >= s.frameCount {
		if s.loop {
			idx %= s.frameCount
			s.rebase(now, idx)
		} else {
			s.state = Ended
			s.current = s.frameCount - 1
			return s.current, true
		}
	}
	s.current = idx
	return idx, true
}

func (s *Scheduler) indexAt(now time.Time) int {
	elapsed := now.Sub(s.baseTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return s.baseIndex + int(elapsed*s.fps)
}

func (s *Scheduler) rebase(now time.Time, index int) {
	s.baseTime = now
	s.baseIndex = index
}

// Pause freezes playback at its current position. A no-op outside
// Playing.
func (s *Scheduler) Pause() {
	if s.state != Playing {
		return
	}
	s.current = s.clampIndex(s.indexAt(s.clock()))
	s.state = Paused
}

// Resume re-enters Playing from the current position. A no-op outside
// Paused.
func (s *Scheduler) Resume() {
	if s.state != Paused {
		return
	}
	s.rebase(s.clock(), s.current)
	s.state = Playing
}

// Toggle implements the Space-bar binding: Playing becomes Paused and
// vice versa; any other state is unaffected.
func (s *Scheduler) Toggle() {
	switch s.state {
	case Playing:
		s.Pause()
	case Paused:
		s.Resume()
	}
}

// Seek shifts the current position by deltaSeconds, clamping to
// [0, frame_count-1], transitioning through Seeking and back to the
// state held before the call (Playing or Paused; Ended is treated as
// Paused, since a seek after the end resumes a stopped position rather
// than restarting playback).
func (s *Scheduler) Seek(deltaSeconds float64) {
	prior := s.state
	if prior == Ended {
		prior = Paused
	}

	cur := s.current
	if prior == Playing {
		cur = s.indexAt(s.clock())
	}

	s.state = Seeking
	next := s.clampIndex(cur + int(deltaSeconds*s.fps))
	s.current = next

	if prior == Playing {
		s.rebase(s.clock(), next)
	}
	s.state = prior
}

// Step moves exactly one frame forward or backward. Valid only while
// Paused.
func (s *Scheduler) Step(delta int) error {
	if s.state != Paused {
		return fmt.Errorf("sanchez: step is only valid while paused, current state is %s", s.state)
	}
	s.current = s.clampIndex(s.current + delta)
	return nil
}

// Restart resets the position to frame 0. If the scheduler was Playing
// or Ended, it resumes Playing from there; if it was Paused, it remains
// Paused at frame 0.
func (s *Scheduler) Restart() {
	s.current = 0
	switch s.state {
	case Playing, Ended:
		s.rebase(s.clock(), 0)
		s.state = Playing
	case Paused:
		// stays Paused at frame 0
	}
}

func (s *Scheduler) clampIndex(i int) int {
	if s.frameCount <= 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= s.frameCount {
		return s.frameCount - 1
	}
	return i
}
