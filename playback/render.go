package playback

import "time"

// FrameAt is satisfied by both container.Index.Frame and a thin wrapper
// around framestore.Store.Get, the two frame sources a scheduler can be
// driven from.
type FrameAt func(index int) ([]byte, error)

// Render ticks the scheduler and, if it calls for a new frame, fetches
// it through get. It returns ok=false when nothing should be rendered
// this tick (Paused, Seeking, or an already-Ended scheduler with no new
// frame to show).
func (s *Scheduler) Render(now time.Time, get FrameAt) (frame []byte, index int, ok bool, err error) {
	idx, render := s.Tick(now)
	if !render {
		return nil, idx, false, nil
	}
	frame, err = get(idx)
	if err != nil {
		return nil, idx, false, err
	}
	return frame, idx, true, nil
}
