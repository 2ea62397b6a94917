// Package timeline resolves heterogeneous edit operations into one
// canonical cut list and mute list, plus the coordinate mapping between the
// original and post-cut timelines. Resolution is a pure transform: it never
// mutates its inputs and produces an immutable Resolution for the stages
// downstream.
package timeline

import (
	"errors"
	"fmt"

	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

var ErrEmptyTimeline = errors.New("empty timeline: removals cover the entire media")

// Resolution is the canonical outcome of merging all edit operations.
type Resolution struct {
	// OriginalDuration is the source media length.
	OriginalDuration timecode.Timecode
	// Removed is the canonical set of cut regions in original coordinates.
	Removed interval.Set
	// Muted is the canonical mute set in original coordinates, already
	// clipped against Removed.
	Muted interval.Set
	// Map translates original-timeline timecodes to final-timeline ones.
	Map *interval.CoordinateMap
}

// Resolve merges interactive and EDL-sourced operations, in any order, into
// a Resolution. Mute intervals are clipped against the removed set exactly
// once, after both sets are individually canonicalized; a mute inside a cut
// has no audio left to silence.
func Resolve(ops []edl.Operation, duration timecode.Timecode) (*Resolution, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("media duration must be positive, got %s", duration)
	}

	var removed, muted interval.Set
	for _, op := range ops {
		if op.Range.End > duration {
			return nil, fmt.Errorf("%w: %s operation %s exceeds media duration %s",
				interval.ErrInvalidRange, op.Action, op.Range, duration)
		}
		switch op.Action {
		case edl.ActionRemove:
			removed.Insert(op.Range)
		case edl.ActionMuteAudio:
			muted.Insert(op.Range)
		default:
			return nil, fmt.Errorf("%w: %q", edl.ErrUnsupportedAction, op.Action)
		}
	}

	kept := removed.Complement(duration)
	if kept.IsEmpty() {
		return nil, ErrEmptyTimeline
	}

	return &Resolution{
		OriginalDuration: duration,
		Removed:          removed,
		Muted:            muted.Subtract(removed),
		Map:              interval.NewCoordinateMap(kept),
	}, nil
}

// KeptSegments returns the original-timeline segments that survive, in
// playback order.
func (r *Resolution) KeptSegments() []interval.Interval {
	return r.Map.KeptSegments()
}

// FinalDuration is the length of the post-cut timeline.
func (r *Resolution) FinalDuration() timecode.Timecode {
	return r.Map.FinalDuration()
}

// MutedFinal projects the clipped mute set into final-timeline
// coordinates for the audio plan.
func (r *Resolution) MutedFinal() []interval.Interval {
	var out []interval.Interval
	for _, m := range r.Muted.Intervals() {
		out = append(out, r.Map.MapInterval(m)...)
	}
	return out
}
