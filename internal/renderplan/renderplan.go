// Package renderplan assembles the resolved timeline, placed assets and
// audio graph into the single validated plan handed to the rendering
// backend. A plan is immutable once emitted; validation failures here mean
// a bug in an upstream stage, not bad user input.
package renderplan

import (
	"errors"
	"fmt"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

var ErrInconsistent = errors.New("render plan inconsistency")

// InconsistencyError names the violated invariant so the failing stage can
// be located without re-deriving the plan.
type InconsistencyError struct {
	Invariant string
	Detail    string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("render plan inconsistency (%s): %s", e.Invariant, e.Detail)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrInconsistent
}

func inconsistency(invariant, format string, args ...any) error {
	return &InconsistencyError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// Plan is the terminal artifact of the edit engine: everything the
// rendering backend needs, in final-timeline coordinates, with no codec or
// device concerns.
type Plan struct {
	// SourcePath references the source video; opaque to the engine.
	SourcePath string `json:"source_path"`
	// OriginalDuration and FinalDuration are the pre- and post-cut
	// lengths.
	OriginalDuration timecode.Timecode `json:"original_duration"`
	FinalDuration    timecode.Timecode `json:"final_duration"`
	// Segments are the source-timeline ranges to concatenate, in playback
	// order.
	Segments []interval.Interval `json:"segments"`
	// Assets are the remapped anchors in final-timeline coordinates,
	// ordered by start time.
	Assets []assets.PlacedAnchor `json:"assets"`
	// Audio is the resolved audio graph.
	Audio audioplan.Graph `json:"audio"`
}

// Emit cross-validates the stage outputs and assembles the plan.
func Emit(res *timeline.Resolution, placed []assets.PlacedAnchor, graph *audioplan.Graph, sourcePath string) (*Plan, error) {
	if res == nil || graph == nil {
		return nil, inconsistency("inputs-present", "resolution or audio graph missing")
	}

	final := res.FinalDuration()
	segments := res.KeptSegments()

	if err := validateSegments(segments, final); err != nil {
		return nil, err
	}
	if err := validateAssets(placed, final); err != nil {
		return nil, err
	}
	if err := validateAudio(graph, final); err != nil {
		return nil, err
	}

	return &Plan{
		SourcePath:       sourcePath,
		OriginalDuration: res.OriginalDuration,
		FinalDuration:    final,
		Segments:         segments,
		Assets:           placed,
		Audio:            *graph,
	}, nil
}

// validateSegments checks the kept-segment list is ordered, disjoint in
// source coordinates, and covers [0, final) contiguously once concatenated.
func validateSegments(segments []interval.Interval, final timecode.Timecode) error {
	if len(segments) == 0 {
		return inconsistency("segments-cover-duration", "no kept segments for final duration %s", final)
	}

	var total timecode.Timecode
	for i, seg := range segments {
		if seg.Start >= seg.End {
			return inconsistency("segments-well-formed", "segment %d %s is empty or inverted", i, seg)
		}
		if i > 0 && seg.Start < segments[i-1].End {
			return inconsistency("segments-ordered", "segment %d %s overlaps or precedes %s", i, seg, segments[i-1])
		}
		total += seg.Duration()
	}
	if total != final {
		return inconsistency("segments-cover-duration", "segments sum to %s, final duration is %s", total, final)
	}
	return nil
}

func validateAssets(placed []assets.PlacedAnchor, final timecode.Timecode) error {
	for _, p := range placed {
		r := p.FinalRange
		if r.Start < 0 || r.End > final || r.Start >= r.End {
			return inconsistency("asset-within-bounds",
				"asset %s range %s outside [%s, %s)", p.Anchor.ID, r, timecode.Timecode(0), final)
		}
	}
	return nil
}

// validateAudio checks the graph matches the final duration and that the
// union of track contributions covers it with no gap.
func validateAudio(graph *audioplan.Graph, final timecode.Timecode) error {
	if graph.Duration != final {
		return inconsistency("audio-duration-matches",
			"audio graph duration %s, final duration %s", graph.Duration, final)
	}

	var coverage interval.Set
	for ti, tr := range graph.Tracks {
		var cursor timecode.Timecode = -1
		for si, seg := range tr.Segments {
			length := seg.SourceEnd - seg.SourceStart
			if length <= 0 {
				return inconsistency("audio-segments-well-formed",
					"track %d segment %d has non-positive length", ti, si)
			}
			if seg.At < 0 || seg.At+length > final {
				return inconsistency("audio-within-bounds",
					"track %d segment %d spans [%s, %s) outside final duration %s",
					ti, si, seg.At, seg.At+length, final)
			}
			if cursor >= 0 && seg.At != cursor {
				return inconsistency("audio-segments-contiguous",
					"track %d segment %d starts at %s, previous ended at %s", ti, si, seg.At, cursor)
			}
			cursor = seg.At + length
			iv, err := interval.New(seg.At, seg.At+length)
			if err != nil {
				return inconsistency("audio-segments-well-formed", "track %d segment %d: %v", ti, si, err)
			}
			coverage.Insert(iv)
		}
		for _, mw := range tr.MuteWindows {
			if mw.Start < 0 || mw.End > final {
				return inconsistency("audio-within-bounds",
					"track %d mute window %s outside final duration %s", ti, mw, final)
			}
		}
	}

	if coverage.Len() != 1 || coverage.Intervals()[0].Start != 0 || coverage.Intervals()[0].End != final {
		return inconsistency("audio-covers-duration",
			"audio coverage %v does not span [%s, %s)", coverage.Intervals(), timecode.Timecode(0), final)
	}
	return nil
}
