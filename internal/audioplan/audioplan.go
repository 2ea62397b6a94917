// Package audioplan computes the final audio graph: which sources play
// over the post-cut timeline, where they loop, and the exact gain and fade
// parameters the rendering backend applies verbatim. The backend performs
// no further adjustment, so every value here must be exact rather than
// best-effort.
package audioplan

import (
	"errors"
	"fmt"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// Mode is the user's choice for the original audio track.
type Mode string

const (
	// ModeKeep leaves the original audio in place, minus mute windows.
	ModeKeep Mode = "keep"
	// ModeRemove silences the output entirely.
	ModeRemove Mode = "remove"
	// ModeReplace swaps the original audio for a new soundtrack.
	ModeReplace Mode = "replace"
	// ModeMix sums the original (post-mute) audio with a new soundtrack.
	ModeMix Mode = "mix"
)

// TrackKind identifies what a track plays.
type TrackKind string

const (
	TrackOriginal TrackKind = "original"
	TrackExternal TrackKind = "external"
	TrackSilence  TrackKind = "silence"
)

var (
	ErrInvalidMode    = errors.New("invalid audio mode")
	ErrInvalidVolume  = errors.New("volume outside 0.0-2.0")
	ErrMissingSource  = errors.New("audio mode requires a source")
	ErrNegativeFade   = errors.New("negative fade duration")
)

// Options is the user's audio configuration for a session.
type Options struct {
	Mode Mode `json:"mode"`
	// Source references the new soundtrack for replace/mix modes; opaque
	// to the engine.
	Source string `json:"source,omitempty"`
	// SourceDuration is the new soundtrack's length.
	SourceDuration timecode.Timecode `json:"source_duration,omitempty"`
	// Loop repeats the source from its start until the final duration is
	// covered; the last repetition is truncated exactly at final duration.
	Loop bool `json:"loop,omitempty"`
	// Volume is a linear gain from 0.0 (silence) to 2.0 (double).
	Volume float64 `json:"volume,omitempty"`
	// FadeIn and FadeOut are linear ramps at the start and end of the new
	// audio's contribution.
	FadeIn  timecode.Timecode `json:"fade_in,omitempty"`
	FadeOut timecode.Timecode `json:"fade_out,omitempty"`
}

// Segment places a range of a source onto the final timeline.
type Segment struct {
	// At is the final-timeline position where the range starts.
	At timecode.Timecode `json:"at"`
	// SourceStart and SourceEnd delimit the source range, half-open.
	SourceStart timecode.Timecode `json:"source_start"`
	SourceEnd   timecode.Timecode `json:"source_end"`
}

// Track is one audio source's complete contribution to the final timeline.
type Track struct {
	Kind TrackKind `json:"kind"`
	// Source is the payload reference for external tracks, empty otherwise.
	Source string `json:"source,omitempty"`
	// Gain is the linear gain applied to the whole track.
	Gain float64 `json:"gain"`
	// FadeIn and FadeOut are already clipped against the contribution
	// length; the backend applies them verbatim.
	FadeIn  timecode.Timecode `json:"fade_in,omitempty"`
	FadeOut timecode.Timecode `json:"fade_out,omitempty"`
	// Segments are ordered, contiguous placements.
	Segments []Segment `json:"segments"`
	// MuteWindows silences parts of an original track, in final-timeline
	// coordinates.
	MuteWindows []interval.Interval `json:"mute_windows,omitempty"`
}

// End returns the final-timeline position where the track's contribution
// stops.
func (t Track) End() timecode.Timecode {
	if len(t.Segments) == 0 {
		return 0
	}
	last := t.Segments[len(t.Segments)-1]
	return last.At + (last.SourceEnd - last.SourceStart)
}

// Graph is the resolved audio plan over the final timeline.
type Graph struct {
	Duration timecode.Timecode `json:"duration"`
	Tracks   []Track           `json:"tracks"`
}

// Build computes the audio graph for the final timeline. mutedFinal is the
// resolved mute set already remapped to final coordinates.
func Build(finalDuration timecode.Timecode, mutedFinal []interval.Interval, opts Options) (*Graph, error) {
	if finalDuration <= 0 {
		return nil, fmt.Errorf("final duration must be positive, got %s", finalDuration)
	}
	if opts.FadeIn < 0 || opts.FadeOut < 0 {
		return nil, fmt.Errorf("%w: in=%s out=%s", ErrNegativeFade, opts.FadeIn, opts.FadeOut)
	}

	g := &Graph{Duration: finalDuration}

	switch opts.Mode {
	case ModeKeep:
		g.Tracks = append(g.Tracks, originalTrack(finalDuration, mutedFinal))

	case ModeRemove:
		g.Tracks = append(g.Tracks, silenceTrack(0, finalDuration))

	case ModeReplace, ModeMix:
		if opts.Source == "" || opts.SourceDuration <= 0 {
			return nil, fmt.Errorf("%w: mode %q", ErrMissingSource, opts.Mode)
		}
		if opts.Volume < 0 || opts.Volume > 2 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVolume, opts.Volume)
		}
		if opts.Mode == ModeMix {
			g.Tracks = append(g.Tracks, originalTrack(finalDuration, mutedFinal))
		}
		ext, pad := externalTrack(finalDuration, opts)
		g.Tracks = append(g.Tracks, ext)
		if pad != nil {
			g.Tracks = append(g.Tracks, *pad)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}

	return g, nil
}

// originalTrack covers the whole final timeline: post-cut original audio is
// already contiguous in final coordinates.
func originalTrack(d timecode.Timecode, muted []interval.Interval) Track {
	return Track{
		Kind:        TrackOriginal,
		Gain:        1.0,
		Segments:    []Segment{{At: 0, SourceStart: 0, SourceEnd: d}},
		MuteWindows: muted,
	}
}

func silenceTrack(at, end timecode.Timecode) Track {
	return Track{
		Kind:     TrackSilence,
		Gain:     0,
		Segments: []Segment{{At: at, SourceStart: 0, SourceEnd: end - at}},
	}
}

// externalTrack lays the new soundtrack over [0, d). Looping repeats the
// source from its start with the final repetition truncated exactly at d,
// leaving no trailing silence gap. Without looping, a shorter source is
// padded with an explicit silence track so the graph still covers the full
// duration.
func externalTrack(d timecode.Timecode, opts Options) (Track, *Track) {
	t := Track{
		Kind:   TrackExternal,
		Source: opts.Source,
		Gain:   opts.Volume,
	}

	src := opts.SourceDuration
	switch {
	case src >= d:
		t.Segments = []Segment{{At: 0, SourceStart: 0, SourceEnd: d}}
	case opts.Loop:
		var at timecode.Timecode
		for at < d {
			end := src
			if at+end > d {
				end = d - at
			}
			t.Segments = append(t.Segments, Segment{At: at, SourceStart: 0, SourceEnd: end})
			at += end
		}
	default:
		t.Segments = []Segment{{At: 0, SourceStart: 0, SourceEnd: src}}
	}

	// Fades ramp over the contribution, clipped rather than stacked when
	// they exceed it.
	contribution := t.End()
	fadeIn := opts.FadeIn
	if fadeIn > contribution {
		fadeIn = contribution
	}
	fadeOut := opts.FadeOut
	if fadeOut > contribution-fadeIn {
		fadeOut = contribution - fadeIn
	}
	t.FadeIn = fadeIn
	t.FadeOut = fadeOut

	if contribution < d {
		pad := silenceTrack(contribution, d)
		return t, &pad
	}
	return t, nil
}
