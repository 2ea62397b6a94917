package interval

import (
	"sort"

	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// CoordinateMap is the monotonic, piecewise mapping from original-timeline
// timecodes to final-timeline timecodes after removals. It is undefined
// inside removed regions. Built once per resolution pass; lookups are
// O(log n) over the cumulative-offset table.
type CoordinateMap struct {
	kept    []Interval
	offsets []timecode.Timecode
	final   timecode.Timecode
}

// NewCoordinateMap walks the kept segments in order, assigning each a
// contiguous final-timeline offset equal to the running sum of prior
// kept-segment durations.
func NewCoordinateMap(kept Set) *CoordinateMap {
	segments := kept.Intervals()
	m := &CoordinateMap{
		kept:    segments,
		offsets: make([]timecode.Timecode, len(segments)),
	}
	var running timecode.Timecode
	for i, seg := range segments {
		m.offsets[i] = running
		running += seg.Duration()
	}
	m.final = running
	return m
}

// Map returns the image of t in the final timeline, or false when t lies
// inside a removed region.
func (m *CoordinateMap) Map(t timecode.Timecode) (timecode.Timecode, bool) {
	idx := sort.Search(len(m.kept), func(i int) bool {
		return m.kept[i].End > t
	})
	if idx >= len(m.kept) || !m.kept[idx].Contains(t) {
		return 0, false
	}
	return m.offsets[idx] + (t - m.kept[idx].Start), true
}

// MapInterval projects an original-timeline interval onto the final
// timeline, splitting it around removed regions. The result is one final
// interval per contiguous kept sub-range, in order; an interval wholly
// inside removed regions yields nil.
func (m *CoordinateMap) MapInterval(iv Interval) []Interval {
	var out []Interval
	for i, seg := range m.kept {
		sub, ok := iv.Intersect(seg)
		if !ok {
			continue
		}
		start := m.offsets[i] + (sub.Start - seg.Start)
		out = append(out, Interval{Start: start, End: start + sub.Duration()})
	}
	return out
}

// FinalDuration is the total length of the post-removal timeline.
func (m *CoordinateMap) FinalDuration() timecode.Timecode {
	return m.final
}

// KeptSegments returns the original-timeline segments that survive, in
// playback order.
func (m *CoordinateMap) KeptSegments() []Interval {
	return m.kept
}
