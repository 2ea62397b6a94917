// Package interval implements the canonical interval model the edit engine
// is built on: half-open [start, end) ranges over original-timeline
// timecodes, kept sorted, disjoint and non-adjacent. Both removed regions
// and muted regions use the same representation.
package interval

import (
	"errors"
	"fmt"
	"sort"

	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

var (
	ErrZeroLength   = errors.New("zero-length interval")
	ErrInvalidRange = errors.New("invalid range")
)

// Interval is a half-open [Start, End) range. Half-open bounds make
// adjacency and merging unambiguous: [a,b) and [b,c) touch but do not
// overlap.
type Interval struct {
	Start timecode.Timecode `json:"start"`
	End   timecode.Timecode `json:"end"`
}

// New validates and constructs an interval. A zero-length range is an error
// rather than a silent no-op, since it almost always signals a parsing
// mistake upstream.
func New(start, end timecode.Timecode) (Interval, error) {
	if start < 0 {
		return Interval{}, fmt.Errorf("%w: start %s is negative", ErrInvalidRange, start)
	}
	if start == end {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrZeroLength, start, end)
	}
	if start > end {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

func (i Interval) Duration() timecode.Timecode {
	return i.End - i.Start
}

// Contains reports whether t falls inside the half-open range.
func (i Interval) Contains(t timecode.Timecode) bool {
	return t >= i.Start && t < i.End
}

// Intersect returns the overlap of two intervals, if any. Touching
// intervals do not intersect.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	start := i.Start
	if o.Start > start {
		start = o.Start
	}
	end := i.End
	if o.End < end {
		end = o.End
	}
	if start >= end {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start, i.End)
}

// Set is an ordered sequence of disjoint, non-adjacent intervals. The zero
// value is an empty set ready for use.
type Set struct {
	intervals []Interval
}

// NewSet builds a set from arbitrary intervals, merging as it goes.
func NewSet(intervals ...Interval) Set {
	var s Set
	for _, iv := range intervals {
		s.Insert(iv)
	}
	return s
}

// Insert adds an interval and re-merges any neighbors it now overlaps or
// touches. The merge rule is a.End >= b.Start: fully overlapping duplicates
// collapse to one.
func (s *Set) Insert(iv Interval) {
	idx := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Start > iv.Start
	})

	merged := iv
	lo := idx
	if lo > 0 && s.intervals[lo-1].End >= merged.Start {
		lo--
		merged.Start = s.intervals[lo].Start
		if s.intervals[lo].End > merged.End {
			merged.End = s.intervals[lo].End
		}
	}
	hi := idx
	for hi < len(s.intervals) && merged.End >= s.intervals[hi].Start {
		if s.intervals[hi].End > merged.End {
			merged.End = s.intervals[hi].End
		}
		hi++
	}

	out := make([]Interval, 0, len(s.intervals)-(hi-lo)+1)
	out = append(out, s.intervals[:lo]...)
	out = append(out, merged)
	out = append(out, s.intervals[hi:]...)
	s.intervals = out
}

// Intervals returns the canonical sorted intervals. Callers must not
// mutate the returned slice.
func (s Set) Intervals() []Interval {
	return s.intervals
}

func (s Set) Len() int {
	return len(s.intervals)
}

func (s Set) IsEmpty() bool {
	return len(s.intervals) == 0
}

// Contains reports whether t lies inside any interval of the set.
func (s Set) Contains(t timecode.Timecode) bool {
	idx := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].End > t
	})
	return idx < len(s.intervals) && s.intervals[idx].Contains(t)
}

// TotalDuration returns the summed length of all intervals.
func (s Set) TotalDuration() timecode.Timecode {
	var total timecode.Timecode
	for _, iv := range s.intervals {
		total += iv.Duration()
	}
	return total
}

// Complement returns the set of time within [0, total) not covered by s.
// Intervals extending past total are clipped.
func (s Set) Complement(total timecode.Timecode) Set {
	var out Set
	var cursor timecode.Timecode
	for _, iv := range s.intervals {
		if iv.Start >= total {
			break
		}
		if cursor < iv.Start {
			out.intervals = append(out.intervals, Interval{Start: cursor, End: iv.Start})
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	if cursor < total {
		out.intervals = append(out.intervals, Interval{Start: cursor, End: total})
	}
	return out
}

// Subtract returns the portions of s not covered by other. Used to clip
// mute intervals against removed regions: a mute inside a cut has no audio
// left to silence.
func (s Set) Subtract(other Set) Set {
	var out Set
	for _, iv := range s.intervals {
		remaining := []Interval{iv}
		for _, cut := range other.intervals {
			var next []Interval
			for _, r := range remaining {
				if cut.End <= r.Start || cut.Start >= r.End {
					next = append(next, r)
					continue
				}
				if cut.Start > r.Start {
					next = append(next, Interval{Start: r.Start, End: cut.Start})
				}
				if cut.End < r.End {
					next = append(next, Interval{Start: cut.End, End: r.End})
				}
			}
			remaining = next
		}
		out.intervals = append(out.intervals, remaining...)
	}
	return out
}

// Equal reports whether two sets cover exactly the same intervals.
func (s Set) Equal(other Set) bool {
	if len(s.intervals) != len(other.intervals) {
		return false
	}
	for i, iv := range s.intervals {
		if iv != other.intervals[i] {
			return false
		}
	}
	return true
}
