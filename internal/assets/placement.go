package assets

import (
	"sort"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// PlacedAnchor is an anchor remapped into final-timeline coordinates. An
// anchor spanning a cut is split into one PlacedAnchor per contiguous kept
// sub-range, each carrying the same payload.
type PlacedAnchor struct {
	Anchor     Anchor            `json:"anchor"`
	FinalRange interval.Interval `json:"final_range"`
	// Part/Parts number the pieces of a split anchor, both 1 when the
	// anchor survived whole.
	Part  int `json:"part"`
	Parts int `json:"parts"`
}

// DroppedAsset records user content that could not survive the cut, with
// enough context to explain why. Nothing is ever lost silently.
type DroppedAsset struct {
	AnchorID string `json:"anchor_id"`
	Kind     Kind   `json:"kind"`
	Reason   string `json:"reason"`
}

// ClippedAsset records an anchor that survived but lost part of its range
// to a removed region.
type ClippedAsset struct {
	AnchorID string `json:"anchor_id"`
	Kind     Kind   `json:"kind"`
	Reason   string `json:"reason"`
}

// Report collects the placement diagnostics returned to the caller
// alongside the placed anchors.
type Report struct {
	Dropped []DroppedAsset `json:"dropped,omitempty"`
	Clipped []ClippedAsset `json:"clipped,omitempty"`
}

// Place remaps each anchor through the coordinate map. Anchors wholly
// inside removed regions are dropped and reported; anchors straddling a cut
// boundary are clipped to the nearest kept range; anchors spanning multiple
// kept segments are split. The result is ordered by final start time.
func Place(anchors []Anchor, m *interval.CoordinateMap) ([]PlacedAnchor, *Report) {
	report := &Report{}
	var placed []PlacedAnchor

	for _, a := range anchors {
		pieces := m.MapInterval(a.Range)
		if len(pieces) == 0 {
			report.Dropped = append(report.Dropped, DroppedAsset{
				AnchorID: a.ID,
				Kind:     a.Kind,
				Reason:   "anchor " + a.Range.String() + " lies wholly inside removed regions",
			})
			continue
		}

		var mapped timecode.Timecode
		for _, p := range pieces {
			mapped += p.Duration()
		}
		if mapped < a.Range.Duration() {
			report.Clipped = append(report.Clipped, ClippedAsset{
				AnchorID: a.ID,
				Kind:     a.Kind,
				Reason:   "anchor " + a.Range.String() + " overlaps removed regions and was clipped",
			})
		}

		for i, p := range pieces {
			placed = append(placed, PlacedAnchor{
				Anchor:     a,
				FinalRange: p,
				Part:       i + 1,
				Parts:      len(pieces),
			})
		}
	}

	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].FinalRange.Start < placed[j].FinalRange.Start
	})

	return placed, report
}
