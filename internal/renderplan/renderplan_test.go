package renderplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

func sec(n int64) timecode.Timecode {
	return timecode.Timecode(n) * timecode.Second
}

func resolve(t *testing.T, duration timecode.Timecode, ops ...edl.Operation) *timeline.Resolution {
	t.Helper()
	res, err := timeline.Resolve(ops, duration)
	require.NoError(t, err)
	return res
}

func removeOp(t *testing.T, start, end int64) edl.Operation {
	t.Helper()
	rng, err := interval.New(sec(start), sec(end))
	require.NoError(t, err)
	return edl.Operation{Action: edl.ActionRemove, Range: rng, Origin: edl.OriginInteractive}
}

func keepGraph(t *testing.T, d timecode.Timecode) *audioplan.Graph {
	t.Helper()
	g, err := audioplan.Build(d, nil, audioplan.Options{Mode: audioplan.ModeKeep})
	require.NoError(t, err)
	return g
}

func TestEmit_EmptyEditYieldsIdentityPlan(t *testing.T) {
	res := resolve(t, sec(60))

	plan, err := Emit(res, nil, keepGraph(t, sec(60)), "/media/source.mp4")
	require.NoError(t, err)

	assert.Equal(t, sec(60), plan.FinalDuration)
	require.Len(t, plan.Segments, 1)
	assert.Equal(t, timecode.Timecode(0), plan.Segments[0].Start)
	assert.Equal(t, sec(60), plan.Segments[0].End)
	assert.Equal(t, "/media/source.mp4", plan.SourcePath)
}

func TestEmit_FullPipeline(t *testing.T) {
	res := resolve(t, sec(60), removeOp(t, 10, 20))

	anchors := []assets.Anchor{{
		ID:      "cap-1",
		Kind:    assets.KindCaption,
		Range:   mustInterval(t, sec(30), sec(35)),
		Payload: "hello",
	}}
	placed, report := assets.Place(anchors, res.Map)
	require.Empty(t, report.Dropped)

	graph, err := audioplan.Build(res.FinalDuration(), res.MutedFinal(), audioplan.Options{Mode: audioplan.ModeKeep})
	require.NoError(t, err)

	plan, err := Emit(res, placed, graph, "/media/source.mp4")
	require.NoError(t, err)

	assert.Equal(t, sec(50), plan.FinalDuration)
	require.Len(t, plan.Segments, 2)
	require.Len(t, plan.Assets, 1)
	assert.Equal(t, sec(20), plan.Assets[0].FinalRange.Start)
}

func TestEmit_AssetOutOfBounds(t *testing.T) {
	res := resolve(t, sec(60), removeOp(t, 10, 20))

	bad := []assets.PlacedAnchor{{
		Anchor:     assets.Anchor{ID: "rogue", Kind: assets.KindOverlay},
		FinalRange: mustInterval(t, sec(45), sec(55)),
		Part:       1,
		Parts:      1,
	}}

	_, err := Emit(res, bad, keepGraph(t, sec(50)), "/x.mp4")
	require.ErrorIs(t, err, ErrInconsistent)

	var inc *InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, "asset-within-bounds", inc.Invariant)
}

func TestEmit_AudioDurationMismatch(t *testing.T) {
	res := resolve(t, sec(60), removeOp(t, 10, 20))

	_, err := Emit(res, nil, keepGraph(t, sec(60)), "/x.mp4")
	require.ErrorIs(t, err, ErrInconsistent)

	var inc *InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, "audio-duration-matches", inc.Invariant)
}

func TestEmit_AudioCoverageGap(t *testing.T) {
	res := resolve(t, sec(60), removeOp(t, 10, 20))

	graph := &audioplan.Graph{
		Duration: sec(50),
		Tracks: []audioplan.Track{{
			Kind:     audioplan.TrackExternal,
			Source:   "t.wav",
			Gain:     1,
			Segments: []audioplan.Segment{{At: 0, SourceStart: 0, SourceEnd: sec(40)}},
		}},
	}

	_, err := Emit(res, nil, graph, "/x.mp4")
	var inc *InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, "audio-covers-duration", inc.Invariant)
}

func TestEmit_LoopedAudioValidates(t *testing.T) {
	res := resolve(t, sec(60), removeOp(t, 10, 20), removeOp(t, 45, 60))
	require.Equal(t, sec(35), res.FinalDuration())

	graph, err := audioplan.Build(res.FinalDuration(), nil, audioplan.Options{
		Mode: audioplan.ModeReplace, Source: "loop.wav", SourceDuration: sec(10), Loop: true, Volume: 1,
	})
	require.NoError(t, err)

	plan, err := Emit(res, nil, graph, "/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, sec(35), plan.Audio.Duration)
}

func mustInterval(t *testing.T, start, end timecode.Timecode) interval.Interval {
	t.Helper()
	iv, err := interval.New(start, end)
	require.NoError(t, err)
	return iv
}
