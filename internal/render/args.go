package render

import (
	"fmt"
	"strings"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// EncodeOptions selects output codecs. VideoCodec may name a hardware
// encoder (e.g. h264_videotoolbox); the plan itself never carries codec or
// device concerns.
type EncodeOptions struct {
	VideoCodec   string
	Preset       string
	CRF          int
	AudioBitrate string
	// HWAccel is an opaque decode-acceleration hint passed straight to
	// ffmpeg's -hwaccel flag (e.g. cuda, vaapi, videotoolbox).
	HWAccel string
}

func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		VideoCodec:   "libx264",
		Preset:       "medium",
		CRF:          18,
		AudioBitrate: "192k",
	}
}

// BuildArgs translates a validated plan into a complete ffmpeg argument
// list. Pure: no filesystem or process access, so the translation is
// testable without an FFmpeg install.
//
// audioSources maps each audio source reference (external track sources and
// audio cue payloads) to the local file the backend resolved it to (after
// any format pre-conversion).
func BuildArgs(plan *renderplan.Plan, outputPath string, audioSources map[string]string, opts EncodeOptions) ([]string, error) {
	if len(plan.Segments) == 0 {
		return nil, fmt.Errorf("plan has no segments")
	}

	b := &argBuilder{plan: plan, audioSources: audioSources}

	args := []string{"-hide_banner", "-nostdin", "-y"}
	if opts.HWAccel != "" {
		args = append(args, "-hwaccel", opts.HWAccel)
	}

	inputs, err := b.inputArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, inputs...)

	graph, err := b.filterGraph()
	if err != nil {
		return nil, err
	}
	args = append(args,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", "[aout]",
		"-t", secs(plan.FinalDuration),
		"-c:v", opts.VideoCodec,
		"-preset", opts.Preset,
		"-crf", fmt.Sprintf("%d", opts.CRF),
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		"-movflags", "+faststart",
		outputPath,
	)
	return args, nil
}

type argBuilder struct {
	plan         *renderplan.Plan
	audioSources map[string]string

	// input index assignments, filled by inputArgs
	trackInput   map[int]int // graph track index -> ffmpeg input index
	overlayInput map[int]int // plan asset index -> ffmpeg input index
	cueInput     map[int]int // plan asset index -> ffmpeg input index
}

// inputArgs lays out the ffmpeg inputs: the source video first, then one
// input per external audio track, then one per overlay image, then one per
// audio cue.
func (b *argBuilder) inputArgs() ([]string, error) {
	args := []string{"-i", b.plan.SourcePath}
	next := 1

	b.trackInput = make(map[int]int)
	for ti, tr := range b.plan.Audio.Tracks {
		if tr.Kind != audioplan.TrackExternal {
			continue
		}
		src, ok := b.audioSources[tr.Source]
		if !ok {
			return nil, fmt.Errorf("no resolved file for audio source %q", tr.Source)
		}
		if looped(tr) {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", src)
		b.trackInput[ti] = next
		next++
	}

	b.overlayInput = make(map[int]int)
	for ai, pa := range b.plan.Assets {
		if pa.Anchor.Kind != assets.KindOverlay {
			continue
		}
		args = append(args, "-i", pa.Anchor.Payload)
		b.overlayInput[ai] = next
		next++
	}

	b.cueInput = make(map[int]int)
	for ai, pa := range b.plan.Assets {
		if pa.Anchor.Kind != assets.KindAudioCue {
			continue
		}
		src, ok := b.audioSources[pa.Anchor.Payload]
		if !ok {
			return nil, fmt.Errorf("no resolved file for audio cue %q", pa.Anchor.Payload)
		}
		if pa.Anchor.AudioCue != nil && pa.Anchor.AudioCue.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", src)
		b.cueInput[ai] = next
		next++
	}
	return args, nil
}

func (b *argBuilder) filterGraph() (string, error) {
	var filters []string

	vout, vf := b.videoFilters()
	filters = append(filters, vf...)

	vout, af := b.captionAndOverlayFilters(vout)
	filters = append(filters, af...)
	filters = append(filters, fmt.Sprintf("[%s]null[vout]", vout))

	audio, err := b.audioFilters()
	if err != nil {
		return "", err
	}
	filters = append(filters, audio...)

	return strings.Join(filters, ";"), nil
}

// videoFilters trims each kept segment from the source and concatenates
// them in playback order.
func (b *argBuilder) videoFilters() (string, []string) {
	segs := b.plan.Segments
	if len(segs) == 1 && segs[0].Start == 0 && segs[0].End == b.plan.OriginalDuration {
		return "0:v", nil
	}

	var filters []string
	var labels []string
	for i, seg := range segs {
		label := fmt.Sprintf("vseg%d", i)
		filters = append(filters, fmt.Sprintf(
			"[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[%s]",
			secs(seg.Start), secs(seg.End), label))
		labels = append(labels, "["+label+"]")
	}
	if len(segs) == 1 {
		return "vseg0", filters
	}
	filters = append(filters, fmt.Sprintf(
		"%sconcat=n=%d:v=1:a=0[vcat]", strings.Join(labels, ""), len(segs)))
	return "vcat", filters
}

// captionAndOverlayFilters chains drawtext and overlay filters onto the
// concatenated video, each gated to its final-timeline range.
func (b *argBuilder) captionAndOverlayFilters(cur string) (string, []string) {
	var filters []string
	step := 0
	for ai, pa := range b.plan.Assets {
		switch pa.Anchor.Kind {
		case assets.KindCaption:
			out := fmt.Sprintf("vtxt%d", step)
			filters = append(filters, fmt.Sprintf("[%s]%s[%s]", cur, drawtextFilter(pa), out))
			cur = out
			step++
		case assets.KindOverlay:
			in := b.overlayInput[ai]
			scaled := fmt.Sprintf("ovs%d", step)
			out := fmt.Sprintf("vovl%d", step)
			filters = append(filters, overlayScaleFilter(in, pa, scaled))
			filters = append(filters, fmt.Sprintf("[%s][%s]%s[%s]", cur, scaled, overlayFilter(pa), out))
			cur = out
			step++
		}
	}
	return cur, filters
}

func drawtextFilter(pa assets.PlacedAnchor) string {
	params := pa.Anchor.Caption
	if params == nil {
		params = &assets.CaptionParams{PosX: 0.5, PosY: 0.9, FontSize: 48, Color: "white"}
	}
	fontSize := params.FontSize
	if fontSize == 0 {
		fontSize = 48
	}
	color := params.Color
	if color == "" {
		color = "white"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "drawtext=text='%s'", escapeDrawtext(pa.Anchor.Payload))
	if params.Font != "" {
		fmt.Fprintf(&sb, ":fontfile='%s'", escapeDrawtext(params.Font))
	}
	fmt.Fprintf(&sb, ":fontsize=%d:fontcolor=%s", fontSize, color)
	if params.StrokeWidth > 0 {
		stroke := params.StrokeColor
		if stroke == "" {
			stroke = "black"
		}
		fmt.Fprintf(&sb, ":borderw=%d:bordercolor=%s", params.StrokeWidth, stroke)
	}
	if params.Background != "" {
		fmt.Fprintf(&sb, ":box=1:boxcolor=%s:boxborderw=8", params.Background)
	}
	fmt.Fprintf(&sb, ":x=(w-text_w)*%.3f:y=(h-text_h)*%.3f", params.PosX, params.PosY)
	fmt.Fprintf(&sb, ":enable='between(t,%s,%s)'", secs(pa.FinalRange.Start), secs(pa.FinalRange.End))
	return sb.String()
}

func overlayScaleFilter(input int, pa assets.PlacedAnchor, out string) string {
	scale := 100.0
	if pa.Anchor.Overlay != nil && pa.Anchor.Overlay.ScalePercent > 0 {
		scale = pa.Anchor.Overlay.ScalePercent
	}
	return fmt.Sprintf("[%d:v]scale=iw*%.3f:-1[%s]", input, scale/100, out)
}

func overlayFilter(pa assets.PlacedAnchor) string {
	posX, posY := 0.5, 0.5
	if pa.Anchor.Overlay != nil {
		posX, posY = pa.Anchor.Overlay.PosX, pa.Anchor.Overlay.PosY
	}
	return fmt.Sprintf("overlay=x=(W-w)*%.3f:y=(H-h)*%.3f:enable='between(t,%s,%s)'",
		posX, posY, secs(pa.FinalRange.Start), secs(pa.FinalRange.End))
}

// audioFilters renders each graph track to a labelled stream and mixes
// them. Silence tracks become real anullsrc streams so the mix covers the
// full duration exactly as the plan states.
func (b *argBuilder) audioFilters() ([]string, error) {
	var filters []string
	var labels []string

	for ti, tr := range b.plan.Audio.Tracks {
		label := fmt.Sprintf("atr%d", ti)
		switch tr.Kind {
		case audioplan.TrackOriginal:
			filters = append(filters, b.originalAudioFilters(tr, label)...)
		case audioplan.TrackSilence:
			filters = append(filters, b.silenceFilter(tr, label))
		case audioplan.TrackExternal:
			filters = append(filters, b.externalAudioFilter(ti, tr, label))
		default:
			return nil, fmt.Errorf("unknown audio track kind %q", tr.Kind)
		}
		labels = append(labels, "["+label+"]")
	}

	for ai, pa := range b.plan.Assets {
		if pa.Anchor.Kind != assets.KindAudioCue {
			continue
		}
		label := fmt.Sprintf("acue%d", ai)
		filters = append(filters, b.audioCueFilter(ai, pa, label))
		labels = append(labels, "["+label+"]")
	}

	if len(labels) == 1 {
		filters = append(filters, fmt.Sprintf("%sanull[aout]", labels[0]))
	} else {
		filters = append(filters, fmt.Sprintf(
			"%samix=inputs=%d:duration=longest:normalize=0[aout]",
			strings.Join(labels, ""), len(labels)))
	}
	return filters, nil
}

// originalAudioFilters rebuilds the post-cut original audio: the same
// trim/concat as the video, then one volume gate per mute window.
func (b *argBuilder) originalAudioFilters(tr audioplan.Track, out string) []string {
	var filters []string
	cur := "0:a"

	segs := b.plan.Segments
	if !(len(segs) == 1 && segs[0].Start == 0 && segs[0].End == b.plan.OriginalDuration) {
		var labels []string
		for i, seg := range segs {
			label := fmt.Sprintf("%sseg%d", out, i)
			filters = append(filters, fmt.Sprintf(
				"[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[%s]",
				secs(seg.Start), secs(seg.End), label))
			labels = append(labels, "["+label+"]")
		}
		cat := out + "cat"
		filters = append(filters, fmt.Sprintf(
			"%sconcat=n=%d:v=0:a=1[%s]", strings.Join(labels, ""), len(segs), cat))
		cur = cat
	}

	var chain []string
	for _, mw := range tr.MuteWindows {
		chain = append(chain, fmt.Sprintf(
			"volume=enable='between(t,%s,%s)':volume=0", secs(mw.Start), secs(mw.End)))
	}
	if tr.Gain != 1.0 {
		chain = append(chain, fmt.Sprintf("volume=%.3f", tr.Gain))
	}
	if len(chain) == 0 {
		chain = append(chain, "anull")
	}
	filters = append(filters, fmt.Sprintf("[%s]%s[%s]", cur, strings.Join(chain, ","), out))
	return filters
}

func (b *argBuilder) silenceFilter(tr audioplan.Track, out string) string {
	at := tr.Segments[0].At
	length := tr.End() - at
	f := fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=44100,atrim=0:%s", secs(length))
	if at > 0 {
		ms := int64(at)
		f += fmt.Sprintf(",adelay=%d|%d", ms, ms)
	}
	return f + "[" + out + "]"
}

// externalAudioFilter trims the (possibly stream-looped) input to the
// track's exact contribution and applies gain and fades verbatim.
func (b *argBuilder) externalAudioFilter(ti int, tr audioplan.Track, out string) string {
	contribution := tr.End()

	chain := []string{
		fmt.Sprintf("[%d:a]atrim=0:%s", b.trackInput[ti], secs(contribution)),
		"asetpts=PTS-STARTPTS",
	}
	if tr.Gain != 1.0 {
		chain = append(chain, fmt.Sprintf("volume=%.3f", tr.Gain))
	}
	if tr.FadeIn > 0 {
		chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%s", secs(tr.FadeIn)))
	}
	if tr.FadeOut > 0 {
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s",
			secs(contribution-tr.FadeOut), secs(tr.FadeOut)))
	}
	return strings.Join(chain, ",") + "[" + out + "]"
}

// audioCueFilter renders a timed audio insert: the (possibly stream-looped)
// cue input trimmed to its final-timeline window, gain and fades applied,
// then delayed to the window's start so amix lands it in place.
func (b *argBuilder) audioCueFilter(ai int, pa assets.PlacedAnchor, out string) string {
	window := pa.FinalRange.Duration()

	chain := []string{
		fmt.Sprintf("[%d:a]atrim=0:%s", b.cueInput[ai], secs(window)),
		"asetpts=PTS-STARTPTS",
	}

	params := pa.Anchor.AudioCue
	if params != nil {
		if params.Volume != 0 && params.Volume != 1.0 {
			chain = append(chain, fmt.Sprintf("volume=%.3f", params.Volume))
		}
		fadeIn := params.FadeIn
		if fadeIn > window {
			fadeIn = window
		}
		if fadeIn > 0 {
			chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%s", secs(fadeIn)))
		}
		fadeOut := params.FadeOut
		if fadeOut > window {
			fadeOut = window
		}
		if fadeOut > 0 {
			chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s",
				secs(window-fadeOut), secs(fadeOut)))
		}
	}

	if at := int64(pa.FinalRange.Start); at > 0 {
		chain = append(chain, fmt.Sprintf("adelay=%d|%d", at, at))
	}
	return strings.Join(chain, ",") + "[" + out + "]"
}

// looped reports whether an external track repeats its source. The plan
// encodes looping as multiple contiguous segments that all restart at
// source position zero.
func looped(tr audioplan.Track) bool {
	return tr.Kind == audioplan.TrackExternal && len(tr.Segments) > 1
}

func secs(t timecode.Timecode) string {
	return fmt.Sprintf("%.3f", t.Seconds())
}

// escapeDrawtext escapes text for ffmpeg's drawtext filter, whose parser
// treats quotes, colons and backslashes specially.
func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(s)
}
