// Package assets models time-anchored overlay, caption and audio-mix cues
// and remaps them from original-timeline coordinates to final-timeline
// coordinates once the cut list is resolved.
package assets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// Kind identifies what an anchor renders as.
type Kind string

const (
	KindOverlay  Kind = "overlay"
	KindCaption  Kind = "caption"
	KindAudioCue Kind = "audio_cue"
)

// Anchor is a time-anchored asset in original-timeline coordinates. The
// payload is opaque to the engine: an image path for overlays, the text for
// captions, an audio source reference for cues.
type Anchor struct {
	ID      string            `json:"id"`
	Kind    Kind              `json:"kind"`
	Range   interval.Interval `json:"range"`
	Payload string            `json:"payload"`

	Overlay  *OverlayParams  `json:"overlay,omitempty"`
	Caption  *CaptionParams  `json:"caption,omitempty"`
	AudioCue *AudioCueParams `json:"audio_cue,omitempty"`
}

// OverlayParams carries the rendering parameters for a graphic overlay.
// Positions are fractions of the frame with 0 at the left/top edge.
type OverlayParams struct {
	PosX         float64           `json:"pos_x"`
	PosY         float64           `json:"pos_y"`
	ScalePercent float64           `json:"scale_percent,omitempty"`
	FadeIn       timecode.Timecode `json:"fade_in,omitempty"`
	FadeOut      timecode.Timecode `json:"fade_out,omitempty"`
}

// CaptionParams carries text rendering parameters. Font is a name or path
// resolved by the rendering backend.
type CaptionParams struct {
	Font        string            `json:"font,omitempty"`
	FontSize    int               `json:"font_size,omitempty"`
	Color       string            `json:"color,omitempty"`
	StrokeColor string            `json:"stroke_color,omitempty"`
	StrokeWidth int               `json:"stroke_width,omitempty"`
	Background  string            `json:"background,omitempty"`
	Align       string            `json:"align,omitempty"`
	PosX        float64           `json:"pos_x"`
	PosY        float64           `json:"pos_y"`
	FadeIn      timecode.Timecode `json:"fade_in,omitempty"`
	FadeOut     timecode.Timecode `json:"fade_out,omitempty"`
}

// AudioCueParams carries mix parameters for a timed audio insert.
// Volume is a linear gain where 1.0 is unity and 2.0 doubles.
type AudioCueParams struct {
	Volume  float64           `json:"volume"`
	Loop    bool              `json:"loop,omitempty"`
	FadeIn  timecode.Timecode `json:"fade_in,omitempty"`
	FadeOut timecode.Timecode `json:"fade_out,omitempty"`
}

const safeMargin = 0.10

// ParsePosition converts user position text to a frame fraction. Named
// edges land on a 10% safe margin, matching how the interactive editor
// placed graphics. Accepts "left", "center", "right", "top", "bottom",
// bare fractions ("0.25"), and percentages ("25%", "25").
func ParsePosition(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "left", "top":
		return safeMargin, nil
	case "center", "":
		return 0.5, nil
	case "right", "bottom":
		return 1.0 - safeMargin, nil
	}

	text := strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	if strings.HasSuffix(s, "%") || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("position %q outside 0-100%%", s)
	}
	return v, nil
}
