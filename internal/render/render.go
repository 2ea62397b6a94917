// Package render hands resolved plans to FFmpeg. The plan is applied
// verbatim: every cut, gain, fade and mute window is already exact, so this
// package only translates plan structures into filter graphs and process
// invocations.
package render

import (
	"context"
	"log/slog"

	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// Backend executes resolved plans against real media.
type Backend interface {
	// Probe inspects a media file and returns its stream properties.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Render materialises a plan to outputPath. progress receives 0-100
	// updates; it may be nil.
	Render(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error
}

// ProbeResult describes a probed media file.
type ProbeResult struct {
	Duration    timecode.Timecode
	Width       int
	Height      int
	Codec       string
	FrameRate   float64
	AudioCodec  string
	AudioSample int
}

// StubBackend logs requests and succeeds without touching media. Used in
// headless test runs and when no FFmpeg install is present.
type StubBackend struct {
	logger *slog.Logger
}

func NewStubBackend(logger *slog.Logger) *StubBackend {
	return &StubBackend{logger: logger}
}

func (b *StubBackend) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	b.logger.Info("render stub: probe requested", "path", path)
	return &ProbeResult{}, nil
}

func (b *StubBackend) Render(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error {
	b.logger.Info("render stub: render requested",
		"source", plan.SourcePath,
		"output", outputPath,
		"final_duration", plan.FinalDuration.String(),
	)
	if progress != nil {
		progress(100)
	}
	return nil
}
