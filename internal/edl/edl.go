// Package edl reads and writes Edit Decision Lists. The reader consumes
// tabular CSV instructions and produces typed edit operations; the writer
// renders a resolved cut list back out in CMX 3600 form for interchange
// with other editors.
package edl

import (
	"errors"
	"fmt"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
)

// Action identifies what an edit operation does to the timeline.
type Action string

const (
	// ActionRemove cuts a range of video and audio out of the timeline.
	ActionRemove Action = "remove"
	// ActionMuteAudio silences a range of the original audio track.
	ActionMuteAudio Action = "mute_audio"
)

// Origin records where an operation came from, for diagnostics only.
type Origin string

const (
	OriginInteractive Origin = "interactive"
	OriginEDL         Origin = "edl"
)

// Operation is a single typed edit instruction. Operations are created by
// the EDL reader or the API layer, consumed once by the timeline resolver,
// and never mutated afterward.
type Operation struct {
	Action Action            `json:"action"`
	Range  interval.Interval `json:"range"`
	Origin Origin            `json:"origin"`
	// Row is the 1-based source row for EDL-sourced operations, 0 otherwise.
	Row int `json:"row,omitempty"`
}

var (
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrMissingColumn     = errors.New("missing required column")
)

// RowError describes a single rejected EDL row. Rows fail independently;
// the reader returns every RowError alongside the operations that did
// parse.
type RowError struct {
	Row    int
	Action string
	Err    error
	// Fields is the complete source row keyed by header name, extra
	// columns included, so diagnostics can show the offending input
	// without the caller re-reading the file.
	Fields map[string]string
}

func (e *RowError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("row %d (%s): %v", e.Row, e.Action, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
