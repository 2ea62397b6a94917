package edl

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// ParseResult holds the outcome of reading an EDL: every operation that
// parsed plus every row that failed. Parsing is side-effect-free and never
// fail-fast, so a user editing a large EDL sees all problems in one pass.
type ParseResult struct {
	Operations []Operation
	Errors     []*RowError
}

// HasErrors reports whether any row was rejected.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Parse reads CSV rows of {action, record_in, record_out, ...}. Extra
// columns are ignored for parsing but carried into row diagnostics. The
// media duration resolves the "end" keyword and bounds-checks ranges; pass
// zero to skip bounds checking.
func Parse(r io.Reader, duration timecode.Timecode) (*ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &ParseResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read EDL header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"action", "record_in", "record_out"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	result := &ParseResult{}
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, &RowError{
				Row: row,
				Err: fmt.Errorf("unreadable row: %w", err),
			})
			continue
		}

		op, rowErr := parseRow(record, cols, header, row, duration)
		if rowErr != nil {
			result.Errors = append(result.Errors, rowErr)
			continue
		}
		result.Operations = append(result.Operations, op)
	}

	return result, nil
}

func parseRow(record []string, cols map[string]int, header []string, row int, duration timecode.Timecode) (Operation, *RowError) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	actionText := strings.ToLower(field("action"))
	fail := func(err error) (Operation, *RowError) {
		return Operation{}, &RowError{Row: row, Action: actionText, Err: err, Fields: rowFields(header, record)}
	}

	var action Action
	switch Action(actionText) {
	case ActionRemove:
		action = ActionRemove
	case ActionMuteAudio:
		action = ActionMuteAudio
	default:
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedAction, actionText))
	}

	in, err := parseTimestamp(field("record_in"), duration)
	if err != nil {
		return fail(fmt.Errorf("record_in: %w", err))
	}
	out, err := parseTimestamp(field("record_out"), duration)
	if err != nil {
		return fail(fmt.Errorf("record_out: %w", err))
	}

	rng, err := interval.New(in, out)
	if err != nil {
		return fail(err)
	}
	if duration > 0 && rng.End > duration {
		return fail(fmt.Errorf("%w: %s extends past media duration %s",
			interval.ErrInvalidRange, rng, duration))
	}

	return Operation{Action: action, Range: rng, Origin: OriginEDL, Row: row}, nil
}

// parseTimestamp accepts everything timecode.Parse does plus the "start"
// and "end" keywords, which resolve against the media duration.
func parseTimestamp(s string, duration timecode.Timecode) (timecode.Timecode, error) {
	switch strings.ToLower(s) {
	case "start":
		return 0, nil
	case "end":
		if duration <= 0 {
			return 0, fmt.Errorf("%w: %q requires a known media duration", timecode.ErrMalformed, s)
		}
		return duration, nil
	}
	return timecode.Parse(s)
}

func rowFields(header, record []string) map[string]string {
	fields := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(record) {
			fields[strings.TrimSpace(name)] = strings.TrimSpace(record[i])
		}
	}
	return fields
}
