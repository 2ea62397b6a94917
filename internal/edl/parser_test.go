package edl

import (
	"errors"
	"strings"
	"testing"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

const duration60s = 60 * timecode.Second

func TestParse_ValidRows(t *testing.T) {
	input := "action,record_in,record_out\n" +
		"remove,00:10,00:20\n" +
		"mute_audio,5,25\n" +
		"remove,start,00:00:02\n"

	result, err := Parse(strings.NewReader(input), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("Parse() unexpected row errors: %v", result.Errors)
	}
	if len(result.Operations) != 3 {
		t.Fatalf("Parse() returned %d operations, want 3", len(result.Operations))
	}

	op := result.Operations[0]
	if op.Action != ActionRemove || op.Origin != OriginEDL || op.Row != 2 {
		t.Errorf("first op = %+v", op)
	}
	if op.Range.Start != 10*timecode.Second || op.Range.End != 20*timecode.Second {
		t.Errorf("first op range = %s, want [00:00:10, 00:00:20)", op.Range)
	}

	if result.Operations[1].Action != ActionMuteAudio {
		t.Errorf("second op action = %s, want mute_audio", result.Operations[1].Action)
	}
	if result.Operations[2].Range.Start != 0 {
		t.Errorf("start keyword not resolved to 0")
	}
}

func TestParse_EndKeyword(t *testing.T) {
	input := "action,record_in,record_out\nremove,00:50,end\n"

	result, err := Parse(strings.NewReader(input), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(result.Operations) != 1 {
		t.Fatalf("want 1 operation, got %d (errors: %v)", len(result.Operations), result.Errors)
	}
	if result.Operations[0].Range.End != duration60s {
		t.Errorf("end keyword resolved to %s, want %s", result.Operations[0].Range.End, timecode.Timecode(duration60s))
	}
}

func TestParse_CollectsAllErrors(t *testing.T) {
	input := "action,record_in,record_out\n" +
		"remove,00:10,00:20\n" +
		"insert,00:01,00:02\n" +
		"remove,bogus,00:05\n" +
		"mute_audio,00:30,00:30\n" +
		"remove,00:20,00:10\n" +
		"mute_audio,00:05,00:08\n"

	result, err := Parse(strings.NewReader(input), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if len(result.Operations) != 2 {
		t.Errorf("parsed %d operations, want 2 (partial success)", len(result.Operations))
	}
	if len(result.Errors) != 4 {
		t.Fatalf("collected %d errors, want 4: %v", len(result.Errors), result.Errors)
	}

	tests := []struct {
		row  int
		want error
	}{
		{3, ErrUnsupportedAction},
		{4, timecode.ErrMalformed},
		{5, interval.ErrZeroLength},
		{6, interval.ErrInvalidRange},
	}
	for i, tc := range tests {
		re := result.Errors[i]
		if re.Row != tc.row {
			t.Errorf("error %d row = %d, want %d", i, re.Row, tc.row)
		}
		if !errors.Is(re, tc.want) {
			t.Errorf("error %d = %v, want %v", i, re.Err, tc.want)
		}
	}
}

func TestParse_UnsupportedActionNamesAction(t *testing.T) {
	input := "action,record_in,record_out\ninsert,00:01,00:02\n"

	result, err := Parse(strings.NewReader(input), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("want 1 error, got %d", len(result.Errors))
	}

	msg := result.Errors[0].Error()
	if !strings.Contains(msg, "insert") || !strings.Contains(msg, "row 2") {
		t.Errorf("error message %q should name the row and action", msg)
	}
}

func TestParse_RangePastDuration(t *testing.T) {
	input := "action,record_in,record_out\nremove,00:50,01:30\n"

	result, err := Parse(strings.NewReader(input), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], interval.ErrInvalidRange) {
		t.Fatalf("want InvalidRange row error, got %v", result.Errors)
	}
}

func TestParse_ExtraColumnsPreserved(t *testing.T) {
	input := "action,record_in,record_out,note\nsplice,00:01,00:02,keep an eye on this\n"

	result, err := Parse(strings.NewReader(input), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("want 1 error, got %d", len(result.Errors))
	}
	if got := result.Errors[0].Fields["note"]; got != "keep an eye on this" {
		t.Errorf("extra column not preserved in diagnostics: %q", got)
	}
}

func TestParse_MissingColumns(t *testing.T) {
	input := "start,stop\n1,2\n"

	_, err := Parse(strings.NewReader(input), duration60s)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("Parse() error = %v, want ErrMissingColumn", err)
	}
}

func TestParse_Empty(t *testing.T) {
	result, err := Parse(strings.NewReader(""), duration60s)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(result.Operations) != 0 || result.HasErrors() {
		t.Fatalf("empty input should parse to nothing, got %+v", result)
	}
}
