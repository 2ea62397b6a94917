package timecode

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Timecode
	}{
		{"zero", "0", 0},
		{"raw seconds", "90", 90 * Second},
		{"fractional seconds", "12.5", 12*Second + 500},
		{"short fraction", "1.2", 1200},
		{"long fraction truncated", "0.1234", 123},
		{"mm:ss", "01:30", Minute + 30*Second},
		{"mm:ss bare", "1:05", Minute + 5*Second},
		{"hh:mm:ss", "01:02:03", Hour + 2*Minute + 3*Second},
		{"hh:mm:ss fraction", "00:00:01.250", 1250},
		{"whitespace", "  45  ", 45 * Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("Parse(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{"", "abc", "1:2:3:4", "1:xx", "-5", "1:-2", ":", "12:", "+3"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Parse(%q) error = %v, want ErrMalformed", input, err)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		tc   Timecode
		want string
	}{
		{0, "00:00:00"},
		{90 * Second, "00:01:30"},
		{Hour + 2*Minute + 3*Second, "01:02:03"},
		{1250, "00:00:01.250"},
		{-(Minute + Second), "-00:01:01"},
	}

	for _, tc := range tests {
		if got := tc.tc.String(); got != tc.want {
			t.Errorf("Timecode(%d).String() = %q, want %q", tc.tc, got, tc.want)
		}
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	values := []Timecode{0, 1, 999, Second, Minute + 250, Hour + 59*Minute + 59*Second + 999}

	for _, v := range values {
		got, err := Parse(v.String())
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", v.String(), err)
		}
		if got != v {
			t.Fatalf("round trip of %d via %q = %d", v, v.String(), got)
		}
	}
}
