// Package timecode provides the integer time unit used throughout the edit
// engine. All times are millisecond counts from media start; floating point
// is never stored, so remapping round-trips exactly across any number of cuts.
package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed timecode")

// Timecode is a count of milliseconds from the start of the media.
type Timecode int64

const (
	Millisecond Timecode = 1
	Second      Timecode = 1000 * Millisecond
	Minute      Timecode = 60 * Second
	Hour        Timecode = 60 * Minute
)

// Parse converts human timecode text to a Timecode. Accepted forms:
// raw seconds with an optional fraction ("90", "12.5"), MM:SS ("01:30"),
// and HH:MM:SS ("01:02:03"). Components may carry fractions.
func Parse(s string) (Timecode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrMalformed)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has too many components", ErrMalformed, s)
	}

	var total Timecode
	for _, part := range parts {
		ms, err := parseComponent(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		total = total*60 + ms
	}

	if total < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrMalformed, s)
	}
	return total, nil
}

// parseComponent parses a single numeric component into milliseconds.
func parseComponent(s string) (Timecode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformed
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, ErrMalformed
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx != -1 {
		whole, frac = s[:idx], s[idx+1:]
	}

	var sec int64
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, ErrMalformed
		}
		sec = v
	}

	ms := sec * int64(Second)
	if frac != "" {
		// Pad or truncate the fraction to millisecond precision.
		for len(frac) < 3 {
			frac += "0"
		}
		frac = frac[:3]
		v, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrMalformed
		}
		ms += v
	}
	return Timecode(ms), nil
}

// Seconds returns the timecode as floating-point seconds. Intended for
// display and for handing off to the rendering backend, never for storage.
func (t Timecode) Seconds() float64 {
	return float64(t) / float64(Second)
}

// String renders the canonical HH:MM:SS.mmm form, omitting the milliseconds
// suffix when it is zero.
func (t Timecode) String() string {
	neg := ""
	if t < 0 {
		neg = "-"
		t = -t
	}
	ms := t % Second
	total := t / Second
	sec := total % 60
	min := (total / 60) % 60
	hr := total / 3600
	if ms == 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d", neg, hr, min, sec)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", neg, hr, min, sec, ms)
}
