package clock

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Standard is a textual time representation
type Standard string

const (
	RFC3339   Standard = "rfc3339"
	RFC2822   Standard = "rfc2822"
	Timestamp Standard = "timestamp" // Unix seconds
)

// Standards lists every supported representation
var Standards = []Standard{RFC3339, RFC2822, Timestamp}

// RFC 2822 date layouts. The day of week is optional on input.
const (
	rfc2822         = "Mon, 02 Jan 2006 15:04:05 -0700"
	rfc2822NoDay    = "02 Jan 2006 15:04:05 -0700"
	rfc2822Short    = "Mon, 2 Jan 2006 15:04:05 -0700"
	rfc2822ShortDay = "2 Jan 2006 15:04:05 -0700"
)

// ParseStandard validates a standard name, case-insensitively
func ParseStandard(name string) (Standard, error) {
	s := Standard(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Standards {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown time standard %q (want rfc3339, rfc2822 or timestamp)", name)
}

// Format renders t in the given standard
func Format(t time.Time, std Standard) string {
	switch std {
	case RFC2822:
		return t.Format(rfc2822)
	case Timestamp:
		return strconv.FormatInt(t.Unix(), 10)
	default:
		return t.Format(time.RFC3339Nano)
	}
}

// Parse reads a time written in the given standard
func Parse(value string, std Standard) (time.Time, error) {
	value = strings.TrimSpace(value)

	switch std {
	case RFC3339:
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q as rfc3339: %w", value, err)
		}
		return t, nil

	case RFC2822:
		var firstErr error
		for _, layout := range []string{rfc2822, rfc2822NoDay, rfc2822Short, rfc2822ShortDay} {
			t, err := time.Parse(layout, value)
			if err == nil {
				return t, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		return time.Time{}, fmt.Errorf("parse %q as rfc2822: %w", value, firstErr)

	case Timestamp:
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q as unix timestamp: %w", value, err)
		}
		return time.Unix(secs, 0), nil

	default:
		return time.Time{}, fmt.Errorf("unknown time standard %q", std)
	}
}

// FormatOffset renders an offset in milliseconds as a signed duration
// rounded to the millisecond, e.g. "+1.5s" or "-250ms"
func FormatOffset(ms float64) string {
	d := time.Duration(math.Round(ms)) * time.Millisecond
	if d < 0 {
		return "-" + (-d).String()
	}
	return "+" + d.String()
}
