package ntp

import "time"

const (
	// UnixEraOffset is the number of seconds between 1900-01-01 (the NTP epoch)
	// and 1970-01-01 (the Unix epoch)
	UnixEraOffset int64 = 2_208_988_800

	// EraLength is 2^32, the resolution of the fraction field
	EraLength int64 = 4_294_967_296

	nanosPerSecond int64 = 1_000_000_000
)

// Timestamp is a 64-bit NTP timestamp: whole seconds since 1900 and a
// binary fraction of a second (Fraction / 2^32)
type Timestamp struct {
	Seconds  uint32
	Fraction uint32
}

// TimestampFromTime converts a calendar time to an NTP timestamp.
// Times outside era 0 (1900 to 2036) wrap.
func TimestampFromTime(t time.Time) Timestamp {
	secs := t.Unix() + UnixEraOffset
	nanos := int64(t.Nanosecond())

	return Timestamp{
		Seconds:  uint32(secs),
		Fraction: uint32((nanos << 32) / nanosPerSecond),
	}
}

// Time converts the timestamp to a UTC calendar time.
// The fraction is rounded to the nearest nanosecond so that
// TimestampFromTime(t).Time() == t for any t in era 0.
func (ts Timestamp) Time() time.Time {
	secs := int64(ts.Seconds) - UnixEraOffset
	nanos := (uint64(ts.Fraction)*uint64(nanosPerSecond) + 1<<31) >> 32

	// rounding can carry into the next second
	return time.Unix(secs, int64(nanos)).UTC()
}

// IsZero reports whether both fields are zero, which servers use for "unset"
func (ts Timestamp) IsZero() bool {
	return ts.Seconds == 0 && ts.Fraction == 0
}
