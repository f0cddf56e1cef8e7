// Package clock reads and sets the local system clock and converts
// calendar times to and from the textual standards the CLI accepts.
package clock

import (
	"fmt"
	"time"
)

// Now returns the local calendar time
func Now() time.Time {
	return time.Now()
}

// Setter changes the system clock
type Setter interface {
	SetTime(t time.Time) error
}

// System sets the real system clock. It usually needs root or CAP_SYS_TIME.
type System struct{}

// SetTime sets the system clock to t with microsecond precision
func (System) SetTime(t time.Time) error {
	return setSystemTime(t)
}

// OSError is a clock change the operating system refused. Err is the raw
// errno, so errors.Is(err, syscall.EPERM) works.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

// Apply moves the clock by offset relative to the time read from now,
// returning the time that was set
func Apply(s Setter, now func() time.Time, offset time.Duration) (time.Time, error) {
	target := now().Add(offset)
	if err := s.SetTime(target); err != nil {
		return time.Time{}, err
	}
	return target, nil
}
