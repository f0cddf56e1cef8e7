//go:build !(linux || darwin || freebsd)

package clock

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

func setSystemTime(t time.Time) error {
	return fmt.Errorf("set system time on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}
