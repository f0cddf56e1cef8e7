package timehealth

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/alexwitherspoon/clock/internal/ntp"
)

// maxTrackedDelay caps recorded delays; replies take at most the timeout
const maxTrackedDelay = time.Minute

// DelaySummary describes the round-trip delays of every reply seen so far
type DelaySummary struct {
	Count int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// delayStats is a microsecond histogram of reply delays. Not safe for
// concurrent use; TimeHealth guards it with its mutex.
type delayStats struct {
	hist *hdrhistogram.Histogram
}

func newDelayStats() *delayStats {
	return &delayStats{
		hist: hdrhistogram.New(1, maxTrackedDelay.Microseconds(), 3),
	}
}

// record adds the delay of every server that answered, returning the first
// value the histogram rejected
func (d *delayStats) record(report ntp.Report) error {
	var firstErr error
	for _, s := range report.Samples {
		if s.Err != nil {
			continue
		}
		us := s.Result.Delay().Microseconds()
		// Asymmetric paths can give zero or negative delays
		if us < 1 {
			us = 1
		}
		if us > maxTrackedDelay.Microseconds() {
			us = maxTrackedDelay.Microseconds()
		}
		if err := d.hist.RecordValue(us); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("record delay %dus for %s: %w", us, s.Server, err)
		}
	}
	return firstErr
}

func (d *delayStats) summary() DelaySummary {
	if d.hist.TotalCount() == 0 {
		return DelaySummary{}
	}
	return DelaySummary{
		Count: d.hist.TotalCount(),
		P50:   time.Duration(d.hist.ValueAtQuantile(50.)) * time.Microsecond,
		P95:   time.Duration(d.hist.ValueAtQuantile(95.)) * time.Microsecond,
		P99:   time.Duration(d.hist.ValueAtQuantile(99.)) * time.Microsecond,
		Max:   time.Duration(d.hist.Max()) * time.Microsecond,
	}
}
