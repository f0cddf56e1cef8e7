// Package timehealth periodically checks the local clock against a set of
// NTP servers and tracks whether it is within tolerance.
package timehealth

import (
	"context"
	"sync"
	"time"

	"github.com/alexwitherspoon/clock/internal/logger"
	"github.com/alexwitherspoon/clock/internal/ntp"
)

// Checker produces a consensus offset. *ntp.Aggregator implements it.
type Checker interface {
	CheckTime(ctx context.Context) (ntp.Report, error)
}

// Config represents time health configuration
type Config struct {
	CheckInterval    time.Duration // Default: 5 minutes
	MaxOffset        time.Duration // Default: 5 seconds
	ReferenceServers []string      // Cross-check servers, empty disables
	ReferenceTimeout time.Duration // Default: 5 seconds
	Retry            Backoff       // Spacing of checks after a failure
}

// Status represents the current time health status
type Status struct {
	Healthy     bool
	Offset      time.Duration // Consensus offset, positive when the local clock is behind
	LastCheck   time.Time
	LastSuccess time.Time // Zero until a check produces an offset
	LastError   error
	Responding  int // Servers that answered the last check
	Servers     int // Servers queried
	Failures    int // Consecutive failed checks

	// Set when a reference server answered the last check
	ReferenceServer string
	ReferenceOffset time.Duration

	// Round-trip delays of every reply since Start
	Delays DelaySummary
}

// TimeHealth manages time health status
type TimeHealth struct {
	checker Checker
	config  Config
	log     *logger.Logger

	// query is the reference lookup, replaced in tests
	query func(server string, timeout time.Duration) (time.Duration, error)

	mu       sync.RWMutex
	status   Status
	delays   *delayStats
	onUpdate func(Status)
}

// New creates a time health monitor around checker
func New(config Config, checker Checker, log *logger.Logger) *TimeHealth {
	if config.CheckInterval == 0 {
		config.CheckInterval = 5 * time.Minute
	}
	if config.MaxOffset == 0 {
		config.MaxOffset = 5 * time.Second
	}
	if config.ReferenceTimeout == 0 {
		config.ReferenceTimeout = 5 * time.Second
	}
	if config.Retry.Initial == 0 {
		config.Retry = DefaultBackoff()
	}
	if log == nil {
		log = logger.Default()
	}

	return &TimeHealth{
		checker: checker,
		config:  config,
		log:     log.With("component", "timehealth"),
		query:   queryNTP,
		delays:  newDelayStats(),
	}
}

// OnUpdate registers fn to be called with the status after every check.
// fn runs on the monitor goroutine.
func (th *TimeHealth) OnUpdate(fn func(Status)) {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.onUpdate = fn
}

// IsHealthy returns whether time is currently considered healthy
func (th *TimeHealth) IsHealthy() bool {
	th.mu.RLock()
	defer th.mu.RUnlock()
	return th.status.Healthy
}

// GetStatus returns the current time health status
func (th *TimeHealth) GetStatus() Status {
	th.mu.RLock()
	defer th.mu.RUnlock()
	return th.status
}

// Start performs an initial check, then checks every CheckInterval on a
// background goroutine until ctx is done. After a failed check the next one
// comes sooner, on the Retry backoff. The returned channel closes when
// that goroutine exits.
func (th *TimeHealth) Start(ctx context.Context) <-chan struct{} {
	th.check(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		th.run(ctx)
	}()
	return done
}

func (th *TimeHealth) run(ctx context.Context) {
	timer := time.NewTimer(th.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			th.check(ctx)
			timer.Reset(th.nextDelay())
		}
	}
}

// nextDelay is the wait before the next check
func (th *TimeHealth) nextDelay() time.Duration {
	failures := th.GetStatus().Failures
	if failures == 0 {
		return th.config.CheckInterval
	}
	return th.config.Retry.Delay(failures, th.config.CheckInterval)
}

// check performs a single consensus check and, if configured, a reference
// cross-check
func (th *TimeHealth) check(ctx context.Context) {
	report, err := th.checker.CheckTime(ctx)

	status := Status{
		LastCheck:  time.Now(),
		LastError:  err,
		Responding: report.Responding(),
		Servers:    len(report.Samples),
	}

	if err != nil {
		// Keep the last good offset for display, but never call it healthy
		previous := th.GetStatus()
		status.Offset = previous.Offset
		status.LastSuccess = previous.LastSuccess
		status.Failures = previous.Failures + 1
		th.log.Warn("Time check failed", "error", err, "failures", status.Failures)
	} else {
		status.Offset = report.Offset
		status.LastSuccess = status.LastCheck
		status.Healthy = absDuration(report.Offset) <= th.config.MaxOffset
		if !status.Healthy {
			th.log.Warn("Clock offset exceeds tolerance",
				"offset", report.Offset,
				"max_offset", th.config.MaxOffset)
		}
	}

	if len(th.config.ReferenceServers) > 0 {
		th.crossCheck(&status, err == nil)
	}

	th.mu.Lock()
	if err := th.delays.record(report); err != nil {
		th.log.Warn("Delay not recorded", "error", err)
	}
	status.Delays = th.delays.summary()
	th.status = status
	notify := th.onUpdate
	th.mu.Unlock()

	if notify != nil {
		notify(status)
	}
}

// absDuration returns the absolute value of a duration
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
