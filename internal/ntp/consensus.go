package ntp

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alexwitherspoon/clock/internal/logger"
)

// weightScale is the numerator of the sample weight, with delay in ms
const weightScale = 1_000_000.0

// Config selects which servers a consensus check queries and how
type Config struct {
	Servers     []string      // Hostnames or IP addresses
	Port        int           // Remote port, default 123
	LocalPort   int           // Source port, 0 for ephemeral
	Timeout     time.Duration // Per-exchange read timeout, default 1s
	Concurrency int           // Exchanges in flight, default 1 (sequential)
}

// Sample is one server's contribution to a consensus check
type Sample struct {
	Server   string
	Result   Result
	Err      error   // Set when the exchange failed
	Weight   float64 // 1e6 / delay_ms², zero when excluded
	Included bool    // Whether the sample counts toward the mean
}

// Report is the outcome of a consensus check
type Report struct {
	RunID    string
	Samples  []Sample      // In configured server order
	OffsetMs float64       // Weighted mean offset in milliseconds
	Offset   time.Duration // OffsetMs truncated to the nanosecond
}

// OffsetMillis returns the consensus offset in milliseconds, unrounded
func (r Report) OffsetMillis() float64 {
	return r.OffsetMs
}

// Responding counts servers that answered, whether or not they were weighted in
func (r Report) Responding() int {
	n := 0
	for _, s := range r.Samples {
		if s.Err == nil {
			n++
		}
	}
	return n
}

// Aggregator queries a fixed list of servers and combines their offsets
type Aggregator struct {
	config    Config
	estimator *Estimator
	log       *logger.Logger
}

// NewAggregator creates an aggregator, filling in defaults for zero fields
func NewAggregator(config Config, log *logger.Logger) *Aggregator {
	if config.Port == 0 {
		config.Port = Port
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if log == nil {
		log = logger.Default()
	}

	return &Aggregator{
		config:    config,
		estimator: NewEstimator(config.LocalPort),
		log:       log,
	}
}

// Servers returns the configured server list
func (a *Aggregator) Servers() []string {
	return a.config.Servers
}

// CheckTime exchanges with every configured server and returns the
// inverse-square-delay weighted mean of their offsets. Servers that are
// unreachable or send a malformed reply are logged, recorded on their
// sample and skipped. ErrNoData is returned when no server yields a finite
// weight.
func (a *Aggregator) CheckTime(ctx context.Context) (Report, error) {
	report := Report{
		RunID:   uuid.NewString(),
		Samples: make([]Sample, len(a.config.Servers)),
	}
	log := a.log.With("run_id", report.RunID)

	// Each exchange only writes its own slot, and no goroutine returns an
	// error, so one slow or failed server never cancels the others.
	var g errgroup.Group
	g.SetLimit(a.config.Concurrency)
	for i, server := range a.config.Servers {
		i, server := i, server
		g.Go(func() error {
			report.Samples[i] = a.sample(ctx, log, server)
			return nil
		})
	}
	_ = g.Wait()

	mean, err := WeightedMean(report.Samples)
	if err != nil {
		log.Warn("No usable NTP samples", "servers", len(a.config.Servers))
		return report, err
	}
	report.OffsetMs = mean
	report.Offset = time.Duration(mean * float64(time.Millisecond))

	log.Info("Consensus offset computed",
		"offset_ms", mean,
		"responding", report.Responding(),
		"servers", len(a.config.Servers))

	return report, nil
}

func (a *Aggregator) sample(ctx context.Context, log *logger.Logger, server string) Sample {
	log = log.With("server", server)

	result, err := a.estimator.Exchange(ctx, server, a.config.Port, a.config.Timeout)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			log.Warn("Server did not respond", "error", err)
		} else {
			log.Warn("Malformed server reply", "error", err)
		}
		return Sample{Server: server, Err: err}
	}

	s := Sample{Server: server, Result: result}
	s.Weight = Weight(result.DelayMillis())
	s.Included = !math.IsInf(s.Weight, 0) && !math.IsNaN(s.Weight)
	if !s.Included {
		s.Weight = 0
		log.Debug("Sample excluded, delay too small to weight", "delay_ms", result.DelayMillis())
	}

	log.Info("Server responded",
		"offset_ms", result.OffsetMillis(),
		"delay_ms", result.DelayMillis(),
		"weight", s.Weight)
	log.Debug("Reply header",
		"leap", result.Header.Leap,
		"version", result.Header.Version,
		"mode", result.Header.Mode)

	return s
}

// Weight is the precision weight of a sample with the given round-trip delay
// in milliseconds: 1e6 / delay². Lower delay bounds the timing error more
// tightly, so low-delay samples dominate. This is a heuristic, not a
// statistically optimal estimator; only its "prefer lower delay" shape
// matters, not the constant. A zero delay yields +Inf.
func Weight(delayMillis float64) float64 {
	return weightScale / (delayMillis * delayMillis)
}

// WeightedMean returns sum(offset*weight)/sum(weight) in milliseconds over
// the included samples. ErrNoData when nothing is included.
func WeightedMean(samples []Sample) (float64, error) {
	var weightedSum, totalWeight float64
	for _, s := range samples {
		if !s.Included {
			continue
		}
		weightedSum += s.Result.OffsetMillis() * s.Weight
		totalWeight += s.Weight
	}

	if totalWeight == 0 || math.IsInf(totalWeight, 0) || math.IsNaN(totalWeight) {
		return 0, ErrNoData
	}

	mean := weightedSum / totalWeight
	if math.IsInf(mean, 0) || math.IsNaN(mean) {
		return 0, ErrNoData
	}
	return mean, nil
}
