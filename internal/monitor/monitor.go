// Package monitor provides passive resource checks for the pipeline:
// a CPU sampler that gates new transcription workers and a free-disk
// probe that guards staging. The sampler never throttles running
// workers, it only refuses admission to new ones.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-voicepipe/internal/logging"
)

// Sampler defaults.
const (
	DefaultInterval = time.Second

	// DefaultSoftCapPct is the normalized CPU percentage above which no
	// new worker may start.
	DefaultSoftCapPct = 70.0
)

const loadavgPath = "/proc/loadavg"

// loadReader returns the 1-minute load average. Injectable for tests.
type loadReader func() (float64, error)

// CPU samples system load on a fixed cadence and answers admission
// questions from the latest sample. Safe for concurrent use: workers
// poll while the sampling loop stores.
type CPU struct {
	interval time.Duration
	softCap  float64
	read     loadReader
	ncpu     int
	log      zerolog.Logger

	// Float64bits of the last normalized sample.
	pct     atomic.Uint64
	sampled atomic.Bool
}

// CPUOption configures a CPU sampler.
type CPUOption func(*CPU)

// WithInterval sets the sampling cadence.
func WithInterval(d time.Duration) CPUOption {
	return func(c *CPU) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithSoftCap sets the admission threshold in normalized percent.
func WithSoftCap(pct float64) CPUOption {
	return func(c *CPU) {
		if pct > 0 {
			c.softCap = pct
		}
	}
}

// withLoadReader sets a custom load provider (for testing).
func withLoadReader(read loadReader) CPUOption {
	return func(c *CPU) { c.read = read }
}

// withNumCPU overrides the core count used for normalization (for testing).
func withNumCPU(n int) CPUOption {
	return func(c *CPU) {
		if n > 0 {
			c.ncpu = n
		}
	}
}

// NewCPU creates a sampler reading the system load average.
func NewCPU(opts ...CPUOption) *CPU {
	c := &CPU{
		interval: DefaultInterval,
		softCap:  DefaultSoftCapPct,
		read:     readLoadAvg,
		ncpu:     runtime.NumCPU(),
		log:      logging.WithComponent("monitor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the sampling loop. It blocks until ctx is canceled, so
// callers run it in its own goroutine.
func (c *CPU) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Initial sample so admission has data before the first tick.
	c.sample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

// sample reads the load and stores it normalized by core count.
// Read failures keep the previous value.
func (c *CPU) sample() {
	load, err := c.read()
	if err != nil {
		c.log.Debug().Err(err).Msg("load sample failed, keeping previous value")
		return
	}
	pct := load / float64(c.ncpu) * 100
	c.pct.Store(math.Float64bits(pct))
	c.sampled.Store(true)
}

// Utilization returns the last normalized CPU sample in percent.
// Zero before the first successful sample.
func (c *CPU) Utilization() float64 {
	return math.Float64frombits(c.pct.Load())
}

// CanStartWorker reports whether a new worker may start. Admission is
// granted while no sample exists yet; the gate only engages on data.
func (c *CPU) CanStartWorker() bool {
	if !c.sampled.Load() {
		return true
	}
	return c.Utilization() < c.softCap
}

// readLoadAvg parses the 1-minute figure from /proc/loadavg.
func readLoadAvg() (float64, error) {
	data, err := os.ReadFile(loadavgPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", loadavgPath, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, errors.New("empty loadavg")
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse loadavg %q: %w", fields[0], err)
	}
	return load, nil
}
