package z80

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

const (
	// MinimumEffectiveFrequency and MaximumEffectiveFrequency bound the
	// product of clock frequency and speed factor, in MHz.
	MinimumEffectiveFrequency = 0.001
	MaximumEffectiveFrequency = 100.0

	// minimumMicrosecondsToWait avoids sleeping on every instruction, since
	// sub-millisecond sleeps are unreliable on most hosts.
	minimumMicrosecondsToWait = 10000
)

// ClockSynchronizer throttles emulation so that executed T-states take as
// long as they would on a processor running at the effective frequency.
type ClockSynchronizer struct {
	effectiveFrequency float64

	// accumulated is the emulated time, in microseconds, executed since the
	// stopwatch was last reset
	accumulated float64
	started     time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewClockSynchronizer returns a synchronizer for an effective frequency in
// MHz.
func NewClockSynchronizer(effectiveFrequency float64) (*ClockSynchronizer, error) {
	if err := checkEffectiveFrequency(effectiveFrequency); err != nil {
		return nil, err
	}
	return &ClockSynchronizer{
		effectiveFrequency: effectiveFrequency,
		now:                time.Now,
		sleep:              time.Sleep,
	}, nil
}

func checkEffectiveFrequency(mhz float64) error {
	if math.IsNaN(mhz) || mhz < MinimumEffectiveFrequency || mhz > MaximumEffectiveFrequency {
		return errors.Wrapf(ErrConfiguration, "effective clock frequency %g MHz outside of [%g, %g]", mhz, MinimumEffectiveFrequency, MaximumEffectiveFrequency)
	}
	return nil
}

// EffectiveFrequency is the target frequency in MHz.
func (c *ClockSynchronizer) EffectiveFrequency() float64 {
	return c.effectiveFrequency
}

// Start resets the accumulated time and the stopwatch.
func (c *ClockSynchronizer) Start() {
	c.accumulated = 0
	c.started = c.now()
}

// TryWait accounts for tstates of emulated time and sleeps once the emulation
// is far enough ahead of the wall clock.
func (c *ClockSynchronizer) TryWait(tstates int) {
	c.accumulated += float64(tstates) / c.effectiveFrequency

	elapsed := float64(c.now().Sub(c.started)) / float64(time.Microsecond)
	pending := c.accumulated - elapsed
	if pending < minimumMicrosecondsToWait {
		return
	}

	ms := math.Round(pending / 1000)
	if ms < 1 {
		ms = 1
	}
	c.sleep(time.Duration(ms) * time.Millisecond)
	c.Start()
}
