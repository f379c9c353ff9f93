// Package tick keeps time from timer overflows.
//
// Every overflow adds the current clock divider to the 32-bit tick
// counter in the telemetry block and to a heartbeat counter, so ticks
// stay proportional to wall time on either clock. Clock changes are
// requested by the main loop and applied by the overflow handler; the
// overflow that applies a change is counted at the old scale because
// its period elapsed on the old clock.
package tick

import (
	"errors"
	"time"

	"auxcam-go/firmware/telemetry"
	"auxcam-go/hal"
	"auxcam-go/x/mathx"
)

var (
	ErrDivider   = errors.New("tick: low clock divider must be at least 1")
	ErrHeartbeat = errors.New("tick: heartbeat threshold must be positive")
)

type Config struct {
	// Period is one overflow at full clock.
	Period time.Duration
	// LowDivider is how many full-clock periods one low-clock overflow spans.
	LowDivider uint8
	// Heartbeat is the counter value beyond which a heartbeat is due.
	Heartbeat uint16
}

func DefaultConfig() Config {
	return Config{
		Period:     262144 * time.Microsecond,
		LowDivider: 8,
		Heartbeat:  38,
	}
}

func (c Config) Validate() error {
	if c.LowDivider == 0 {
		return ErrDivider
	}
	if c.Heartbeat == 0 {
		return ErrHeartbeat
	}
	return nil
}

type Source struct {
	clk hal.Clock
	blk *telemetry.Block
	cfg Config

	low       bool // applied clock
	wantLow   bool // requested clock
	heartbeat uint16
	overflows uint32
}

func New(clk hal.Clock, blk *telemetry.Block, cfg Config) *Source {
	if cfg.LowDivider == 0 {
		cfg.LowDivider = 1
	}
	return &Source{clk: clk, blk: blk, cfg: cfg}
}

// OnOverflow runs in timer interrupt context.
func (s *Source) OnOverflow() {
	scale := s.Scale()
	if s.low != s.wantLow {
		s.low = s.wantLow
		s.clk.SetLowFrequency(s.low)
	}
	s.blk.AddTicks(uint32(scale))
	s.heartbeat = mathx.SatAdd(s.heartbeat, uint16(scale), 0xFFFF)
	s.overflows++
}

// Scale is the tick increment per overflow on the applied clock.
func (s *Source) Scale() uint8 {
	if s.low {
		return s.cfg.LowDivider
	}
	return 1
}

// RequestLow asks for the clock change at the next overflow.
func (s *Source) RequestLow(low bool) { s.wantLow = low }

// WaitApplied idles until the requested clock is in effect.
func (s *Source) WaitApplied(d hal.Delay) {
	for s.low != s.wantLow {
		d.WaitForInterrupt()
	}
}

func (s *Source) Low() bool { return s.low }

// Heartbeat reports and consumes a due heartbeat.
func (s *Source) Heartbeat() bool {
	if s.heartbeat <= s.cfg.Heartbeat {
		return false
	}
	s.heartbeat = 0
	return true
}

// ResetHeartbeat restarts the heartbeat interval.
func (s *Source) ResetHeartbeat() { s.heartbeat = 0 }

// Ticks is the counter as reported to the host.
func (s *Source) Ticks() uint32 { return s.blk.Ticks() }

// Elapsed converts ticks to wall time.
func (s *Source) Elapsed() time.Duration { return time.Duration(s.Ticks()) * s.cfg.Period }

func (s *Source) Overflows() uint32 { return s.overflows }
