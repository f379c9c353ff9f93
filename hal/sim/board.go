// Package sim is a deterministic, single-threaded model of the controller
// board. Time only advances through Sleep and WaitForInterrupt, and every
// interrupt is delivered synchronously through the attached handler, so
// tests can drive the firmware byte by byte.
//
// A Board is not safe for concurrent use.
package sim

import (
	"time"

	"auxcam-go/hal"
)

type Config struct {
	// TimerPeriod is the timer overflow interval at full clock.
	TimerPeriod time.Duration
	// SlowFactor stretches the overflow interval on the low clock.
	SlowFactor int
	// ReferenceMilliV is the true internal reference voltage.
	ReferenceMilliV int
	SupplyMilliV    int
	BoardVoutMilliV int
}

func DefaultConfig() Config {
	return Config{
		TimerPeriod:     262144 * time.Microsecond,
		SlowFactor:      8,
		ReferenceMilliV: 585,
		SupplyMilliV:    4000,
		BoardVoutMilliV: 3300,
	}
}

// PinEvent is one recorded output level change.
type PinEvent struct {
	At   time.Duration
	Pin  hal.Pin
	High bool
}

const maxTrace = 4096

type Board struct {
	cfg Config

	now          time.Duration
	nextOverflow time.Duration
	lowClock     bool
	overflows    uint64

	handler func()
	pending [hal.NumSources]bool
	enabled [hal.NumSources]bool
	inISR   bool

	level   [hal.NumPins]bool
	output  [hal.NumPins]bool
	buttons hal.Levels
	diag    bool

	tracing bool
	trace   []PinEvent

	port *Port
	adc  *Converter
}

func New(cfg Config) *Board {
	def := DefaultConfig()
	if cfg.TimerPeriod <= 0 {
		cfg.TimerPeriod = def.TimerPeriod
	}
	if cfg.SlowFactor <= 0 {
		cfg.SlowFactor = def.SlowFactor
	}
	if cfg.ReferenceMilliV <= 0 {
		cfg.ReferenceMilliV = def.ReferenceMilliV
	}
	b := &Board{cfg: cfg}
	b.buttons = hal.Levels{true, true, true, true}
	b.nextOverflow = cfg.TimerPeriod
	b.port = &Port{b: b}
	b.adc = &Converter{b: b}
	for s := hal.Source(0); s < hal.NumSources; s++ {
		b.enabled[s] = true
	}
	return b
}

// ---------------- hal.Interrupts ----------------

func (b *Board) Attach(h func())           { b.handler = h }
func (b *Board) Pending(s hal.Source) bool { return b.pending[s] }
func (b *Board) Clear(s hal.Source)        { b.pending[s] = false }
func (b *Board) Enabled(s hal.Source) bool { return b.enabled[s] }
func (b *Board) SetEnabled(s hal.Source, on bool) {
	b.enabled[s] = on
	if on {
		b.deliver()
	}
}

func (b *Board) raise(s hal.Source) {
	b.pending[s] = true
	b.deliver()
}

func (b *Board) deliverable() bool {
	for s := hal.Source(0); s < hal.NumSources; s++ {
		if b.pending[s] && b.enabled[s] {
			return true
		}
	}
	return false
}

// deliver runs the handler until nothing enabled is pending. Sources
// raised from inside the handler are picked up by the same loop.
func (b *Board) deliver() {
	if b.inISR || b.handler == nil {
		return
	}
	b.inISR = true
	for b.deliverable() {
		b.handler()
	}
	b.inISR = false
}

// ---------------- hal.Pins ----------------

func (b *Board) Set(p hal.Pin, high bool) {
	if b.level[p] == high {
		return
	}
	b.level[p] = high
	if b.tracing && len(b.trace) < maxTrace {
		b.trace = append(b.trace, PinEvent{At: b.now, Pin: p, High: high})
	}
}

func (b *Board) Get(p hal.Pin) bool               { return b.level[p] }
func (b *Board) SetOutput(p hal.Pin, output bool) { b.output[p] = output }
func (b *Board) Buttons() hal.Levels              { return b.buttons }
func (b *Board) DiagRequest() bool                { return b.diag }

// ---------------- hal.Clock / hal.Delay ----------------

func (b *Board) SetLowFrequency(low bool) { b.lowClock = low }

func (b *Board) period() time.Duration {
	if b.lowClock {
		return b.cfg.TimerPeriod * time.Duration(b.cfg.SlowFactor)
	}
	return b.cfg.TimerPeriod
}

// overflow fires the timer at its scheduled instant. The next overflow
// is scheduled after the handler has run, so a clock change made by
// the handler applies to the following period.
func (b *Board) overflow() {
	b.now = b.nextOverflow
	b.overflows++
	b.raise(hal.SrcTimer)
	b.nextOverflow = b.now + b.period()
}

func (b *Board) Sleep(d time.Duration) {
	end := b.now + d
	for b.nextOverflow <= end {
		b.overflow()
	}
	b.now = end
}

func (b *Board) WaitForInterrupt() {
	if b.deliverable() {
		b.deliver()
		return
	}
	b.overflow()
}

func (b *Board) SSP() hal.SSP { return b.port }
func (b *Board) ADC() hal.ADC { return b.adc }

// ---------------- Test and shell controls ----------------

func (b *Board) Port() *Port           { return b.port }
func (b *Board) Converter() *Converter { return b.adc }

func (b *Board) Now() time.Duration { return b.now }
func (b *Board) LowClock() bool     { return b.lowClock }
func (b *Board) Overflows() uint64  { return b.overflows }

// Output reports whether p is driven.
func (b *Board) Output(p hal.Pin) bool { return b.output[p] }

func (b *Board) Press(btn hal.Button)   { b.buttons[btn] = false }
func (b *Board) Release(btn hal.Button) { b.buttons[btn] = true }
func (b *Board) SetDiagRequest(on bool) { b.diag = on }

func (b *Board) SetSupply(mv int)    { b.cfg.SupplyMilliV = mv }
func (b *Board) SetBoardVout(mv int) { b.cfg.BoardVoutMilliV = mv }
func (b *Board) Supply() int         { return b.cfg.SupplyMilliV }
func (b *Board) BoardVout() int      { return b.cfg.BoardVoutMilliV }

// Trace starts or stops recording output changes. Starting clears the log.
func (b *Board) Trace(on bool) {
	b.tracing = on
	if on {
		b.trace = b.trace[:0]
	}
}

func (b *Board) Events() []PinEvent {
	out := make([]PinEvent, len(b.trace))
	copy(out, b.trace)
	return out
}

// Pulses counts rising edges of p in the recorded trace.
func (b *Board) Pulses(p hal.Pin) int {
	n := 0
	for _, e := range b.trace {
		if e.Pin == p && e.High {
			n++
		}
	}
	return n
}
