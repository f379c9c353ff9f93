// Package analog runs the two-channel battery and board-output
// measurement.
//
// The converter alternates between the internal reference, whose code
// gives the supply voltage, and the board output divider, which is
// scaled by the last supply reading. Each channel is converted until the
// settle count is reached; only then is the result handed to the main
// loop, which processes it, switches channel and starts the next
// acquisition.
package analog

import (
	"errors"

	"auxcam-go/firmware/telemetry"
	"auxcam-go/hal"
	"auxcam-go/x/mathx"
)

const fullScale = 0x3FF

var (
	ErrReference = errors.New("analog: reference millivolts out of range")
	ErrCeiling   = errors.New("analog: ceiling must be positive")
	ErrSettle    = errors.New("analog: settle count must be at least 1")
)

type Config struct {
	// ReferenceMilliV is the calibrated internal reference.
	ReferenceMilliV uint32
	// CeilingMilliV rejects readings above it on either channel.
	CeilingMilliV uint16
	// PowerOffMilliV selects which diode correction applies.
	PowerOffMilliV uint16
	// Diode drop added to the averaged supply when the board output is
	// below PowerOffMilliV (light load) or at/above it (heavy load).
	DiodeLowPowerMilliV  uint16
	DiodeHighPowerMilliV uint16
	// Settle is the number of conversions before a result is trusted.
	Settle uint8
}

func DefaultConfig() Config {
	return Config{
		ReferenceMilliV:      585,
		CeilingMilliV:        4500,
		PowerOffMilliV:       1500,
		DiodeLowPowerMilliV:  120,
		DiodeHighPowerMilliV: 300,
		Settle:               2,
	}
}

func (c Config) Validate() error {
	if c.ReferenceMilliV == 0 || c.ReferenceMilliV > 4500 {
		return ErrReference
	}
	if c.CeilingMilliV == 0 {
		return ErrCeiling
	}
	if c.Settle == 0 {
		return ErrSettle
	}
	return nil
}

// Reading is the latest processed state.
type Reading struct {
	BatteryLast    uint16
	BatteryAverage uint16 // corrected, as reported to the host
	BoardVout      uint16
	Samples        int
}

type Engine struct {
	adc hal.ADC
	blk *telemetry.Block
	cfg Config

	refConst uint32 // full scale times reference millivolts

	ring   Ring
	ch     hal.Channel
	settle uint8
	ready  bool // settled result waiting for the main loop
	busy   bool // conversion chain in flight

	batteryLast uint16
	average     uint16
	boardVout   uint16
	rejected    uint32
}

func New(adc hal.ADC, blk *telemetry.Block, cfg Config) *Engine {
	if cfg.Settle == 0 {
		cfg.Settle = 1
	}
	return &Engine{
		adc:      adc,
		blk:      blk,
		cfg:      cfg,
		refConst: fullScale * cfg.ReferenceMilliV,
		ch:       hal.ChanReference,
	}
}

// ---------------- Interrupt context ----------------

// OnConversion handles a finished conversion.
func (e *Engine) OnConversion() {
	e.settle++
	if e.settle < e.cfg.Settle {
		e.adc.Start()
		return
	}
	e.busy = false
	e.ready = true
}

// ---------------- Main loop ----------------

// Start begins an acquisition on the current channel unless one is in
// flight or a result is still unprocessed.
func (e *Engine) Start() {
	if e.busy || e.ready {
		return
	}
	e.settle = 0
	e.busy = true
	e.adc.Select(e.ch)
	e.adc.Start()
}

// Poll processes a settled result, if any, then switches channel and
// starts the next acquisition. It reports whether a result was handled.
func (e *Engine) Poll() bool {
	if !e.ready {
		return false
	}
	raw := e.adc.Result()
	if e.ch == hal.ChanReference {
		e.processReference(raw)
		e.ch = hal.ChanBoardVout
	} else {
		e.processBoardVout(raw)
		e.ch = hal.ChanReference
	}
	e.ready = false
	e.Start()
	return true
}

func (e *Engine) processReference(r uint16) {
	if r == 0 || r >= fullScale {
		e.rejected++
		return
	}
	mv := e.refConst / uint32(r)
	if mv > uint32(e.cfg.CeilingMilliV) {
		e.rejected++
		return
	}
	e.batteryLast = uint16(mv)
	e.ring.Push(e.batteryLast)

	avg := e.ring.Average()
	if e.boardVout < e.cfg.PowerOffMilliV {
		avg += e.cfg.DiodeLowPowerMilliV
	} else {
		avg += e.cfg.DiodeHighPowerMilliV
	}
	e.average = avg
	e.blk.SetVoltage(avg)
}

func (e *Engine) processBoardVout(r uint16) {
	mv := mathx.Ratio(uint32(r), uint32(e.batteryLast), fullScale)
	if mv > uint32(e.cfg.CeilingMilliV) {
		e.rejected++
		return
	}
	e.boardVout = uint16(mv)
}

// ---------------- Readers ----------------

func (e *Engine) Reading() Reading {
	return Reading{
		BatteryLast:    e.batteryLast,
		BatteryAverage: e.average,
		BoardVout:      e.boardVout,
		Samples:        e.ring.Len(),
	}
}

func (e *Engine) Channel() hal.Channel { return e.ch }
func (e *Engine) Ready() bool          { return e.ready }
func (e *Engine) Busy() bool           { return e.busy }
func (e *Engine) Rejected() uint32     { return e.rejected }
