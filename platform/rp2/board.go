//go:build rp2040

// Package rp2 binds the controller firmware to an RP2040 board.
//
// The host link runs on SPI0 in slave mode, the two analog inputs on
// ADC0/ADC1, and the tick timer on alarm 3 of the system timer. The
// low-power clock is modelled by stretching the alarm period.
package rp2

import (
	"device/arm"
	"device/rp"
	"machine"
	"runtime/interrupt"
	"runtime/volatile"
	"time"

	"auxcam-go/hal"
)

type Config struct {
	LEDRed    machine.Pin
	LEDGreen  machine.Pin
	Attention machine.Pin
	Diag      machine.Pin
	Buttons   [hal.NumButtons]machine.Pin

	SCK machine.Pin
	TX  machine.Pin // slave data out
	RX  machine.Pin
	CS  machine.Pin

	Reference machine.Pin // ADC input wired to the fixed reference
	BoardVout machine.Pin // ADC input on the output divider

	TimerPeriod time.Duration
	SlowFactor  uint32
}

func DefaultConfig() Config {
	return Config{
		LEDRed:    machine.GP14,
		LEDGreen:  machine.GP15,
		Attention: machine.GP13,
		Diag:      machine.GP12,
		Buttons:   [hal.NumButtons]machine.Pin{machine.GP6, machine.GP7, machine.GP8, machine.GP9},
		SCK:       machine.GP18,
		TX:        machine.GP19,
		RX:        machine.GP16,
		CS:        machine.GP17,
		Reference: machine.ADC1,
		BoardVout: machine.ADC0,

		TimerPeriod: 262144 * time.Microsecond,
		SlowFactor:  8,
	}
}

// Board implements hal.Board. Only one may exist.
type Board struct {
	cfg  Config
	pins [hal.NumPins]machine.Pin

	handler func()
	pending [hal.NumSources]volatile.Register8
	enabled [hal.NumSources]bool
	irqs    [hal.NumSources]interrupt.Interrupt

	ssp   *ssp
	adc   *converter
	timer *alarm
}

var board *Board

func New(cfg Config) *Board {
	if board != nil {
		return board
	}
	b := &Board{cfg: cfg}
	b.pins = [hal.NumPins]machine.Pin{
		hal.PinLEDRed:    cfg.LEDRed,
		hal.PinLEDGreen:  cfg.LEDGreen,
		hal.PinAttention: cfg.Attention,
	}
	for _, p := range b.pins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	for _, p := range cfg.Buttons {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	cfg.Diag.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})

	b.ssp = newSSP(cfg)
	b.adc = newConverter(cfg)
	b.timer = newAlarm(cfg)

	// interrupt.New needs a literal handler per vector. All vectors keep
	// the same priority so handlers never nest.
	b.irqs[hal.SrcSerial] = interrupt.New(rp.IRQ_SPI0_IRQ, func(interrupt.Interrupt) { board.raise(hal.SrcSerial) })
	b.irqs[hal.SrcTimer] = interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) {
		board.raise(hal.SrcTimer)
		board.timer.ack()
	})
	b.irqs[hal.SrcADC] = interrupt.New(rp.IRQ_ADC_IRQ_FIFO, func(interrupt.Interrupt) {
		board.adc.drain()
		board.raise(hal.SrcADC)
	})
	_ = cfg.CS.SetInterrupt(machine.PinToggle, func(machine.Pin) { board.raise(hal.SrcSerial) })

	board = b
	b.timer.start()
	return b
}

// ---------------- hal.Interrupts ----------------

func (b *Board) Attach(h func()) {
	mask := interrupt.Disable()
	b.handler = h
	interrupt.Restore(mask)
	for s := hal.Source(0); s < hal.NumSources; s++ {
		b.SetEnabled(s, true)
	}
}

func (b *Board) raise(s hal.Source) {
	b.pending[s].Set(1)
	if b.enabled[s] && b.handler != nil {
		b.handler()
	}
}

func (b *Board) Pending(s hal.Source) bool {
	if s == hal.SrcSerial && b.ssp.BufferFull() {
		return true
	}
	return b.pending[s].Get() != 0
}

func (b *Board) Clear(s hal.Source)        { b.pending[s].Set(0) }
func (b *Board) Enabled(s hal.Source) bool { return b.enabled[s] }

func (b *Board) SetEnabled(s hal.Source, on bool) {
	b.enabled[s] = on
	if on {
		b.irqs[s].Enable()
	} else {
		b.irqs[s].Disable()
	}
	if s == hal.SrcADC {
		b.adc.setIRQ(on)
	}
}

// ---------------- hal.Pins ----------------

func (b *Board) Set(p hal.Pin, high bool) { b.pins[p].Set(high) }
func (b *Board) Get(p hal.Pin) bool       { return b.pins[p].Get() }

func (b *Board) SetOutput(p hal.Pin, output bool) {
	mode := machine.PinInput
	if output {
		mode = machine.PinOutput
	}
	b.pins[p].Configure(machine.PinConfig{Mode: mode})
}

func (b *Board) Buttons() hal.Levels {
	var l hal.Levels
	for i, p := range b.cfg.Buttons {
		l[i] = p.Get()
	}
	return l
}

func (b *Board) DiagRequest() bool { return b.cfg.Diag.Get() }

// ---------------- hal.Clock / hal.Delay ----------------

func (b *Board) SetLowFrequency(low bool) { b.timer.setSlow(low) }

func (b *Board) Sleep(d time.Duration) { time.Sleep(d) }
func (b *Board) WaitForInterrupt()     { arm.Asm("wfi") }

func (b *Board) SSP() hal.SSP { return b.ssp }
func (b *Board) ADC() hal.ADC { return b.adc }
