// Package hal is the hardware boundary of the controller firmware.
//
// Core packages under firmware/ depend only on these interfaces. Board
// bindings (platform/rp2) and the deterministic simulator (hal/sim)
// implement them. No method may block except Delay.
package hal

import "time"

// ---------------- Interrupts ----------------

// Source identifies one interrupt source. The numeric order is the
// dispatch priority: lower values are serviced first.
type Source uint8

const (
	SrcSerial Source = iota
	SrcTimer
	SrcADC
	NumSources
)

func (s Source) String() string {
	switch s {
	case SrcSerial:
		return "serial"
	case SrcTimer:
		return "timer"
	case SrcADC:
		return "adc"
	}
	return "unknown"
}

// Interrupts exposes per-source pending flags and enables. There is a
// single interrupt vector; Attach installs the handler invoked whenever
// an enabled source is pending. Handlers are never nested.
type Interrupts interface {
	Attach(handler func())
	Pending(Source) bool
	Clear(Source)
	Enabled(Source) bool
	SetEnabled(Source, bool)
}

// ---------------- Serial slave port ----------------

// SSP is a byte-synchronous slave port clocked by an external master.
// Each completed exchange leaves one received byte in the buffer and
// raises SrcSerial. A change of the select line also raises SrcSerial.
type SSP interface {
	Enable()
	Disable()
	// BufferFull reports an unread received byte.
	BufferFull() bool
	Read() byte
	// Load places b in the transmit register for the next exchange and
	// reports a write collision (the register was busy shifting).
	Load(b byte) (collision bool)
	// TakeOverflow reports and clears the receive-overrun condition.
	TakeOverflow() bool
	// Selected reports the active-low select line as asserted.
	Selected() bool
	// SetOutputEnabled drives or releases the data-out pin.
	SetOutputEnabled(bool)
}

// ---------------- ADC ----------------

// Channel is a logical analog input.
type Channel uint8

const (
	ChanReference Channel = iota // fixed internal reference, measured against supply
	ChanBoardVout                // external divider on the board output rail
)

func (c Channel) String() string {
	if c == ChanBoardVout {
		return "board_vout"
	}
	return "reference"
}

// ADC is a single 10-bit converter behind a multiplexer. Start begins a
// conversion; completion raises SrcADC and Result returns the code.
type ADC interface {
	Select(Channel)
	Start()
	Result() uint16
}

// ---------------- Digital I/O ----------------

// Pin names a logical digital output.
type Pin uint8

const (
	PinLEDRed Pin = iota
	PinLEDGreen
	PinAttention // active-low "press pending" line to the host
	NumPins
)

// Button names a logical active-low input.
type Button uint8

const (
	BtnShutter Button = iota
	BtnTop
	BtnMiddle
	BtnBottom
	NumButtons
)

func (b Button) String() string {
	switch b {
	case BtnShutter:
		return "shutter"
	case BtnTop:
		return "top"
	case BtnMiddle:
		return "middle"
	case BtnBottom:
		return "bottom"
	}
	return "unknown"
}

// Levels holds raw button pin levels; true is high (released).
type Levels [NumButtons]bool

type Pins interface {
	Set(p Pin, high bool)
	Get(p Pin) bool
	// SetOutput switches p between driven output and high-impedance input.
	SetOutput(p Pin, output bool)
	Buttons() Levels
	// DiagRequest reports the diagnostic reader asserting its request line.
	DiagRequest() bool
}

// ---------------- Clock & time ----------------

type Clock interface {
	// SetLowFrequency switches the system clock between full speed and
	// the reduced low-power clock. Only the timer handler calls it.
	SetLowFrequency(low bool)
}

// Delay is the injected time service. Sleep is a bounded busy wait;
// WaitForInterrupt idles until the next interrupt has been handled.
type Delay interface {
	Sleep(d time.Duration)
	WaitForInterrupt()
}

// Board is the full set of facilities the firmware needs.
type Board interface {
	Interrupts
	Pins
	Clock
	Delay
	SSP() SSP
	ADC() ADC
}
