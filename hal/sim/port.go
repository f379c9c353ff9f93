package sim

import (
	"errors"

	"auxcam-go/hal"
)

// idleLine is what the host reads while the slave is not driving data-out.
const idleLine = 0xFF

// Port models the slave serial port and exposes the host side of the
// wire through Select, Exchange and Deselect.
type Port struct {
	b *Board

	enabled    bool
	driving    bool
	selected   bool
	loaded     byte
	rx         byte
	full       bool
	overflow   bool
	collisions int
	exchanged  uint64
}

// ---------------- hal.SSP ----------------

func (p *Port) Enable()                  { p.enabled = true }
func (p *Port) Disable()                 { p.enabled, p.full = false, false }
func (p *Port) BufferFull() bool         { return p.full }
func (p *Port) Selected() bool           { return p.selected }
func (p *Port) SetOutputEnabled(on bool) { p.driving = on }

func (p *Port) Read() byte {
	p.full = false
	return p.rx
}

func (p *Port) Load(v byte) bool {
	if p.collisions > 0 {
		p.collisions--
		return true
	}
	p.loaded = v
	return false
}

func (p *Port) TakeOverflow() bool {
	ov := p.overflow
	p.overflow = false
	return ov
}

// ---------------- Host side ----------------

// Select asserts the active-low select line.
func (p *Port) Select() { p.selected = true }

// Deselect releases select; the slave sees it as a serial interrupt.
func (p *Port) Deselect() {
	if !p.selected {
		return
	}
	p.selected = false
	if p.enabled {
		p.b.raise(hal.SrcSerial)
	}
}

// Exchange clocks one byte each way. A byte arriving while the previous
// one is still unread sets the overflow condition.
func (p *Port) Exchange(out byte) byte {
	if !p.enabled {
		return idleLine
	}
	in := p.loaded
	if !p.driving {
		in = idleLine
	}
	if p.full {
		p.overflow = true
	}
	p.rx = out
	p.full = true
	p.exchanged++
	p.b.raise(hal.SrcSerial)
	return in
}

// InjectOverflow flags a receive overrun on the next byte read.
func (p *Port) InjectOverflow() { p.overflow = true }

// InjectCollisions makes the next n transmit loads collide.
func (p *Port) InjectCollisions(n int) { p.collisions = n }

// Loaded returns the byte the next exchange will send.
func (p *Port) Loaded() byte { return p.loaded }

func (p *Port) Enabled() bool     { return p.enabled }
func (p *Port) Driving() bool     { return p.driving }
func (p *Port) Exchanged() uint64 { return p.exchanged }

// ---------------- Master view ----------------

var ErrLength = errors.New("sim: read and write buffers differ in length")

// Master is the host controller's view of the port. It satisfies
// tinygo.org/x/drivers.SPI, and its High/Low methods drive select the
// way a chip-select pin would.
type Master struct{ p *Port }

func (b *Board) Master() *Master { return &Master{p: b.port} }

func (m *Master) Tx(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	} else if r != nil && len(r) != len(w) {
		return ErrLength
	}
	for i := 0; i < n; i++ {
		var out byte
		if w != nil {
			out = w[i]
		}
		in := m.p.Exchange(out)
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

func (m *Master) Transfer(b byte) (byte, error) { return m.p.Exchange(b), nil }

func (m *Master) Low()  { m.p.Select() }
func (m *Master) High() { m.p.Deselect() }
