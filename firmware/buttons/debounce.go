// Package buttons debounces the four active-low buttons.
//
// A level is accepted once two consecutive polls agree, which at the
// main loop rate filters contact bounce without any timer.
package buttons

import (
	"auxcam-go/firmware/telemetry"
	"auxcam-go/hal"
)

// Mask has bit n set for hal.Button(n).
type Mask uint8

func (m Mask) Has(b hal.Button) bool { return m&(1<<b) != 0 }
func (m Mask) Any() bool             { return m != 0 }

func MaskOf(bs ...hal.Button) Mask {
	var m Mask
	for _, b := range bs {
		m |= 1 << b
	}
	return m
}

// Debouncer starts with both samples low, so a button held at boot is
// not reported until it has been released and pressed again.
type Debouncer struct {
	antibounce hal.Levels
	valid      hal.Levels
}

// Poll feeds one raw sample and returns the buttons that became pressed.
func (d *Debouncer) Poll(raw hal.Levels) Mask {
	var pressed Mask
	for i := range raw {
		pin := raw[i]
		if pin == d.antibounce[i] {
			if pin != d.valid[i] && !pin {
				pressed |= 1 << i
			}
			d.valid[i] = pin
		}
		d.antibounce[i] = pin
	}
	return pressed
}

// Held reports the debounced pressed state of b.
func (d *Debouncer) Held(b hal.Button) bool { return !d.valid[b] }

func (d *Debouncer) Reset() { *d = Debouncer{} }

// Record adds each press in m to its counter.
func Record(blk *telemetry.Block, m Mask) {
	for b := hal.Button(0); b < hal.NumButtons; b++ {
		if m.Has(b) {
			blk.AddPress(b)
		}
	}
}
