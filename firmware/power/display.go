package power

import (
	"auxcam-go/firmware/buttons"
	"auxcam-go/hal"
)

// DisplayState is the low-power indicator sub-mode. It has no meaning
// outside LowPower and is reset on every mode change.
type DisplayState uint8

const (
	DisplayOff DisplayState = iota
	DisplayTimeout
	DisplayOn
)

func (s DisplayState) String() string {
	switch s {
	case DisplayTimeout:
		return "timeout"
	case DisplayOn:
		return "on"
	}
	return "off"
}

// Display maps button presses to the green indicator while in low power:
// top arms a blinking countdown, middle holds it steady, bottom cancels.
type Display struct {
	state     DisplayState
	countdown uint16
	phase     uint16

	timeoutPolls uint16
	blinkPolls   uint16
}

func NewDisplay(timeoutPolls, blinkPolls uint16) Display {
	if blinkPolls == 0 {
		blinkPolls = 1
	}
	return Display{timeoutPolls: timeoutPolls, blinkPolls: blinkPolls}
}

// Press applies new presses. Cancel wins when several arrive together.
func (d *Display) Press(m buttons.Mask) {
	if m.Has(hal.BtnTop) {
		d.state = DisplayTimeout
		d.countdown = d.timeoutPolls
		d.phase = 0
	}
	if m.Has(hal.BtnMiddle) {
		d.state = DisplayOn
		d.countdown = 0
	}
	if m.Has(hal.BtnBottom) {
		d.Reset()
	}
}

// Step advances one poll and returns the indicator level.
func (d *Display) Step() bool {
	switch d.state {
	case DisplayOn:
		return true
	case DisplayTimeout:
		if d.countdown <= 1 {
			d.Reset()
			return false
		}
		d.countdown--
		lit := (d.phase/d.blinkPolls)%2 == 0
		d.phase++
		return lit
	}
	return false
}

func (d *Display) Reset() {
	d.state = DisplayOff
	d.countdown = 0
	d.phase = 0
}

func (d *Display) State() DisplayState { return d.state }
func (d *Display) Countdown() uint16   { return d.countdown }
