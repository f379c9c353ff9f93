// Package led gates the two indicator LEDs behind a brownout inhibit.
package led

import "auxcam-go/hal"

// Panel wraps the board outputs. While inhibited both LEDs are held off
// and LED writes are remembered but not applied. The attention line is
// never gated.
type Panel struct {
	pins    hal.Pins
	inhibit bool
	want    [hal.NumPins]bool
}

func New(p hal.Pins) *Panel { return &Panel{pins: p} }

func isLED(p hal.Pin) bool { return p == hal.PinLEDRed || p == hal.PinLEDGreen }

// Set drives p, subject to the inhibit for LEDs.
func (l *Panel) Set(p hal.Pin, high bool) {
	l.want[p] = high
	if l.inhibit && isLED(p) {
		return
	}
	l.pins.Set(p, high)
}

// Get returns the requested level of p, which differs from the pin while
// an LED is inhibited.
func (l *Panel) Get(p hal.Pin) bool { return l.want[p] }

func (l *Panel) SetOutput(p hal.Pin, output bool) { l.pins.SetOutput(p, output) }

// Red and Green are shorthands for the indicator LEDs.
func (l *Panel) Red(on bool)   { l.Set(hal.PinLEDRed, on) }
func (l *Panel) Green(on bool) { l.Set(hal.PinLEDGreen, on) }

// Inhibit switches the brownout gate. Releasing it restores the last
// requested LED levels.
func (l *Panel) Inhibit(on bool) {
	if l.inhibit == on {
		return
	}
	l.inhibit = on
	for _, p := range [...]hal.Pin{hal.PinLEDRed, hal.PinLEDGreen} {
		l.pins.Set(p, !on && l.want[p])
	}
}

func (l *Panel) Inhibited() bool { return l.inhibit }
