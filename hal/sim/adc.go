package sim

import (
	"auxcam-go/hal"
	"auxcam-go/x/mathx"
)

const fullScale = 1023

// Converter models the 10-bit ADC. Conversions finish instantly.
type Converter struct {
	b      *Board
	ch     hal.Channel
	result uint16
	forced [2][]uint16
	starts int
}

func (c *Converter) Select(ch hal.Channel) { c.ch = ch }
func (c *Converter) Result() uint16        { return c.result }

func (c *Converter) Start() {
	c.starts++
	if q := c.forced[c.ch]; len(q) > 0 {
		c.result = q[0]
		c.forced[c.ch] = q[1:]
	} else {
		c.result = c.model(c.ch)
	}
	c.b.raise(hal.SrcADC)
}

// model converts the board voltages into the code each channel reads.
// The reference channel reads the fixed reference against the supply,
// so its code falls as the supply rises.
func (c *Converter) model(ch hal.Channel) uint16 {
	supply := c.b.cfg.SupplyMilliV
	if supply <= 0 {
		return fullScale
	}
	var mv int
	if ch == hal.ChanReference {
		mv = c.b.cfg.ReferenceMilliV
	} else {
		mv = c.b.cfg.BoardVoutMilliV
	}
	code := mathx.Clamp(mv*fullScale/supply, 0, fullScale)
	return uint16(code)
}

// Force queues raw codes returned by the next conversions on ch, ahead
// of the modelled value.
func (c *Converter) Force(ch hal.Channel, codes ...uint16) {
	c.forced[ch] = append(c.forced[ch], codes...)
}

func (c *Converter) Channel() hal.Channel { return c.ch }
func (c *Converter) Starts() int          { return c.starts }
