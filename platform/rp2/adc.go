//go:build rp2040

package rp2

import (
	"device/rp"
	"machine"

	"auxcam-go/hal"
)

// converter runs single conversions through the ADC FIFO so completion
// raises the FIFO interrupt. The FIFO interrupt is level triggered, so
// the handler drains it into last. Results are scaled to 10 bits.
type converter struct {
	ain  [2]uint32
	last uint16
}

func newConverter(cfg Config) *converter {
	machine.InitADC()
	c := &converter{}
	for i, p := range []machine.Pin{cfg.Reference, cfg.BoardVout} {
		machine.ADC{Pin: p}.Configure(machine.ADCConfig{})
		c.ain[i] = uint32(p - machine.ADC0)
	}
	rp.ADC.FCS.Set(rp.ADC_FCS_EN | 1<<rp.ADC_FCS_THRESH_Pos)
	return c
}

func (c *converter) Select(ch hal.Channel) {
	rp.ADC.CS.ReplaceBits(c.ain[ch], rp.ADC_CS_AINSEL_Msk>>rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Pos)
}

func (c *converter) Start() { rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE) }

func (c *converter) Result() uint16 { return c.last >> 2 }

// drain runs in interrupt context and keeps the newest sample.
func (c *converter) drain() {
	for rp.ADC.FCS.Get()&rp.ADC_FCS_LEVEL_Msk != 0 {
		c.last = uint16(rp.ADC.FIFO.Get() & rp.ADC_FIFO_VAL_Msk)
	}
}

func (c *converter) setIRQ(on bool) {
	if on {
		rp.ADC.INTE.SetBits(rp.ADC_INTE_FIFO)
	} else {
		rp.ADC.INTE.ClearBits(rp.ADC_INTE_FIFO)
	}
}
