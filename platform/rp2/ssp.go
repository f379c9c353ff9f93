//go:build rp2040

package rp2

import (
	"device/rp"
	"machine"
)

// ssp drives the PL022 in SPI0 as a mode 1 slave with 8-bit frames.
type ssp struct {
	tx  machine.Pin
	cs  machine.Pin
	dev *rp.SPI0_Type
}

func newSSP(cfg Config) *ssp {
	s := &ssp{tx: cfg.TX, cs: cfg.CS, dev: rp.SPI0}

	rp.RESETS.RESET.SetBits(rp.RESETS_RESET_SPI0)
	rp.RESETS.RESET.ClearBits(rp.RESETS_RESET_SPI0)
	for !rp.RESETS.RESET_DONE.HasBits(rp.RESETS_RESET_DONE_SPI0) {
	}

	for _, p := range []machine.Pin{cfg.SCK, cfg.RX, cfg.CS} {
		p.Configure(machine.PinConfig{Mode: machine.PinSPI})
	}
	s.SetOutputEnabled(false)

	s.dev.SSPCR0.Set(7<<rp.SPI0_SSPCR0_DSS_Pos | rp.SPI0_SSPCR0_SPH)
	s.dev.SSPCR1.Set(rp.SPI0_SSPCR1_MS)
	s.dev.SSPIMSC.Set(rp.SPI0_SSPIMSC_RXIM | rp.SPI0_SSPIMSC_RTIM | rp.SPI0_SSPIMSC_RORIM)
	return s
}

func (s *ssp) Enable() { s.dev.SSPCR1.SetBits(rp.SPI0_SSPCR1_SSE) }

func (s *ssp) Disable() {
	s.dev.SSPCR1.ClearBits(rp.SPI0_SSPCR1_SSE)
	for s.BufferFull() {
		s.Read()
	}
}

func (s *ssp) BufferFull() bool { return s.dev.SSPSR.HasBits(rp.SPI0_SSPSR_RNE) }

func (s *ssp) Read() byte {
	s.dev.SSPICR.Set(rp.SPI0_SSPICR_RTIC)
	return byte(s.dev.SSPDR.Get())
}

// Load writes the transmit FIFO. A full FIFO means the previous byte is
// still waiting to shift out and counts as a collision.
func (s *ssp) Load(v byte) bool {
	if !s.dev.SSPSR.HasBits(rp.SPI0_SSPSR_TFE) {
		return true
	}
	s.dev.SSPDR.Set(uint32(v))
	return false
}

func (s *ssp) TakeOverflow() bool {
	if !s.dev.SSPRIS.HasBits(rp.SPI0_SSPRIS_RORRIS) {
		return false
	}
	s.dev.SSPICR.Set(rp.SPI0_SSPICR_RORIC)
	return true
}

func (s *ssp) Selected() bool { return !s.cs.Get() }

func (s *ssp) SetOutputEnabled(on bool) {
	if on {
		s.dev.SSPCR1.ClearBits(rp.SPI0_SSPCR1_SOD)
		s.tx.Configure(machine.PinConfig{Mode: machine.PinSPI})
		return
	}
	s.dev.SSPCR1.SetBits(rp.SPI0_SSPCR1_SOD)
	s.tx.Configure(machine.PinConfig{Mode: machine.PinInput})
}
