// Package link implements the serial slave side of the host link.
//
// A frame is delimited by the select line. The first byte the host
// clocks in is its sequence id; the next telemetry.Size bytes exchange
// the command block for a copy of the telemetry block taken when the id
// arrived. The main loop runs between bytes, so the reply never reads
// the live block except for the error slot. The slave preloads its
// acknowledgement (the expected next id) when the frame ends, so the
// host reads it back while clocking in the id of the following frame.
//
// Service runs in serial interrupt context only.
package link

import (
	"errors"

	"auxcam-go/firmware/telemetry"
	"auxcam-go/hal"
)

var ErrLoadRetries = errors.New("link: load retries must be positive")

type Config struct {
	// Preload is the first byte offered after the port is enabled,
	// before any acknowledgement exists.
	Preload byte
	// LoadRetries bounds retries of a colliding transmit load while the
	// host holds select.
	LoadRetries int
}

func DefaultConfig() Config {
	return Config{Preload: 0xF0, LoadRetries: 8}
}

func (c Config) Validate() error {
	if c.LoadRetries <= 0 {
		return ErrLoadRetries
	}
	return nil
}

// Outputs is the part of the pin set the link drives.
type Outputs interface {
	Set(p hal.Pin, high bool)
}

// Stats counts frames since boot. Counters wrap.
type Stats struct {
	Frames    uint32
	Completed uint32
	Aborted   uint32
}

type Slave struct {
	ssp hal.SSP
	irq hal.Interrupts
	blk *telemetry.Block
	out Outputs
	cfg Config

	id       byte // acknowledgement, i.e. the id expected next
	declared byte // id sent by the host for the current frame
	count    int  // data bytes received in the current frame
	inFrame  bool
	aborted  bool
	enabled  bool

	snap [telemetry.Size]byte // telemetry at frame start

	stats Stats
}

func New(ssp hal.SSP, irq hal.Interrupts, blk *telemetry.Block, out Outputs, cfg Config) *Slave {
	if cfg.LoadRetries <= 0 {
		cfg.LoadRetries = DefaultConfig().LoadRetries
	}
	return &Slave{ssp: ssp, irq: irq, blk: blk, out: out, cfg: cfg}
}

// ---------------- Port control (main loop) ----------------

// Enable starts the port with the preload byte offered and the error
// byte reset to ErrNone.
func (s *Slave) Enable() {
	s.ssp.Disable()
	s.inFrame, s.aborted, s.count = false, false, 0
	s.load(s.cfg.Preload)
	s.ssp.Enable()
	s.ssp.SetOutputEnabled(true)
	s.irq.Clear(hal.SrcSerial)
	s.irq.SetEnabled(hal.SrcSerial, true)
	s.SetError(ErrNone)
	s.enabled = true
}

// Disable stops the port and releases the data-out pin.
func (s *Slave) Disable() {
	s.irq.SetEnabled(hal.SrcSerial, false)
	s.ssp.Disable()
	s.ssp.SetOutputEnabled(false)
	s.inFrame = false
	s.enabled = false
}

func (s *Slave) Enabled() bool { return s.enabled }

// ---------------- Interrupt context ----------------

// Service drains received bytes and closes the frame once the host has
// released select.
func (s *Slave) Service() {
	for s.ssp.BufferFull() {
		s.receive(s.ssp.Read())
	}
	if s.inFrame && !s.ssp.Selected() {
		s.inFrame = false
		s.load(s.id)
	}
}

func (s *Slave) receive(v byte) {
	if s.ssp.TakeOverflow() {
		s.SetError(ErrOverflow)
	}
	if !s.inFrame {
		s.begin(v)
		return
	}
	if s.aborted {
		return
	}

	s.count++
	c := s.count
	if c > telemetry.Size {
		s.SetError(ErrOutOfIndex)
		s.aborted = true
		s.stats.Aborted++
		s.load(s.id)
		return
	}
	s.blk.Store(c-1, v)
	if c < telemetry.Size {
		// Id 1 finishing means the host accepted the restart.
		if s.declared == 1 && c == telemetry.Size-1 {
			s.SetError(ErrNone)
		}
		s.load(s.reply(c))
		return
	}
	s.complete()
}

func (s *Slave) begin(v byte) {
	s.inFrame = true
	s.aborted = false
	s.count = 0
	s.declared = v
	s.stats.Frames++

	if v != 0 {
		if v != s.id {
			s.SetError(ErrSequence)
			s.id = v
		}
	} else {
		s.id = 0
	}
	s.id++

	s.snap = s.blk.Snapshot()
	s.load(s.snap[0])
}

// reply is data slot i as sent to the host. The error slot is live so a
// clear made during this frame is reported.
func (s *Slave) reply(i int) byte {
	if i == telemetry.IdxError {
		return s.blk.ErrorByte()
	}
	return s.snap[i]
}

func (s *Slave) complete() {
	s.blk.TakePresses(&s.snap)
	s.out.Set(hal.PinAttention, true)
	s.out.Set(hal.PinLEDGreen, true)
	s.stats.Completed++
	s.load(s.id)
}

func (s *Slave) load(b byte) {
	for i := 0; ; i++ {
		if !s.ssp.Load(b) {
			return
		}
		if i >= s.cfg.LoadRetries || !s.ssp.Selected() {
			break
		}
	}
	s.SetError(ErrOverwrite)
}

// SetError records f in the sticky error byte. ErrNone replaces the
// byte; any other flag is ORed in and lights the red LED.
func (s *Slave) SetError(f ErrorFlags) {
	if f == ErrNone {
		s.blk.SetErrorByte(byte(ErrNone))
		return
	}
	s.blk.SetErrorByte(s.blk.ErrorByte() | byte(f))
	s.out.Set(hal.PinLEDRed, true)
}

// ---------------- Readers ----------------

func (s *Slave) Errors() ErrorFlags { return ErrorFlags(s.blk.ErrorByte()) }

// Ack is the id the slave expects next and reports at the start of the
// next frame.
func (s *Slave) Ack() byte { return s.id }

// Declared is the id the host sent for the most recent frame.
func (s *Slave) Declared() byte { return s.declared }

func (s *Slave) InFrame() bool { return s.inFrame }

func (s *Slave) Stats() Stats { return s.stats }
