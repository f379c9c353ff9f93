// Package auxctl is the host side of the auxiliary controller link.
//
// Each transfer holds chip select low while it first exchanges the
// sequence id byte, reading back the controller's acknowledgement, and
// then the 20-byte blocks. The acknowledgement must equal the id being
// sent unless the host is restarting the count with id 0.
package auxctl

import (
	"context"
	"errors"
	"strings"
	"time"

	"tinygo.org/x/drivers"

	"auxcam-go/errcode"
	"auxcam-go/firmware/telemetry"
	"auxcam-go/types"
	"auxcam-go/x/conv"
)

const (
	size = telemetry.Size
	// seqWrap is the first id never sent; the controller would increment
	// past it. The host goes back to 0 instead.
	seqWrap = 254
)

var ErrCommandIndex = errors.New("auxctl: command index out of range")

// ChipSelect is the select line. machine.Pin satisfies it.
type ChipSelect interface {
	Low()
	High()
}

type Config struct {
	// TickPeriod converts the controller's tick counter to time.
	TickPeriod time.Duration
	// RetryDelay separates transfers inside Sync.
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickPeriod: 262144 * time.Microsecond,
		RetryDelay: 25 * time.Millisecond,
	}
}

// Stats counts transfers since New. Counters wrap.
type Stats struct {
	Transfers  uint32
	Failures   uint32
	Mismatches uint32
	Restarts   uint32
}

type Device struct {
	spi drivers.SPI
	cs  ChipSelect
	cfg Config

	// Index size holds the sequence id in tx and the ack in rx.
	tx [size + 1]byte
	rx [size + 1]byte

	restart         bool
	restartComplete bool

	frame types.Frame
	stats Stats
}

func New(spi drivers.SPI, cs ChipSelect, cfg Config) *Device {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultConfig().TickPeriod
	}
	return &Device{spi: spi, cs: cs, cfg: cfg, restart: true}
}

// Initialize restarts the sequence and syncs.
func (d *Device) Initialize(ctx context.Context) error {
	d.restart = true
	d.restartComplete = false
	return d.Sync(ctx)
}

// Sync transfers until a restart has been acknowledged and a transfer
// succeeds, or ctx is done.
func (d *Device) Sync(ctx context.Context) error {
	err := d.Transfer()
	for d.restart || !d.restartComplete || err != nil {
		if d.cfg.RetryDelay > 0 {
			t := time.NewTimer(d.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			if err == nil {
				err = ctx.Err()
			}
			return errcode.Wrap(errcode.NotSynced, "sync", err)
		}
		err = d.Transfer()
	}
	return nil
}

// Transfer runs one frame and decodes the reply.
func (d *Device) Transfer() error {
	d.stats.Transfers++
	id := d.prepareNext()

	d.cs.Low()
	err := d.spi.Tx(d.tx[size:], d.rx[size:])
	if err == nil && !d.valid() {
		d.cs.High()
		d.restart = true
		d.restartComplete = false
		d.stats.Mismatches++
		d.stats.Failures++
		msg := conv.AppendUint([]byte("sent "), uint64(id))
		msg = conv.AppendUint(append(msg, " read "...), uint64(d.rx[size]))
		return errcode.New(errcode.SequenceMismatch, "transfer", string(msg))
	}
	if err == nil {
		err = d.spi.Tx(d.tx[:size], d.rx[:size])
	}
	d.cs.High()
	if err != nil {
		d.stats.Failures++
		return errcode.Wrap(errcode.LinkError, "transfer", err)
	}

	d.decode()
	if !d.frame.Errors.Clean() {
		d.stats.Failures++
		return errcode.New(errcode.LinkError, "transfer", "error byte "+strings.Join(d.frame.Errors.Names(), "|"))
	}
	if d.rx[size] == 1 {
		d.restartComplete = true
	}
	return nil
}

func (d *Device) prepareNext() byte {
	d.tx[size]++
	if d.tx[size] >= seqWrap {
		d.tx[size] = 0
	}
	if d.restart {
		d.restart = false
		d.stats.Restarts++
		d.tx[size] = 0
	}
	return d.tx[size]
}

func (d *Device) valid() bool {
	if d.tx[size] == 0 {
		return true
	}
	return d.tx[size] == d.rx[size]
}

func (d *Device) decode() {
	r := &d.rx
	d.frame = types.Frame{
		Shutter:   r[telemetry.IdxShutter],
		Top:       r[telemetry.IdxTop],
		Middle:    r[telemetry.IdxMiddle],
		Bottom:    r[telemetry.IdxBottom],
		BatteryMV: uint16(r[telemetry.IdxVoltageHi])<<8 | uint16(r[telemetry.IdxVoltageLo]),
		Pending:   r[telemetry.IdxPending],
		Ticks: uint32(r[telemetry.IdxTicks0]) |
			uint32(r[telemetry.IdxTicks1])<<8 |
			uint32(r[telemetry.IdxTicks2])<<16 |
			uint32(r[telemetry.IdxTicks3])<<24,
		Errors: types.LinkErrorBits(r[telemetry.IdxError]),
	}
}

// SetCommand sets byte i of the block sent with every following transfer.
func (d *Device) SetCommand(i int, v byte) error {
	if i < 0 || i >= size {
		return ErrCommandIndex
	}
	d.tx[i] = v
	return nil
}

// Frame is the last successfully decoded block.
func (d *Device) Frame() types.Frame { return d.frame }

// Time is the controller's uptime according to its tick counter.
func (d *Device) Time() time.Duration { return time.Duration(d.frame.Ticks) * d.cfg.TickPeriod }

// Sequence is the id sent with the last transfer.
func (d *Device) Sequence() byte { return d.tx[size] }

// Ack is the acknowledgement read during the last transfer.
func (d *Device) Ack() byte { return d.rx[size] }

func (d *Device) Synced() bool { return !d.restart && d.restartComplete }
func (d *Device) Stats() Stats { return d.stats }
