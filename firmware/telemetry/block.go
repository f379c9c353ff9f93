// Package telemetry holds the block exchanged with the host on every
// frame and the command block received in return.
//
// The block is shared between interrupt handlers and the main loop.
// Methods marked "main loop" run their writes under the Guard so the
// serial handler never observes a half-written field; the remaining
// methods are called from interrupt context, where handlers do not nest.
package telemetry

import (
	"encoding/binary"

	"auxcam-go/hal"
	"auxcam-go/x/mathx"
)

// Size is the frame payload length in both directions.
const Size = 20

// Fixed block layout.
const (
	IdxShutter = iota
	IdxTop
	IdxMiddle
	IdxBottom
	IdxVoltageHi
	IdxVoltageLo
	IdxPending
	IdxTicks0
	IdxTicks1
	IdxTicks2
	IdxTicks3

	IdxError = Size - 1
)

// IdxButton returns the counter slot of b.
func IdxButton(b hal.Button) int { return IdxShutter + int(b) }

// Guard masks whatever can observe the block while the main loop writes it.
type Guard interface {
	Lock() (restore bool)
	Unlock(restore bool)
}

// SerialGuard masks only the serial interrupt and restores its previous
// enable state.
type SerialGuard struct{ IRQ hal.Interrupts }

func (g SerialGuard) Lock() bool {
	was := g.IRQ.Enabled(hal.SrcSerial)
	g.IRQ.SetEnabled(hal.SrcSerial, false)
	return was
}

func (g SerialGuard) Unlock(was bool) { g.IRQ.SetEnabled(hal.SrcSerial, was) }

type noGuard struct{}

func (noGuard) Lock() bool   { return false }
func (noGuard) Unlock(bool) {}

// Block is the telemetry block plus the last received command block.
type Block struct {
	tx    [Size]byte
	rx    [Size]byte
	guard Guard
}

// New returns a zeroed block. A nil guard disables masking (tests).
func New(g Guard) *Block {
	if g == nil {
		g = noGuard{}
	}
	return &Block{guard: g}
}

// ---------------- Interrupt context ----------------

// Byte returns telemetry slot i.
func (b *Block) Byte(i int) byte { return b.tx[i] }

// Store records command byte i.
func (b *Block) Store(i int, v byte) { b.rx[i] = v }

// TakePresses removes the press counts held in sent, a snapshot taken
// earlier, from the live counters. Presses added since the snapshot
// remain for the next frame.
func (b *Block) TakePresses(sent *[Size]byte) {
	for i := IdxShutter; i <= IdxBottom; i++ {
		if b.tx[i] > sent[i] {
			b.tx[i] -= sent[i]
		} else {
			b.tx[i] = 0
		}
	}
}

// ErrorByte returns the sticky error byte.
func (b *Block) ErrorByte() byte { return b.tx[IdxError] }

// SetErrorByte replaces the sticky error byte.
func (b *Block) SetErrorByte(v byte) { b.tx[IdxError] = v }

// AddTicks advances the little-endian tick counter, wrapping at 2^32.
func (b *Block) AddTicks(n uint32) {
	t := binary.LittleEndian.Uint32(b.tx[IdxTicks0 : IdxTicks3+1])
	binary.LittleEndian.PutUint32(b.tx[IdxTicks0:IdxTicks3+1], t+n)
}

// ---------------- Main loop ----------------

// SetVoltage writes the battery millivolt pair as one unit.
func (b *Block) SetVoltage(mv uint16) {
	r := b.guard.Lock()
	b.tx[IdxVoltageHi] = mathx.Hi(mv)
	b.tx[IdxVoltageLo] = mathx.Lo(mv)
	b.guard.Unlock(r)
}

// AddPress increments the counter of btn, saturating at 255.
func (b *Block) AddPress(btn hal.Button) {
	i := IdxButton(btn)
	r := b.guard.Lock()
	b.tx[i] = mathx.SatInc(b.tx[i], 0xFF)
	b.guard.Unlock(r)
}

// PendingPresses sums the unreported presses (saturating), stores the
// total in the pending slot and returns it.
func (b *Block) PendingPresses() byte {
	r := b.guard.Lock()
	var total byte
	for i := IdxShutter; i <= IdxBottom; i++ {
		total = mathx.SatAdd(total, b.tx[i], 0xFF)
	}
	b.tx[IdxPending] = total
	b.guard.Unlock(r)
	return total
}

// Reset zeroes both blocks.
func (b *Block) Reset() {
	r := b.guard.Lock()
	b.tx = [Size]byte{}
	b.rx = [Size]byte{}
	b.guard.Unlock(r)
}

// ---------------- Readers ----------------

func (b *Block) Voltage() uint16 { return mathx.Join(b.tx[IdxVoltageHi], b.tx[IdxVoltageLo]) }

func (b *Block) Presses(btn hal.Button) byte { return b.tx[IdxButton(btn)] }

func (b *Block) Ticks() uint32 {
	return binary.LittleEndian.Uint32(b.tx[IdxTicks0 : IdxTicks3+1])
}

// Snapshot copies the telemetry block.
func (b *Block) Snapshot() [Size]byte { return b.tx }

// Commands copies the last received command block.
func (b *Block) Commands() [Size]byte { return b.rx }
