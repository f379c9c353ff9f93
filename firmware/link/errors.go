package link

import (
	"strings"

	"auxcam-go/types"
)

// ErrorFlags is the sticky error byte reported in the last telemetry slot.
// ErrNone is itself a bit: a healthy link reports exactly 0x01.
type ErrorFlags uint8

const (
	ErrUndefined  ErrorFlags = 0
	ErrNone       ErrorFlags = 1 << 0
	ErrOverflow   ErrorFlags = 1 << 1 // receive register overrun
	ErrOverwrite  ErrorFlags = 1 << 2 // persistent transmit write collision
	ErrOutOfIndex ErrorFlags = 1 << 3 // more data bytes than the block holds
	ErrSequence   ErrorFlags = 1 << 4 // host id differs from the expected one
)

func (f ErrorFlags) Has(x ErrorFlags) bool { return f&x != 0 }

// Faults reports any bit other than ErrNone.
func (f ErrorFlags) Faults() bool { return f&^ErrNone != 0 }

func (f ErrorFlags) String() string {
	if f == ErrUndefined {
		return "undefined"
	}
	return strings.Join(types.Names(types.LinkErrorBits(f), types.LinkErrorTable[:]), "|")
}
