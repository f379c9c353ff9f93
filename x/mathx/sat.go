package mathx

import "golang.org/x/exp/constraints"

// SatInc returns v+1, holding at max once reached.
func SatInc[T constraints.Unsigned](v, max T) T {
	if v >= max {
		return max
	}
	return v + 1
}

// SatAdd returns a+b clamped to max.
func SatAdd[T constraints.Unsigned](a, b, max T) T {
	if a >= max || b >= max-a {
		return max
	}
	return a + b
}

// Hi and Lo split a 16-bit value into its register bytes.
func Hi(v uint16) byte { return byte(v >> 8) }
func Lo(v uint16) byte { return byte(v) }

// Join is the inverse of Hi/Lo.
func Join(hi, lo byte) uint16 { return uint16(hi)<<8 | uint16(lo) }
