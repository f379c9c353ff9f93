// Package conv formats numbers into caller-owned buffers without fmt or
// strconv, so the diagnostic writer stays allocation-free on the MCU.
package conv

const hexDigits = "0123456789ABCDEF"

// AppendUint appends the base-10 form of n to dst.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// AppendInt appends the base-10 form of n to dst. Negative numbers supported.
func AppendInt(dst []byte, n int64) []byte {
	if n < 0 {
		dst = append(dst, '-')
		return AppendUint(dst, uint64(-n))
	}
	return AppendUint(dst, uint64(n))
}

// AppendHex appends the low digits hex digits of n, uppercase, zero-padded,
// without a prefix.
func AppendHex(dst []byte, n uint64, digits int) []byte {
	for s := (digits - 1) * 4; s >= 0; s -= 4 {
		dst = append(dst, hexDigits[(n>>uint(s))&0xF])
	}
	return dst
}

// ParseUint reads a base-10 unsigned prefix of s. It returns the value,
// the number of bytes consumed and whether any digit was read.
func ParseUint(s string) (v uint64, n int, ok bool) {
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		v = v*10 + uint64(s[n]-'0')
		n++
	}
	return v, n, n > 0
}
