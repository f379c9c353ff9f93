package mathx

// Ratio scales n by num/den with 32-bit intermediates, truncating.
// Used for ratiometric ADC conversions where n*num fits in 32 bits.
func Ratio(n, num, den uint32) uint32 {
	if den == 0 {
		return 0
	}
	return n * num / den
}
