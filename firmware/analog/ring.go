package analog

// RingCap is the number of battery samples averaged.
const RingCap = 40

// Ring is a fixed-capacity window of millivolt samples. Once full, each
// push evicts the oldest sample.
type Ring struct {
	buf  [RingCap]uint16
	head int
	n    int
}

func (r *Ring) Push(v uint16) {
	r.buf[r.head] = v
	r.head++
	if r.head == RingCap {
		r.head = 0
	}
	if r.n < RingCap {
		r.n++
	}
}

func (r *Ring) Len() int { return r.n }
func (r *Ring) Cap() int { return RingCap }

// Average is the truncated mean of the held samples, 0 when empty.
func (r *Ring) Average() uint16 {
	if r.n == 0 {
		return 0
	}
	var sum uint32
	for i := 0; i < r.n; i++ {
		sum += uint32(r.buf[i])
	}
	return uint16(sum / uint32(r.n))
}

func (r *Ring) Reset() { *r = Ring{} }
