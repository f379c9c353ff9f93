package buttons

import (
	"testing"

	"auxcam-go/firmware/telemetry"
	"auxcam-go/hal"
)

var released = hal.Levels{true, true, true, true}

func with(b hal.Button, pressed bool) hal.Levels {
	l := released
	l[b] = !pressed
	return l
}

func TestNoPressAtBoot(t *testing.T) {
	var d Debouncer
	for i := 0; i < 3; i++ {
		if m := d.Poll(released); m.Any() {
			t.Fatalf("poll %d reported %08b", i, m)
		}
	}
}

func TestTwoSamplesRequired(t *testing.T) {
	var d Debouncer
	d.Poll(released)
	d.Poll(released)

	if m := d.Poll(with(hal.BtnTop, true)); m.Any() {
		t.Fatal("single sample accepted")
	}
	m := d.Poll(with(hal.BtnTop, true))
	if !m.Has(hal.BtnTop) || m != MaskOf(hal.BtnTop) {
		t.Fatalf("press not reported: %08b", m)
	}
	if !d.Held(hal.BtnTop) {
		t.Fatal("top not held")
	}
	if m := d.Poll(with(hal.BtnTop, true)); m.Any() {
		t.Fatal("held button counted twice")
	}
}

func TestBounceIsFiltered(t *testing.T) {
	var d Debouncer
	d.Poll(released)
	d.Poll(released)

	seq := []bool{true, false, true, false, true, true, true}
	presses := 0
	for _, p := range seq {
		if d.Poll(with(hal.BtnShutter, p)).Has(hal.BtnShutter) {
			presses++
		}
	}
	if presses != 1 {
		t.Fatalf("presses = %d, want 1", presses)
	}
}

func TestReleaseIsNotAPress(t *testing.T) {
	var d Debouncer
	d.Poll(released)
	d.Poll(released)
	d.Poll(with(hal.BtnBottom, true))
	d.Poll(with(hal.BtnBottom, true))
	if m := d.Poll(released); m.Any() {
		t.Fatal("release reported")
	}
	if m := d.Poll(released); m.Any() {
		t.Fatal("release reported")
	}
	if d.Held(hal.BtnBottom) {
		t.Fatal("bottom still held")
	}
}

func TestRecord(t *testing.T) {
	blk := telemetry.New(nil)
	Record(blk, MaskOf(hal.BtnShutter, hal.BtnMiddle))
	Record(blk, MaskOf(hal.BtnMiddle))
	if blk.Presses(hal.BtnShutter) != 1 || blk.Presses(hal.BtnMiddle) != 2 || blk.Presses(hal.BtnTop) != 0 {
		snap := blk.Snapshot()
		t.Fatalf("counters: % x", snap[:4])
	}
}
