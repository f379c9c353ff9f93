package power

import "auxcam-go/x/mathx"

// Detector counts consecutive polls with the board output below the
// power-off threshold. Any reading at or above it restarts the count.
type Detector struct {
	thresholdMilliV uint16
	polls           uint16
	count           uint16
}

func NewDetector(thresholdMilliV, polls uint16) Detector {
	return Detector{thresholdMilliV: thresholdMilliV, polls: polls}
}

func (d *Detector) Update(voutMilliV uint16) {
	if voutMilliV < d.thresholdMilliV {
		d.count = mathx.SatInc(d.count, 0xFFFF)
		return
	}
	d.count = 0
}

// Sustained reports the output low for more than the configured polls.
func (d *Detector) Sustained() bool { return d.count > d.polls }

func (d *Detector) Count() uint16 { return d.count }
