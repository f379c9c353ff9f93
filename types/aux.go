package types

// ------------------------
// Host link
// ------------------------

// Frame is one decoded telemetry block as read by the host.
type Frame struct {
	Shutter   uint8         `json:"shutter" yaml:"shutter"`
	Top       uint8         `json:"top" yaml:"top"`
	Middle    uint8         `json:"middle" yaml:"middle"`
	Bottom    uint8         `json:"bottom" yaml:"bottom"`
	BatteryMV uint16        `json:"battery_mV" yaml:"battery_mV"`
	Pending   uint8         `json:"pending" yaml:"pending"`
	Ticks     uint32        `json:"ticks" yaml:"ticks"`
	Errors    LinkErrorBits `json:"errors" yaml:"errors"`
}

// Presses reports whether any button counter is non-zero.
func (f Frame) Presses() bool {
	return f.Shutter|f.Top|f.Middle|f.Bottom != 0
}

// ------------------------
// Diagnostics
// ------------------------

// DiagReport is one diagnostic line. Published on diag/report.
type DiagReport struct {
	BatteryMV   uint16   `json:"battery_mV"`
	AverageMV   uint16   `json:"average_mV"`
	BoardVoutMV uint16   `json:"vout_mV"`
	Shutter     uint8    `json:"shutter"`
	Top         uint8    `json:"top"`
	Middle      uint8    `json:"middle"`
	Bottom      uint8    `json:"bottom"`
	Buttons     [4]bool  `json:"buttons"` // raw levels, true = released
	Display     string   `json:"display,omitempty"`
	Ticks       uint32   `json:"ticks"`
	Errors      []string `json:"errors,omitempty"`
}

// PowerEvent is published retained on power/mode after each transition.
type PowerEvent struct {
	Mode        string `json:"mode"` // "active" | "low_power"
	Transitions uint32 `json:"transitions"`
	TS          int64  `json:"ts_ms"`
}

// LogLine is free text from the firmware. Published on diag/line.
type LogLine struct {
	Text string `json:"text"`
}

// DiagStatus answers a request on diag/status/get.
type DiagStatus struct {
	Reports     uint32     `json:"reports"`
	Lines       uint32     `json:"lines"`
	WriteErrors uint32     `json:"write_errors"`
	Mode        string     `json:"mode"`
	Last        DiagReport `json:"last"`
}

// DiagConfig selects what the diagnostic writer prints. Published
// retained on config/diag.
type DiagConfig struct {
	Reports bool `json:"reports" yaml:"reports"`
	Lines   bool `json:"lines" yaml:"lines"`
}
