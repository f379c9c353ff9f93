package diag

import (
	"strings"

	"auxcam-go/errcode"
	"auxcam-go/firmware"
	"auxcam-go/hal"
	"auxcam-go/types"
	"auxcam-go/x/conv"
)

// FromReport converts a firmware report to its bus payload.
func FromReport(r firmware.Report) types.DiagReport {
	return types.DiagReport{
		BatteryMV:   r.BatteryLast,
		AverageMV:   r.BatteryAverage,
		BoardVoutMV: r.BoardVout,
		Shutter:     r.Presses[hal.BtnShutter],
		Top:         r.Presses[hal.BtnTop],
		Middle:      r.Presses[hal.BtnMiddle],
		Bottom:      r.Presses[hal.BtnBottom],
		Buttons:     r.Buttons,
		Display:     r.Display.String(),
		Ticks:       r.Ticks,
		Errors:      types.LinkErrorBits(r.Errors).Names(),
	}
}

// Format appends one diagnostic line, without the newline, to dst:
//
//	batt 4016 avg 4316 vout 3309 shutter 0 top 1 mid 0 bot 0 btn 1011 disp off ticks 42 err none
func Format(dst []byte, r types.DiagReport) []byte {
	dst = appendField(dst, "batt", uint64(r.BatteryMV))
	dst = appendField(dst, " avg", uint64(r.AverageMV))
	dst = appendField(dst, " vout", uint64(r.BoardVoutMV))
	dst = appendField(dst, " shutter", uint64(r.Shutter))
	dst = appendField(dst, " top", uint64(r.Top))
	dst = appendField(dst, " mid", uint64(r.Middle))
	dst = appendField(dst, " bot", uint64(r.Bottom))

	dst = append(dst, " btn "...)
	for _, released := range r.Buttons {
		if released {
			dst = append(dst, '1')
		} else {
			dst = append(dst, '0')
		}
	}

	disp := r.Display
	if disp == "" {
		disp = "off"
	}
	dst = append(dst, " disp "...)
	dst = append(dst, disp...)
	dst = appendField(dst, " ticks", uint64(r.Ticks))

	dst = append(dst, " err "...)
	if len(r.Errors) == 0 {
		dst = append(dst, "undefined"...)
	}
	for i, e := range r.Errors {
		if i > 0 {
			dst = append(dst, '|')
		}
		dst = append(dst, e...)
	}
	return dst
}

func appendField(dst []byte, key string, v uint64) []byte {
	dst = append(dst, key...)
	dst = append(dst, ' ')
	return conv.AppendUint(dst, v)
}

// ParseLine reads a line written by Format. Unknown keys are ignored so
// older monitors keep working against newer firmware.
func ParseLine(line string) (types.DiagReport, error) {
	var r types.DiagReport
	f := strings.Fields(line)
	if len(f) == 0 || f[0] != "batt" {
		return r, errcode.New(errcode.BadLine, "parse", "not a report: "+line)
	}
	if len(f)%2 != 0 {
		return r, errcode.New(errcode.BadLine, "parse", "odd field count")
	}

	seen := 0
	for i := 0; i < len(f); i += 2 {
		key, val := f[i], f[i+1]
		switch key {
		case "btn":
			if len(val) != len(r.Buttons) {
				return r, errcode.New(errcode.BadLine, "parse", "btn: "+val)
			}
			for j := range r.Buttons {
				r.Buttons[j] = val[j] == '1'
			}
			continue
		case "disp":
			r.Display = val
			continue
		case "err":
			if val != "undefined" {
				r.Errors = strings.Split(val, "|")
			}
			continue
		}

		n, used, ok := conv.ParseUint(val)
		if !ok || used != len(val) {
			return r, errcode.New(errcode.BadLine, "parse", key+": "+val)
		}
		switch key {
		case "batt":
			r.BatteryMV = uint16(n)
		case "avg":
			r.AverageMV = uint16(n)
		case "vout":
			r.BoardVoutMV = uint16(n)
		case "shutter":
			r.Shutter = uint8(n)
		case "top":
			r.Top = uint8(n)
		case "mid":
			r.Middle = uint8(n)
		case "bot":
			r.Bottom = uint8(n)
		case "ticks":
			r.Ticks = uint32(n)
		default:
			continue
		}
		seen++
	}
	if seen < 8 {
		return r, errcode.New(errcode.BadLine, "parse", "missing fields")
	}
	return r, nil
}
