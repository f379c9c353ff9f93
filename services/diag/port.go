//go:build !tinygo

package diag

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"auxcam-go/errcode"
)

// OpenPort opens the diagnostic UART and asserts DTR, which is wired to
// the board's request line, so the firmware starts printing reports.
func OpenPort(name string, baud int, readTimeout time.Duration) (serial.Port, error) {
	if name == "" {
		return nil, errcode.New(errcode.InvalidParams, "open", "no port name")
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to assert request line: %w", err)
	}
	return port, nil
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
