//go:build rp2040

package rp2

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// DiagUART configures UART0 for the diagnostic reader.
func DiagUART(baud uint32) *uartx.UART {
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return u
}
