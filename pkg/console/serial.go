//go:build !tinygo

package console

import (
	"fmt"

	"go.bug.st/serial"
)

var _ Console = (*Serial)(nil)

// Serial is a Console on a serial port.
type Serial struct {
	*Writer
	port serial.Port
}

// OpenSerial opens a serial console with 8N1 framing.
func OpenSerial(name string, baudRate int, eol string) (*Serial, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial console %s: %w", name, err)
	}
	return &Serial{Writer: NewWriter(port, eol), port: port}, nil
}

// ClearStatus discards unread input and the last write error.
func (c *Serial) ClearStatus() {
	c.Writer.ClearStatus()
	_ = c.port.ResetInputBuffer()
}

// Close closes the port.
func (c *Serial) Close() error {
	return c.port.Close()
}
