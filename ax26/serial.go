package ax26

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens a KISS TNC on a serial port at 8N1.
func OpenSerial(portName string, baud int) (*KISSTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return NewKISSTransport(port, 0), nil
}

// SerialPorts lists the serial ports present on the system.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
