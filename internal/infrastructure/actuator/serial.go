package actuator

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens the actuator port in 8N1 mode.
func OpenSerial(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return port, nil
}

// LogWriter stands in for the serial port on bench setups without hardware.
// It only reports token changes, re-sends are counted silently.
type LogWriter struct {
	Logf    func(format string, args ...any)
	last    string
	repeats int
}

func (w *LogWriter) Write(p []byte) (int, error) {
	if string(p) == w.last {
		w.repeats++
		return len(p), nil
	}
	if w.Logf != nil {
		w.Logf("actuator <- %q (previous repeated %d times)", p, w.repeats)
	}
	w.last = string(p)
	w.repeats = 0
	return len(p), nil
}
