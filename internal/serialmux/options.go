package serialmux

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// PortOptions describes the serial connection parameters used when opening a
// real serial port. The fields mirror the daemon's flag and config surface so
// the options can be passed through without additional translation.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// parityModes maps the canonical single-letter parity token to the serial
// library's mode value. Normalize reduces user input to these tokens.
var parityModes = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

// normalizeParity reduces user parity input ("", "none", "E", "even", ...)
// to a canonical single-letter token.
func normalizeParity(input string) (string, error) {
	p := strings.TrimSpace(strings.ToUpper(input))
	switch p {
	case "":
		return "N", nil
	case "NONE":
		return "N", nil
	case "EVEN":
		return "E", nil
	case "ODD":
		return "O", nil
	}
	if _, ok := parityModes[p]; !ok {
		return "", fmt.Errorf("unsupported parity %q: expected N, E, or O", input)
	}
	return p, nil
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		// Bridge USB CDC default.
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity, err := normalizeParity(opts.Parity)
	if err != nil {
		return opts, err
	}
	opts.Parity = parity

	return opts, nil
}

// Equal reports whether two PortOptions describe the same serial configuration.
func (o PortOptions) Equal(other PortOptions) bool {
	a, errA := o.Normalize()
	b, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// SerialMode converts the port options into the serial.Mode structure required
// by go.bug.st/serial when opening a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	// serial.StopBits is an enum, not a count: a bare cast would turn
	// 1 into OnePointFiveStopBits.
	stopBits := serial.OneStopBit
	if opts.StopBits == 2 {
		stopBits = serial.TwoStopBits
	}

	return &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: stopBits,
		Parity:   parityModes[opts.Parity],
	}, nil
}
