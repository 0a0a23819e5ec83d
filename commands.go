package main

import (
	"slices"
	"strconv"
	"strings"
)

// Allow list of two character commands the bridge forwards to the sensor
var allowedCommands = []string{
	"??", // Query overall module information
	"?V", // Read firmware version
	"?B", // Read firmware build number
	"?D", // Read firmware build date
	"?P", // Read sensor part number
	"?N", // Read serial number
	"?U", // Read uptime since power-on

	// Clock
	"C?", // Query sensor clock

	// Frame Format
	"F?", // Query the current frame output format
	"FJ", // Set JSON-lines frame output
	"FB", // Set binary frame output

	// Frame Rate
	"R?", // Query the current frame rate

	// Joint Streaming
	"J?", // Query joint streaming state
	"J+", // Enable per-joint coordinate streaming
	"J-", // Disable per-joint coordinate streaming

	// Confidence Reporting
	"Q?", // Query confidence reporting state
	"Q+", // Include per-joint confidence values
	"Q-", // Omit per-joint confidence values

	// Subject Tracking
	"K?", // Query tracked subject limit
	"K1", // Track a single subject
	"K2", // Track up to two subjects

	// UART Interface Control
	"I?", // Query current baud rate
	"I1", // Set baud rate to 9,600
	"I2", // Set baud rate to 19,200
	"I3", // Set baud rate to 57,600
	"I4", // Set baud rate to 115,200 (default)
	"I5", // Set baud rate to 230,400

	// Persistent Memory
	"A!", // Save current configuration to persistent memory
	"A?", // Query persistent memory settings
	"AX", // Reset flash settings to factory defaults
}

// parameterizedCommands maps a command prefix to the validator for its
// integer argument. These take the form "<prefix>=<value>".
var parameterizedCommands = map[string]func(int) bool{
	"T": func(v int) bool { return v > 0 },              // Set sensor clock to a unix timestamp
	"R": func(v int) bool { return v >= 1 && v <= 120 }, // Set frame rate in Hz
}

// commandAllowed vets a bridge command before it reaches the serial port.
// Unknown commands and parameterized commands with out-of-range arguments
// are rejected.
func commandAllowed(cmd string) bool {
	if slices.Contains(allowedCommands, cmd) {
		return true
	}
	prefix, arg, ok := strings.Cut(cmd, "=")
	if !ok {
		return false
	}
	validate, ok := parameterizedCommands[prefix]
	if !ok {
		return false
	}
	v, err := strconv.Atoi(arg)
	if err != nil {
		return false
	}
	return validate(v)
}
