// Package trigger defines the optional device marking events for EEG or
// other recordings, and a registry of drivers for such devices.
package trigger

import "errors"

// ErrNoDevice is returned when no driver accepts a port.
var ErrNoDevice = errors.New("no trigger device")

// Device activates output lines of a trigger box.
type Device interface {
	// Activate raises the lines set in mask. The device drops them
	// again after its pulse duration.
	Activate(mask uint16) error

	// PrintStatus prints device information to stdout
	PrintStatus()

	Close() error
}

// Nop is used when no device is present. Every call succeeds.
type Nop struct{}

func (Nop) Activate(uint16) error { return nil }
func (Nop) PrintStatus()          {}
func (Nop) Close() error          { return nil }

// OrNop returns dev, or Nop when dev is nil.
func OrNop(dev Device) Device {
	if dev == nil {
		return Nop{}
	}
	return dev
}
