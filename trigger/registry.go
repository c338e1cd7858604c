package trigger

import (
	"fmt"
	"time"
)

// Options select and configure a device.
type Options struct {
	Port  string        // serial port name, e.g. /dev/ttyUSB0 or COM3
	Baud  int           // serial speed
	Pulse time.Duration // how long activated lines stay high
}

// Factory is a function that opens a device on a port
type Factory func(opts Options) (Device, error)

// DriverInfo contains information about a device type
type DriverInfo struct {
	Name      string
	Product   string // human readable product name
	VendorID  uint16
	ProductID uint16
	Factory   Factory
}

var registeredDrivers []DriverInfo

// RegisterDriver registers a device factory with its USB VID/PID
func RegisterDriver(name, product string, vendorID, productID uint16, factory Factory) {
	registeredDrivers = append(registeredDrivers, DriverInfo{
		Name:      name,
		Product:   product,
		VendorID:  vendorID,
		ProductID: productID,
		Factory:   factory,
	})
}

// Drivers returns all registered drivers.
func Drivers() []DriverInfo {
	return registeredDrivers
}

// Lookup finds a driver serving a USB VID/PID pair.
func Lookup(vendorID, productID uint16) (DriverInfo, bool) {
	for _, info := range registeredDrivers {
		if info.VendorID == vendorID && info.ProductID == productID {
			return info, true
		}
	}
	return DriverInfo{}, false
}

// Open opens the configured device. Without a port the run goes on
// without triggers and Nop is returned.
func Open(driver string, opts Options) (Device, error) {
	if opts.Port == "" {
		return Nop{}, nil
	}
	for _, info := range registeredDrivers {
		if driver != "" && info.Name != driver {
			continue
		}
		dev, err := info.Factory(opts)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", info.Name, opts.Port, err)
		}
		return dev, nil
	}
	return nil, fmt.Errorf("%w: driver %q is not registered", ErrNoDevice, driver)
}
