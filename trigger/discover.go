package trigger

import (
	"fmt"
	"strconv"

	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
)

// Port is a serial port seen on the system.
type Port struct {
	Name         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Driver       string // registered driver for this VID/PID, if any
}

// USBDevice is a device seen on the USB bus.
type USBDevice struct {
	Bus       int
	Address   int
	VendorID  uint16
	ProductID uint16
	Driver    string
}

// ListPorts returns the serial ports, with the matching driver for
// each port whose VID/PID is registered.
func ListPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var ports []Port
	for _, d := range details {
		p := Port{Name: d.Name, SerialNumber: d.SerialNumber}
		if d.IsUSB {
			vid, err1 := strconv.ParseUint(d.VID, 16, 16)
			pid, err2 := strconv.ParseUint(d.PID, 16, 16)
			if err1 == nil && err2 == nil {
				p.VendorID = uint16(vid)
				p.ProductID = uint16(pid)
				if info, ok := Lookup(p.VendorID, p.ProductID); ok {
					p.Driver = info.Name
				}
			}
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// ListUSB returns USB devices matching a registered driver. It needs
// access to the USB bus, which may require extra permissions.
func ListUSB() ([]USBDevice, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []USBDevice

	// Only descriptors are inspected, no device gets opened
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		info, ok := Lookup(uint16(desc.Vendor), uint16(desc.Product))
		if ok {
			found = append(found, USBDevice{
				Bus:       desc.Bus,
				Address:   desc.Address,
				VendorID:  uint16(desc.Vendor),
				ProductID: uint16(desc.Product),
				Driver:    info.Name,
			})
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil {
		return found, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	return found, nil
}
