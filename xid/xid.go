// Package xid drives Cedrus XID devices, such as the StimTracker,
// as trigger boxes over their USB serial port.
package xid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/sergev/libet/trigger"
)

const (
	VendorID  = 0x0403 // FTDI, used by Cedrus
	ProductID = 0x6001

	DefaultBaud  = 115200
	DefaultPulse = 10 * time.Millisecond

	// Reads of variable length replies end after this much silence
	readTimeout = 100 * time.Millisecond
)

// Command strings
const (
	cmdProtocol    = "_c1"
	cmdName        = "_d1"
	cmdProduct     = "_d2"
	cmdModel       = "_d3"
	cmdResetBase   = "e1"
	cmdResetRT     = "e5"
	cmdPulseLength = "mp"
	cmdSetLines    = "mh"
)

// ErrNotXID is returned when the device does not answer the protocol query.
var ErrNotXID = errors.New("device does not speak XID")

// Client wraps a serial connection to an XID device
type Client struct {
	port     io.ReadWriteCloser
	portName string
	protocol string
	name     string
	product  byte
	model    byte
	pulse    time.Duration
}

func init() {
	trigger.RegisterDriver("xid", "Cedrus StimTracker", VendorID, ProductID, Open)
}

// Open opens the serial port named in opts and initializes the device.
func Open(opts trigger.Options) (trigger.Device, error) {
	baud := opts.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(opts.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", opts.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	client, err := NewClient(port, opts.Port, opts.Pulse)
	if err != nil {
		port.Close()
		return nil, err
	}
	return client, nil
}

// NewClient identifies the device on an open port, resets its timers
// and sets the pulse duration.
func NewClient(port io.ReadWriteCloser, portName string, pulse time.Duration) (*Client, error) {
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	c := &Client{
		port:     port,
		portName: portName,
		pulse:    pulse,
	}

	// Protocol reply is "_xid" followed by the mode digit
	reply, err := c.query(cmdProtocol, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to query protocol: %w", err)
	}
	if !strings.HasPrefix(string(reply), "_xid") {
		return nil, fmt.Errorf("%w: reply %q", ErrNotXID, reply)
	}
	c.protocol = string(reply)

	name, err := c.queryText(cmdName)
	if err != nil {
		return nil, fmt.Errorf("failed to query device name: %w", err)
	}
	c.name = name

	product, err := c.query(cmdProduct, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query product ID: %w", err)
	}
	c.product = product[0]

	model, err := c.query(cmdModel, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query model ID: %w", err)
	}
	c.model = model[0]

	if err := c.ResetTimers(); err != nil {
		return nil, err
	}
	if err := c.SetPulseDuration(pulse); err != nil {
		return nil, err
	}
	return c, nil
}

// send writes a command without a reply
func (c *Client) send(cmd []byte) error {
	_, err := c.port.Write(cmd)
	if err != nil {
		return fmt.Errorf("failed to write command %q: %w", cmd[:2], err)
	}
	return nil
}

// query sends a command and reads a reply of fixed length
func (c *Client) query(cmd string, length int) ([]byte, error) {
	if err := c.send([]byte(cmd)); err != nil {
		return nil, err
	}
	reply := make([]byte, length)
	if _, err := io.ReadFull(c.port, reply); err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	return reply, nil
}

// queryText sends a command and reads a text reply up to a line end,
// a NUL byte or a read timeout.
func (c *Client) queryText(cmd string) (string, error) {
	if err := c.send([]byte(cmd)); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	b := make([]byte, 1)
	for buf.Len() < 256 {
		n, err := c.port.Read(b)
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read reply: %w", err)
		}
		if b[0] == '\n' || b[0] == '\r' || b[0] == 0 {
			break
		}
		buf.WriteByte(b[0])
	}
	return strings.TrimSpace(buf.String()), nil
}

// ResetTimers clears the base and reaction time timers.
func (c *Client) ResetTimers() error {
	if err := c.send([]byte(cmdResetBase)); err != nil {
		return err
	}
	return c.send([]byte(cmdResetRT))
}

// SetPulseDuration sets how long activated lines stay high.
func (c *Client) SetPulseDuration(d time.Duration) error {
	cmd := make([]byte, 6)
	copy(cmd, cmdPulseLength)
	binary.LittleEndian.PutUint32(cmd[2:], uint32(d.Milliseconds()))
	if err := c.send(cmd); err != nil {
		return err
	}
	c.pulse = d
	return nil
}

// Activate raises the output lines set in mask for the pulse duration.
func (c *Client) Activate(mask uint16) error {
	cmd := make([]byte, 4)
	copy(cmd, cmdSetLines)
	binary.LittleEndian.PutUint16(cmd[2:], mask)
	return c.send(cmd)
}

// Close releases the serial port.
func (c *Client) Close() error {
	return c.port.Close()
}

// productName maps the product ID to a readable name
func productName(id byte) string {
	switch id {
	case '0':
		return "Lumina"
	case '1':
		return "SV-1"
	case '2':
		return "RB response pad"
	case 'S':
		return "StimTracker"
	default:
		return fmt.Sprintf("Unknown (0x%02x)", id)
	}
}

// PrintStatus prints device information to stdout
func (c *Client) PrintStatus() {
	fmt.Printf("XID Device: %s\n", c.name)
	fmt.Printf("Serial Port: %s\n", c.portName)
	fmt.Printf("Protocol: %s\n", c.protocol)
	fmt.Printf("Product: %s\n", productName(c.product))
	fmt.Printf("Model: %c\n", c.model)
	fmt.Printf("Pulse Duration: %v\n", c.pulse)
}
