package xid

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort replays canned replies and records everything written.
type fakePort struct {
	replies bytes.Buffer
	written bytes.Buffer
	closed  bool
	failAt  int // fail writes once this many bytes were written
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.replies.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.failAt > 0 && p.written.Len()+len(b) > p.failAt {
		return 0, errors.New("write failed")
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func stimTracker() *fakePort {
	p := &fakePort{}
	p.replies.WriteString("_xid0")
	p.replies.WriteString("StimTracker Quad\x00")
	p.replies.WriteString("S")
	p.replies.WriteString("1")
	return p
}

func TestNewClient(t *testing.T) {
	port := stimTracker()
	c, err := NewClient(port, "/dev/ttyUSB0", 0)
	require.NoError(t, err)

	assert.Equal(t, "_xid0", c.protocol)
	assert.Equal(t, "StimTracker Quad", c.name)
	assert.Equal(t, byte('S'), c.product)
	assert.Equal(t, DefaultPulse, c.pulse)

	want := []byte("_c1_d1_d2_d3e1e5mp\x0a\x00\x00\x00")
	assert.Equal(t, want, port.written.Bytes())
}

func TestActivate(t *testing.T) {
	port := stimTracker()
	c, err := NewClient(port, "COM3", 25*time.Millisecond)
	require.NoError(t, err)
	port.written.Reset()

	require.NoError(t, c.Activate(0x0b))
	require.NoError(t, c.Activate(0x1234))
	assert.Equal(t, []byte("mh\x0b\x00mh\x34\x12"), port.written.Bytes())

	require.NoError(t, c.Close())
	assert.True(t, port.closed)
}

func TestPulseDuration(t *testing.T) {
	port := stimTracker()
	c, err := NewClient(port, "COM3", 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, c.pulse)
	assert.True(t, bytes.HasSuffix(port.written.Bytes(), []byte("mp\x2c\x01\x00\x00")))
}

func TestNotXID(t *testing.T) {
	port := &fakePort{}
	port.replies.WriteString("hello")
	_, err := NewClient(port, "COM3", 0)
	assert.True(t, errors.Is(err, ErrNotXID))
}

func TestSilentDevice(t *testing.T) {
	_, err := NewClient(&fakePort{}, "COM3", 0)
	assert.Error(t, err)
}

func TestActivateWriteFailure(t *testing.T) {
	port := stimTracker()
	c, err := NewClient(port, "COM3", 0)
	require.NoError(t, err)
	port.failAt = port.written.Len()

	assert.Error(t, c.Activate(1))
}

func TestProductName(t *testing.T) {
	assert.Equal(t, "StimTracker", productName('S'))
	assert.Equal(t, "Unknown (0x7a)", productName('z'))
}
