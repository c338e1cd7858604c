package screen

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeys(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{"Letters", "aD", []string{"a", "d"}},
		{"Space", " ", []string{"space"}},
		{"Arrows", "\x1b[A\x1b[B\x1bOC\x1b[D", []string{"up", "down", "right", "left"}},
		{"Escape", "\x1b", []string{"escape"}},
		{"CtrlC", "\x03", []string{"escape"}},
		{"Return", "\r", []string{"return"}},
		{"Mixed", "a\x1b[Cs ", []string{"a", "right", "s", "space"}},
		{"Control", "\x01\x02", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, decodeKeys([]byte(tc.input)))
		})
	}
}

func TestRenderMessage(t *testing.T) {
	out := Render(Message("Take a break"))
	assert.Contains(t, out, "Take a break")
	assert.NotContains(t, out, "+")
}

func TestRenderDial(t *testing.T) {
	out := Render(Frame{Dial: true, Fixation: true, Marker: true, Angle: 0, Caption: "Where?"})
	lines := strings.Split(out, "\n")
	require.True(t, len(lines) > dialRows)
	assert.Equal(t, "Where?", strings.TrimSpace(lines[0]))

	// Caption and blank line come first, then the grid
	grid := lines[2:]
	assert.Contains(t, grid[1], "●")
	assert.Contains(t, grid[dialRadius], "+")
	assert.Equal(t, 1, strings.Count(out, "●"))
}

func TestRenderHiddenMarker(t *testing.T) {
	out := Render(Frame{Dial: true, Fixation: true, Angle: 90})
	assert.NotContains(t, out, "●")
	assert.Contains(t, out, "+")
}

func TestRenderBlank(t *testing.T) {
	assert.Equal(t, "", Render(Frame{}))
}

func TestReadLoopStopsAfterClose(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	tm := &Terminal{in: r, notify: make(chan struct{}, 1), done: make(chan struct{})}
	exited := make(chan struct{})
	go func() {
		tm.readLoop()
		close(exited)
	}()

	_, err = w.Write([]byte(" "))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := tm.Wait(ctx, []string{"space"})
	require.NoError(t, err)
	assert.Equal(t, "space", ev.Key)

	close(tm.done)
	_, err = w.Write([]byte("a"))
	require.NoError(t, err)

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("reader still running after close")
	}
	events, err := tm.Poll([]string{"a"})
	require.NoError(t, err)
	assert.Empty(t, events)
}
