package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Dial geometry in character cells.
const (
	dialRadius = 9
	dialRows   = 2*dialRadius + 1
	dialCols   = 4*dialRadius + 1
)

var (
	markerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
	tickStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	referenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	textStyle      = lipgloss.NewStyle().Bold(true)
)

// Terminal shows the clock in a text terminal and reads the keyboard
// in raw mode. One instance serves as both Surface and Keyboard.
type Terminal struct {
	in       *os.File
	out      io.Writer
	oldState *term.State
	ticker   *time.Ticker

	mu      sync.Mutex
	queue   []KeyEvent
	readErr error
	notify  chan struct{}
	done    chan struct{}
}

// OpenTerminal switches stdin to raw mode and paces frames at refreshHz.
func OpenTerminal(refreshHz float64) (*Terminal, error) {
	if refreshHz <= 0 {
		return nil, fmt.Errorf("invalid refresh rate %g", refreshHz)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}

	t := &Terminal{
		in:       os.Stdin,
		out:      os.Stdout,
		oldState: oldState,
		ticker:   time.NewTicker(time.Duration(float64(time.Second) / refreshHz)),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	// Hide cursor, clear screen
	fmt.Fprint(t.out, "\x1b[?25l\x1b[2J")

	go t.readLoop()
	return t, nil
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	close(t.done)
	t.ticker.Stop()
	fmt.Fprint(t.out, "\x1b[2J\x1b[H\x1b[?25h")
	return term.Restore(int(t.in.Fd()), t.oldState)
}

// readLoop queues decoded keys. Stdin reads cannot be interrupted, so
// after Close the loop stays blocked until one more key arrives or
// stdin reaches EOF, then drops that input and exits.
func (t *Terminal) readLoop() {
	buf := make([]byte, 64)
	for {
		n, err := t.in.Read(buf)
		now := time.Now()
		select {
		case <-t.done:
			return
		default:
		}

		t.mu.Lock()
		for _, key := range decodeKeys(buf[:n]) {
			t.queue = append(t.queue, KeyEvent{Key: key, At: now})
		}
		if err != nil {
			t.readErr = fmt.Errorf("keyboard: %w", err)
		}
		t.mu.Unlock()

		select {
		case t.notify <- struct{}{}:
		default:
		}
		if err != nil {
			return
		}
	}
}

// decodeKeys converts raw terminal input into key names.
func decodeKeys(b []byte) []string {
	var keys []string
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == 0x1b:
			// Arrow keys arrive as ESC [ X or ESC O X
			if i+2 < len(b) && (b[i+1] == '[' || b[i+1] == 'O') {
				if name, ok := arrowKeys[b[i+2]]; ok {
					keys = append(keys, name)
					i += 2
					continue
				}
			}
			keys = append(keys, "escape")
		case c == 0x03:
			// Ctrl-C quits like escape
			keys = append(keys, "escape")
		case c == ' ':
			keys = append(keys, "space")
		case c == '\r' || c == '\n':
			keys = append(keys, "return")
		case c == 0x7f || c == 0x08:
			keys = append(keys, "backspace")
		case c > ' ' && c < 0x7f:
			keys = append(keys, strings.ToLower(string(rune(c))))
		}
	}
	return keys
}

var arrowKeys = map[byte]string{
	'A': "up",
	'B': "down",
	'C': "right",
	'D': "left",
}

// Poll implements Keyboard.
func (t *Terminal) Poll(keys []string) ([]KeyEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []KeyEvent
	for _, ev := range t.queue {
		if slices.Contains(keys, ev.Key) {
			events = append(events, ev)
		}
	}
	t.queue = nil
	return events, t.readErr
}

// Wait implements Keyboard.
func (t *Terminal) Wait(ctx context.Context, keys []string) (KeyEvent, error) {
	for {
		t.mu.Lock()
		for i, ev := range t.queue {
			if len(keys) == 0 || slices.Contains(keys, ev.Key) {
				t.queue = t.queue[i+1:]
				t.mu.Unlock()
				return ev, nil
			}
		}
		t.queue = nil
		err := t.readErr
		t.mu.Unlock()

		if err != nil {
			return KeyEvent{}, err
		}
		select {
		case <-ctx.Done():
			return KeyEvent{}, ctx.Err()
		case <-t.notify:
		}
	}
}

// Clear implements Keyboard.
func (t *Terminal) Clear() {
	t.mu.Lock()
	t.queue = nil
	t.mu.Unlock()
}

// Flip implements Surface.
func (t *Terminal) Flip(ctx context.Context, f Frame) (time.Time, error) {
	// Raw mode needs explicit carriage returns
	text := strings.ReplaceAll(Render(f), "\n", "\r\n")
	if _, err := fmt.Fprint(t.out, "\x1b[H\x1b[2J"+text); err != nil {
		return time.Time{}, err
	}
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case now := <-t.ticker.C:
		return now, nil
	}
}

// Render draws a frame as lines of text.
func Render(f Frame) string {
	var sb strings.Builder
	if f.Caption != "" {
		sb.WriteString(textStyle.Render(f.Caption))
		sb.WriteString("\n\n")
	}
	if f.Text != "" && !f.Dial {
		sb.WriteString("\n")
		sb.WriteString(textStyle.Render(f.Text))
		sb.WriteString("\n")
		return sb.String()
	}
	if !f.Dial && !f.Fixation && !f.Marker {
		return sb.String()
	}

	grid := make([][]string, dialRows)
	for r := range grid {
		grid[r] = make([]string, dialCols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}
	put := func(angle, radius float64, s string) {
		rad := angle * math.Pi / 180
		col := dialRadius*2 + int(math.Round(2*radius*math.Sin(rad)))
		row := dialRadius - int(math.Round(radius*math.Cos(rad)))
		if row >= 0 && row < dialRows && col >= 0 && col < dialCols {
			grid[row][col] = s
		}
	}

	if f.Dial {
		// 60 small tics, 12 large ones
		for a := 0; a < 360; a += 6 {
			mark := tickStyle.Render("·")
			if a%30 == 0 {
				mark = tickStyle.Render("o")
			}
			put(float64(a), dialRadius, mark)
		}
	}
	for _, ref := range f.References {
		for r := 1.0; r < dialRadius-1; r++ {
			put(ref, r, referenceStyle.Render("."))
		}
	}
	if f.Fixation {
		grid[dialRadius][dialRadius*2] = "+"
	}
	if f.Marker {
		put(f.Angle, dialRadius-1, markerStyle.Render("●"))
	}

	for _, row := range grid {
		sb.WriteString(strings.TrimRight(strings.Join(row, ""), " "))
		sb.WriteString("\n")
	}
	if f.Text != "" {
		sb.WriteString("\n")
		sb.WriteString(textStyle.Render(f.Text))
		sb.WriteString("\n")
	}
	return sb.String()
}
