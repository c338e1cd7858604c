// Package screen defines what the experiment needs from the presentation
// environment: a surface that shows one frame per refresh, a keyboard
// and a timer.
package screen

import (
	"context"
	"time"
)

// Frame is everything drawn during one refresh.
type Frame struct {
	Dial       bool      // clock face with tics
	Fixation   bool      // "+" in the centre
	Marker     bool      // rotating dot
	Angle      float64   // marker position in degrees, clockwise from 12 o'clock
	References []float64 // radial lines from the centre
	Caption    string    // text above the dial
	Text       string    // message instead of the dial
}

// Message returns a frame showing only a text.
func Message(text string) Frame {
	return Frame{Text: text}
}

// Surface presents frames at the display refresh rate.
type Surface interface {
	// Flip draws the frame and blocks until the next refresh.
	// It returns the time the frame became visible.
	Flip(ctx context.Context, f Frame) (time.Time, error)
	Close() error
}

// KeyEvent is one key press with the time it was received.
type KeyEvent struct {
	Key string
	At  time.Time
}

// Keyboard delivers key presses.
type Keyboard interface {
	// Poll returns presses of the listed keys received since the last
	// poll or clear, oldest first. It never blocks. Presses of other
	// keys are dropped.
	Poll(keys []string) ([]KeyEvent, error)

	// Wait blocks until one of the listed keys is pressed.
	// Empty list accepts any key.
	Wait(ctx context.Context, keys []string) (KeyEvent, error)

	// Clear drops all pending presses.
	Clear()
}

// Timer is the source of time for the experiment.
type Timer interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemTimer uses the wall clock.
type SystemTimer struct{}

func (SystemTimer) Now() time.Time { return time.Now() }

func (SystemTimer) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
