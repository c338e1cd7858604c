// Package screentest provides a scripted surface, keyboard and timer
// running on simulated time, for tests of code driving the display.
package screentest

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sergev/libet/screen"
)

// ErrNoInput is returned by Wait when the script has no answer left.
var ErrNoInput = errors.New("screentest: no scripted key left")

// Env implements screen.Surface, screen.Keyboard and screen.Timer.
// Every flip advances the simulated clock by one frame period.
type Env struct {
	Period   time.Duration // frame period
	KeyDelay time.Duration // time spent before each scripted answer

	Frames    []screen.Frame
	FlipTimes []time.Time
	Slept     []time.Duration
	Clears    int
	Closed    bool

	// FailFlip makes every flip fail once set
	FailFlip error

	now     time.Time
	presses map[int][]string
	answers []string
	polled  int
}

// New creates an environment with the given frame period.
func New(period time.Duration) *Env {
	return &Env{
		Period:  period,
		now:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		presses: make(map[int][]string),
	}
}

// PressAt schedules keys pressed right after flip number n (1-based).
// They become visible to the first Poll following that flip.
func (e *Env) PressAt(n int, keys ...string) {
	e.presses[n] = append(e.presses[n], keys...)
}

// Answer queues keys returned by subsequent Wait calls, in order.
func (e *Env) Answer(keys ...string) {
	e.answers = append(e.answers, keys...)
}

// Pending returns the number of unused answers.
func (e *Env) Pending() int {
	return len(e.answers)
}

// Flips returns the number of frames shown so far.
func (e *Env) Flips() int {
	return len(e.Frames)
}

// Flip implements screen.Surface.
func (e *Env) Flip(ctx context.Context, f screen.Frame) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if e.FailFlip != nil {
		return time.Time{}, e.FailFlip
	}
	e.now = e.now.Add(e.Period)
	e.Frames = append(e.Frames, f)
	e.FlipTimes = append(e.FlipTimes, e.now)
	return e.now, nil
}

// Close implements screen.Surface.
func (e *Env) Close() error {
	e.Closed = true
	return nil
}

// Poll implements screen.Keyboard.
func (e *Env) Poll(keys []string) ([]screen.KeyEvent, error) {
	var events []screen.KeyEvent
	for n := e.polled + 1; n <= len(e.Frames); n++ {
		for _, key := range e.presses[n] {
			if slices.Contains(keys, key) {
				events = append(events, screen.KeyEvent{Key: key, At: e.FlipTimes[n-1]})
			}
		}
	}
	e.polled = len(e.Frames)
	return events, nil
}

// Wait implements screen.Keyboard. Answers not in the key list are
// skipped, as a real keyboard ignores them.
func (e *Env) Wait(ctx context.Context, keys []string) (screen.KeyEvent, error) {
	for len(e.answers) > 0 {
		if err := ctx.Err(); err != nil {
			return screen.KeyEvent{}, err
		}
		key := e.answers[0]
		e.answers = e.answers[1:]
		e.now = e.now.Add(e.KeyDelay)
		if len(keys) == 0 || slices.Contains(keys, key) {
			return screen.KeyEvent{Key: key, At: e.now}, nil
		}
	}
	return screen.KeyEvent{}, ErrNoInput
}

// Clear implements screen.Keyboard.
func (e *Env) Clear() {
	e.Clears++
	e.polled = len(e.Frames)
}

// Now implements screen.Timer.
func (e *Env) Now() time.Time {
	return e.now
}

// Sleep implements screen.Timer.
func (e *Env) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.Slept = append(e.Slept, d)
	e.now = e.now.Add(d)
	return nil
}
