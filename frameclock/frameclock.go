// Package frameclock measures the display refresh and converts the
// duration of one marker revolution into a step per frame.
package frameclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sergev/libet/screen"
)

// DefaultSamples is the number of frame periods averaged by Measure.
const DefaultSamples = 100

// ErrNoFrameTiming means the display gave no usable frame timing.
var ErrNoFrameTiming = errors.New("frame timing unavailable")

// Clock is the timing constant of a session.
type Clock struct {
	FrameRateHz     float64
	FramePeriod     time.Duration
	FullRotation    time.Duration
	DegreesPerFrame float64
}

// New derives the step per frame from a known frame rate:
// 360 / fullRotationSeconds / frameRateHz.
func New(frameRateHz float64, fullRotation time.Duration) (Clock, error) {
	if frameRateHz <= 0 {
		return Clock{}, fmt.Errorf("%w: frame rate %g Hz", ErrNoFrameTiming, frameRateHz)
	}
	if fullRotation <= 0 {
		return Clock{}, fmt.Errorf("invalid rotation duration %v", fullRotation)
	}
	return Clock{
		FrameRateHz:     frameRateHz,
		FramePeriod:     time.Duration(float64(time.Second) / frameRateHz),
		FullRotation:    fullRotation,
		DegreesPerFrame: 360 / fullRotation.Seconds() / frameRateHz,
	}, nil
}

// Measure shows samples+1 blank frames and averages the intervals
// between their flips.
func Measure(ctx context.Context, s screen.Surface, samples int, fullRotation time.Duration) (Clock, error) {
	if samples <= 0 {
		return Clock{}, fmt.Errorf("%w: no samples requested", ErrNoFrameTiming)
	}

	first, err := s.Flip(ctx, screen.Frame{})
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %v", ErrNoFrameTiming, err)
	}
	last := first
	for i := 0; i < samples; i++ {
		t, err := s.Flip(ctx, screen.Frame{})
		if err != nil {
			return Clock{}, fmt.Errorf("%w: %v", ErrNoFrameTiming, err)
		}
		if !t.After(last) {
			return Clock{}, fmt.Errorf("%w: flip %d did not advance time", ErrNoFrameTiming, i+1)
		}
		last = t
	}

	average := last.Sub(first) / time.Duration(samples)
	if average <= 0 {
		return Clock{}, fmt.Errorf("%w: average period %v", ErrNoFrameTiming, average)
	}
	return New(float64(time.Second)/float64(average), fullRotation)
}

// FramesPerRotation returns how many frames one revolution takes.
func (c Clock) FramesPerRotation() float64 {
	if c.DegreesPerFrame <= 0 {
		return 0
	}
	return 360 / c.DegreesPerFrame
}

func (c Clock) String() string {
	return fmt.Sprintf("%.2f Hz, %.4f deg/frame, %v per rotation", c.FrameRateHz, c.DegreesPerFrame, c.FullRotation)
}
