// Package trial runs one Libet clock trial: the rotating marker, the
// qualifying press, the hold delay and the reporting of the marker
// position.
package trial

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/screen"
	"github.com/sergev/libet/trigger"
)

// ErrQuit is returned when the participant asks to stop the run.
var ErrQuit = errors.New("quit requested")

const defaultMissedText = "YOU MISSED!\n\nPress the button before the end of a full rotation.\n\nPress \"space\" to redo the trial"

// Settings are fixed for the whole session.
type Settings struct {
	DegreesPerFrame  float64
	FullRotation     time.Duration
	HoldTime         time.Duration
	ArmAfterDegrees  float64 // presses before this much rotation are dropped
	Endless          bool    // no miss after a full rotation
	ResetAngleOnMiss bool    // restart from the start angle after a miss
	AngleResolution  float64 // degrees
	TimeResolution   time.Duration
	ConfirmKeys      []string
	QuitKeys         []string
	MoveKeys         map[string]float64
	Question         string
	MissedText       string
}

// Binding ties a condition to its qualifying keys and trigger codes.
type Binding struct {
	Keys      []string
	StartCode uint16
	PressCode uint16
}

// Env holds the collaborators of the state machine.
type Env struct {
	Surface  screen.Surface
	Keyboard screen.Keyboard
	Timer    screen.Timer
	Trigger  trigger.Device // nil means no device
	Rand     *rand.Rand
	Log      *log.Logger

	// StartAngle overrides the random start angle when set.
	StartAngle func() float64

	// Observe is called on every phase change.
	Observe func(Phase)
}

// Machine runs trials one after another.
type Machine struct {
	settings Settings
	env      Env
}

// New creates a state machine.
func New(settings Settings, env Env) *Machine {
	env.Trigger = trigger.OrNop(env.Trigger)
	if env.Rand == nil {
		env.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if env.Log == nil {
		env.Log = logger.New("trial")
	}
	if settings.MissedText == "" {
		settings.MissedText = defaultMissedText
	}
	return &Machine{settings: settings, env: env}
}

// Settings returns the session settings.
func (m *Machine) Settings() Settings {
	return m.settings
}

// run is the mutable part of one trial.
type run struct {
	m   *Machine
	rec *Record
	b   Binding

	origin     float64   // angle where the current rotation began
	frames     int       // frames since origin
	angle      float64   // current marker angle
	trialStart time.Time // when the start code fired
	references []float64
}

// Run executes one trial and fills rec. It returns nil once the report
// is confirmed, ErrQuit when the participant quits, or the error that
// stopped the display or the context. An aborted record must not be
// persisted.
func (m *Machine) Run(ctx context.Context, rec *Record, b Binding) error {
	r := &run{m: m, rec: rec, b: b}
	var st state = r.start()
	m.enter(st, rec)

	for {
		if err := ctx.Err(); err != nil && !st.phase().Terminal() {
			st = aborted{err: err}
			m.enter(st, rec)
		}

		var next state
		switch s := st.(type) {
		case rotating:
			next = r.rotate(ctx)
		case missed:
			next = r.miss(ctx)
		case postPress:
			next = r.continueRotation(ctx, s)
		case holding:
			next = r.hold(ctx)
		case reporting:
			next = r.report(ctx, s)
		case confirmed:
			return nil
		case aborted:
			return s.err
		}
		if next.phase() != st.phase() {
			m.enter(next, rec)
		}
		st = next
	}
}

func (m *Machine) enter(st state, rec *Record) {
	m.env.Log.Debug("phase", "phase", st.phase(), "condition", rec.Condition, "trial", rec.Sequence)
	if m.env.Observe != nil {
		m.env.Observe(st.phase())
	}
}

// fire sends a trigger code. Device failures never stop a trial.
func (m *Machine) fire(code uint16) {
	if code == 0 {
		return
	}
	if err := m.env.Trigger.Activate(code); err != nil {
		m.env.Log.Debug("trigger failed", "code", code, "err", err)
	}
}

// start performs the Idle → Rotating transition.
func (r *run) start() state {
	m := r.m
	r.rec.StartAngle = r.drawStartAngle()
	r.origin = r.rec.StartAngle
	r.angle = r.origin
	r.frames = 0
	r.references = []float64{r.rec.StartAngle, Normalize(r.rec.StartAngle + 90)}

	// Presses left from the previous trial must not count here
	m.env.Keyboard.Clear()
	r.trialStart = m.env.Timer.Now()
	m.fire(r.b.StartCode)
	return rotating{}
}

func (r *run) drawStartAngle() float64 {
	if r.m.env.StartAngle != nil {
		return Normalize(r.m.env.StartAngle())
	}
	return r.m.env.Rand.Float64() * 360
}

// accumulated returns rotation since the origin, without wrapping.
func (r *run) accumulated() float64 {
	return float64(r.frames) * r.m.settings.DegreesPerFrame
}

// advance moves the marker by one frame.
func (r *run) advance() {
	r.frames++
	r.angle = Normalize(r.origin + r.accumulated())
}

func (r *run) rotationFrame() screen.Frame {
	return screen.Frame{
		Dial:       true,
		Fixation:   true,
		Marker:     true,
		Angle:      r.angle,
		References: r.references,
	}
}

func (r *run) isQuit(key string) bool {
	return slices.Contains(r.m.settings.QuitKeys, key)
}

// rotate handles one frame of the Rotating phase.
func (r *run) rotate(ctx context.Context) state {
	m := r.m
	r.advance()
	if _, err := m.env.Surface.Flip(ctx, r.rotationFrame()); err != nil {
		return aborted{err: err}
	}

	events, err := m.env.Keyboard.Poll(slices.Concat(r.b.Keys, m.settings.QuitKeys))
	if err != nil {
		return aborted{err: err}
	}
	for _, ev := range events {
		if r.isQuit(ev.Key) {
			return aborted{err: ErrQuit}
		}
	}

	// Until armed, presses are dropped
	if len(events) > 0 && r.accumulated() > m.settings.ArmAfterDegrees {
		// First press wins, later ones in the same poll are ignored
		ev := events[0]
		onset := TruncateDuration(ev.At.Sub(r.trialStart), m.settings.TimeResolution)
		angle := TruncateAngle(r.angle, m.settings.AngleResolution)
		if r.rec.setPress(onset, angle) {
			m.fire(r.b.PressCode)
			m.env.Log.Debug("press", "key", ev.Key, "onset", onset, "angle", angle)
			if r.rec.DotDelayFrames <= 0 {
				return holding{}
			}
			return postPress{framesRemaining: r.rec.DotDelayFrames}
		}
	}

	if !m.settings.Endless && r.accumulated() >= 360 {
		return missed{}
	}
	return rotating{}
}

// miss shows the notice, waits for acknowledgement and restarts the
// rotation. The start angle never changes, and press onsets keep counting
// from the start code of the trial.
func (r *run) miss(ctx context.Context) state {
	m := r.m
	if _, err := m.env.Surface.Flip(ctx, screen.Message(m.settings.MissedText)); err != nil {
		return aborted{err: err}
	}
	ev, err := m.env.Keyboard.Wait(ctx, slices.Concat(m.settings.ConfirmKeys, m.settings.QuitKeys))
	if err != nil {
		return aborted{err: err}
	}
	if r.isQuit(ev.Key) {
		return aborted{err: ErrQuit}
	}

	r.rec.Misses++
	if m.settings.ResetAngleOnMiss {
		r.angle = r.rec.StartAngle
	}
	r.origin = r.angle
	r.frames = 0
	m.env.Keyboard.Clear()
	m.env.Log.Debug("missed", "condition", r.rec.Condition, "trial", r.rec.Sequence, "misses", r.rec.Misses)
	return rotating{}
}

// continueRotation keeps the marker moving after the press.
func (r *run) continueRotation(ctx context.Context, s postPress) state {
	m := r.m
	if s.framesRemaining <= 0 {
		return holding{}
	}
	r.advance()
	if _, err := m.env.Surface.Flip(ctx, r.rotationFrame()); err != nil {
		return aborted{err: err}
	}
	events, err := m.env.Keyboard.Poll(m.settings.QuitKeys)
	if err != nil {
		return aborted{err: err}
	}
	if len(events) > 0 {
		return aborted{err: ErrQuit}
	}
	if s.framesRemaining == 1 {
		return holding{}
	}
	return postPress{framesRemaining: s.framesRemaining - 1}
}

// hold hides the marker for the hold time.
func (r *run) hold(ctx context.Context) state {
	m := r.m
	if _, err := m.env.Surface.Flip(ctx, screen.Frame{Dial: true, Fixation: true}); err != nil {
		return aborted{err: err}
	}
	if err := m.env.Timer.Sleep(ctx, m.settings.HoldTime); err != nil {
		return aborted{err: err}
	}
	m.env.Keyboard.Clear()
	return reporting{started: m.env.Timer.Now()}
}

// report handles one command of the Reporting phase.
func (r *run) report(ctx context.Context, s reporting) state {
	m := r.m
	frame := screen.Frame{
		Dial:     true,
		Fixation: true,
		Marker:   true,
		Angle:    r.angle,
		Caption:  m.settings.Question,
	}
	if _, err := m.env.Surface.Flip(ctx, frame); err != nil {
		return aborted{err: err}
	}

	keys := slices.Concat(m.settings.ConfirmKeys, m.settings.QuitKeys)
	for key := range m.settings.MoveKeys {
		keys = append(keys, key)
	}
	ev, err := m.env.Keyboard.Wait(ctx, keys)
	if err != nil {
		return aborted{err: err}
	}

	switch {
	case r.isQuit(ev.Key):
		return aborted{err: ErrQuit}
	case slices.Contains(m.settings.ConfirmKeys, ev.Key):
		r.finish(ev.At.Sub(s.started))
		return confirmed{}
	}
	if step, ok := m.settings.MoveKeys[ev.Key]; ok {
		r.angle = Normalize(r.angle + step)
	}
	return s
}

// finish stores the report and derived values.
func (r *run) finish(elapsed time.Duration) {
	set := r.m.settings
	r.rec.setReport(
		TruncateDuration(elapsed, set.TimeResolution),
		TruncateAngle(r.angle, set.AngleResolution),
	)

	// Positive when the reported intention precedes the press
	if r.rec.PressAngle != nil && set.FullRotation > 0 {
		diff := signedDifference(*r.rec.PressAngle, *r.rec.ReportedAngle)
		w := time.Duration(diff / 360 * float64(set.FullRotation))
		if w < 0 {
			w = -TruncateDuration(-w, set.TimeResolution)
		} else {
			w = TruncateDuration(w, set.TimeResolution)
		}
		r.rec.JudgementError = &w
	}
}
