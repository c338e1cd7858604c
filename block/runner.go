// Package block runs blocks of trials of one condition, and the whole
// session of training and main blocks with breaks between them.
package block

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/screen"
	"github.com/sergev/libet/sink"
	"github.com/sergev/libet/trial"
)

// Range is an inclusive [Min, Max] interval of whole numbers.
type Range struct {
	Min, Max int
}

func (r Range) draw(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// Preparation is a cue shown before every trial of a condition.
type Preparation struct {
	Text     string
	Duration time.Duration
}

// Condition is one kind of block.
type Condition struct {
	Name        string
	Binding     trial.Binding
	Instruction string
	Preparation *Preparation
}

// Settings are the block parameters of a session.
type Settings struct {
	Participant    string
	HoldTime       time.Duration
	ISI            Range // seconds
	DotDelay       Range // frames
	TrainingTrials int
	BlockTrials    int
	BlockBreak     time.Duration
	ConfirmKeys    []string
	QuitKeys       []string
}

// Trial runs one trial and fills the record.
// *trial.Machine is the implementation.
type Trial interface {
	Run(ctx context.Context, rec *trial.Record, b trial.Binding) error
}

// Runner runs blocks of trials.
type Runner struct {
	settings Settings
	trial    Trial
	surface  screen.Surface
	keyboard screen.Keyboard
	timer    screen.Timer
	sinks    sink.Opener
	rand     *rand.Rand
	log      *log.Logger
}

// Env holds the collaborators of a Runner.
type Env struct {
	Surface  screen.Surface
	Keyboard screen.Keyboard
	Timer    screen.Timer
	Sinks    sink.Opener // nil discards main block records
	Rand     *rand.Rand
	Log      *log.Logger
}

// NewRunner creates a block runner.
func NewRunner(settings Settings, t Trial, env Env) *Runner {
	r := &Runner{
		settings: settings,
		trial:    t,
		surface:  env.Surface,
		keyboard: env.Keyboard,
		timer:    env.Timer,
		sinks:    env.Sinks,
		rand:     env.Rand,
		log:      env.Log,
	}
	if r.rand == nil {
		r.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.log == nil {
		r.log = logger.New("block")
	}
	return r
}

// Build creates the records of a block: dot delays are drawn per
// trial, the list is shuffled and numbered from 1.
func (r *Runner) Build(label string, training bool) []trial.Record {
	n := r.settings.BlockTrials
	if training {
		n = r.settings.TrainingTrials
	}

	records := make([]trial.Record, n)
	for i := range records {
		records[i] = trial.Record{
			Participant:    r.settings.Participant,
			Condition:      label,
			DotDelayFrames: r.settings.DotDelay.draw(r.rand),
			HoldTime:       r.settings.HoldTime,
		}
	}
	r.rand.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
	for i := range records {
		records[i].Sequence = i + 1
	}
	return records
}

// show flips a message and waits for one of the keys. A quit key
// stops the run.
func (r *Runner) show(ctx context.Context, text string, keys []string) error {
	if _, err := r.surface.Flip(ctx, screen.Message(text)); err != nil {
		return err
	}
	wait := keys
	if len(keys) > 0 {
		wait = slices.Concat(keys, r.settings.QuitKeys)
	}
	ev, err := r.keyboard.Wait(ctx, wait)
	if err != nil {
		return err
	}
	if slices.Contains(r.settings.QuitKeys, ev.Key) {
		return trial.ErrQuit
	}
	return nil
}

// Run executes one block and returns the number of confirmed trials.
// Records of main blocks are written as soon as they are confirmed.
// Training blocks are never persisted.
func (r *Runner) Run(ctx context.Context, cond Condition, label string, training bool) (int, error) {
	lg := r.log.With("condition", label, "training", training)

	if cond.Instruction != "" {
		if err := r.show(ctx, cond.Instruction, cond.Binding.Keys); err != nil {
			return 0, err
		}
	}

	// Opened after the instructions, so quitting there leaves no file
	var out sink.Sink = sink.Discard{}
	if !training && r.sinks != nil {
		s, err := r.sinks.Open(r.settings.Participant, label)
		if err != nil {
			return 0, fmt.Errorf("failed to open data file for %s: %w", label, err)
		}
		defer s.Close()
		out = s
	}

	records := r.Build(label, training)
	lg.Info("block started", "trials", len(records))

	confirmed := 0
	for i := range records {
		rec := &records[i]
		if err := r.prepare(ctx, rec, cond, training); err != nil {
			return confirmed, err
		}
		if err := r.trial.Run(ctx, rec, cond.Binding); err != nil {
			lg.Debug("trial aborted", "trial", rec.Sequence, "err", err)
			return confirmed, err
		}
		confirmed++
		lg.Debug("trial confirmed", "trial", rec.Sequence, "misses", rec.Misses)

		if training {
			if confirmed >= r.settings.TrainingTrials {
				break
			}
			continue
		}
		if err := out.Write(*rec); err != nil {
			return confirmed, fmt.Errorf("failed to save trial %d of %s: %w", rec.Sequence, label, err)
		}
	}

	lg.Info("block finished", "confirmed", confirmed)
	return confirmed, nil
}

// prepare shows the fixation cross for the inter-stimulus interval
// and the preparation cue of the condition.
func (r *Runner) prepare(ctx context.Context, rec *trial.Record, cond Condition, training bool) error {
	fixation := screen.Frame{Fixation: true}
	if training {
		fixation.Caption = "TRAINING"
	}
	if _, err := r.surface.Flip(ctx, fixation); err != nil {
		return err
	}
	rec.ISI = time.Duration(r.settings.ISI.draw(r.rand)) * time.Second
	if err := r.timer.Sleep(ctx, rec.ISI); err != nil {
		return err
	}

	if p := cond.Preparation; p != nil {
		if _, err := r.surface.Flip(ctx, screen.Message(p.Text)); err != nil {
			return err
		}
		if err := r.timer.Sleep(ctx, p.Duration); err != nil {
			return err
		}
	}
	return nil
}

// Break shows the progress between main blocks for the break
// duration, then waits until the participant is ready.
func (r *Runner) Break(ctx context.Context, completed, remaining int) error {
	text := fmt.Sprintf("You have completed %d block, %d more to go!\n\nTake a break", completed, remaining)
	if _, err := r.surface.Flip(ctx, screen.Message(text)); err != nil {
		return err
	}
	if err := r.timer.Sleep(ctx, r.settings.BlockBreak); err != nil {
		return err
	}
	r.keyboard.Clear()

	ready := fmt.Sprintf("Break is over. Press %q if you are ready to begin the new block.", r.confirmKey())
	return r.show(ctx, ready, r.settings.ConfirmKeys)
}

func (r *Runner) confirmKey() string {
	if len(r.settings.ConfirmKeys) == 0 {
		return "any key"
	}
	return r.settings.ConfirmKeys[0]
}
