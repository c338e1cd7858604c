package block

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/sergev/libet/screen"
	"github.com/sergev/libet/trial"
)

const (
	trainingOverText = "Training is over\n\nPress any key when you are ready..."
	thankYouText     = "This part of the experiment is over now\n\nThank you!"
)

// Plan lists the blocks of a session.
type Plan struct {
	Training            []Condition
	Conditions          []Condition
	TrainingRepetitions int
	BlockRepetitions    int
}

// Block is one entry of the session order.
type Block struct {
	Condition Condition
	Label     string // condition name with repetition number, e.g. Finger_press2
	Training  bool
}

// Session runs the training blocks, then the main blocks in random
// order with breaks between them.
type Session struct {
	ID     string
	runner *Runner
	plan   Plan

	completed int // main blocks done
}

// NewSession creates a session with a fresh identifier.
func NewSession(runner *Runner, plan Plan) *Session {
	return &Session{
		ID:     uuid.New().String(),
		runner: runner,
		plan:   plan,
	}
}

// Completed returns the number of finished main blocks.
func (s *Session) Completed() int {
	return s.completed
}

func label(c Condition, repetition int) string {
	return c.Name + strconv.Itoa(repetition+1)
}

// Order returns the training blocks followed by the shuffled main blocks.
func (s *Session) Order() (training, main []Block) {
	for _, c := range s.plan.Training {
		for rep := 0; rep < s.plan.TrainingRepetitions; rep++ {
			training = append(training, Block{Condition: c, Label: label(c, rep), Training: true})
		}
	}
	for _, c := range s.plan.Conditions {
		for rep := 0; rep < s.plan.BlockRepetitions; rep++ {
			main = append(main, Block{Condition: c, Label: label(c, rep)})
		}
	}
	s.runner.rand.Shuffle(len(main), func(i, j int) {
		main[i], main[j] = main[j], main[i]
	})
	return training, main
}

// Run executes the whole session. It stops at the first error;
// trial.ErrQuit means the participant asked to stop.
func (s *Session) Run(ctx context.Context) error {
	r := s.runner
	lg := r.log.With("session", s.ID, "participant", r.settings.Participant)
	training, main := s.Order()
	lg.Info("session started", "training", len(training), "main", len(main))

	for _, b := range training {
		if _, err := r.Run(ctx, b.Condition, b.Label, true); err != nil {
			return err
		}
	}
	if len(training) > 0 {
		if err := r.show(ctx, trainingOverText, nil); err != nil {
			return err
		}
	}

	for i, b := range main {
		if i > 0 {
			if err := r.Break(ctx, s.completed, len(main)-s.completed); err != nil {
				return err
			}
		}
		if _, err := r.Run(ctx, b.Condition, b.Label, false); err != nil {
			return err
		}
		s.completed++
	}
	lg.Info("session finished", "blocks", s.completed)

	// Any key closes the last screen, quit included
	if _, err := r.surface.Flip(ctx, screen.Message(thankYouText)); err != nil {
		return err
	}
	if _, err := r.keyboard.Wait(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Quit reports whether err means the participant stopped the run.
func Quit(err error) bool {
	return errors.Is(err, trial.ErrQuit)
}
