package block

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/screen/screentest"
	"github.com/sergev/libet/trial"
)

var (
	breathIn  = Condition{Name: "Breath_in", Binding: trial.Binding{Keys: []string{"left"}}}
	breathOut = Condition{Name: "Breath_out", Binding: trial.Binding{Keys: []string{"left"}}}
)

func testPlan() Plan {
	return Plan{
		Training:            []Condition{breathIn},
		Conditions:          []Condition{breathIn, breathOut},
		TrainingRepetitions: 1,
		BlockRepetitions:    2,
	}
}

func TestSessionOrder(t *testing.T) {
	r, _ := newRunner(testSettings(), &fakeTrial{}, nil)
	s := NewSession(r, testPlan())

	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err)

	training, main := s.Order()
	require.Len(t, training, 1)
	assert.Equal(t, "Breath_in1", training[0].Label)
	assert.True(t, training[0].Training)

	var labels []string
	for _, b := range main {
		assert.False(t, b.Training)
		labels = append(labels, b.Label)
	}
	sort.Strings(labels)
	assert.Equal(t, []string{"Breath_in1", "Breath_in2", "Breath_out1", "Breath_out2"}, labels)
}

func TestSessionRun(t *testing.T) {
	opener := newMemOpener()
	ft := &fakeTrial{}
	r, env := newRunner(testSettings(), ft, opener)
	s := NewSession(r, testPlan())

	// Training over, three breaks, thank you
	env.Answer("x", "space", "space", "space", "x")

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 4, s.Completed())
	assert.Equal(t, 3+4*5, ft.calls)
	assert.Len(t, opener.order, 4)
	for _, label := range opener.order {
		assert.Len(t, opener.sinks[label].rows, 5)
		assert.True(t, opener.sinks[label].closed)
	}
	assert.Zero(t, env.Pending())

	var texts []string
	for _, f := range env.Frames {
		if f.Text != "" {
			texts = append(texts, f.Text)
		}
	}
	assert.Equal(t, []string{
		trainingOverText,
		"You have completed 1 block, 3 more to go!\n\nTake a break",
		"Break is over. Press \"space\" if you are ready to begin the new block.",
		"You have completed 2 block, 2 more to go!\n\nTake a break",
		"Break is over. Press \"space\" if you are ready to begin the new block.",
		"You have completed 3 block, 1 more to go!\n\nTake a break",
		"Break is over. Press \"space\" if you are ready to begin the new block.",
		thankYouText,
	}, texts)
}

func TestSessionQuitDuringBreak(t *testing.T) {
	opener := newMemOpener()
	r, env := newRunner(testSettings(), &fakeTrial{}, opener)
	s := NewSession(r, testPlan())
	env.Answer("x", "escape")

	err := s.Run(context.Background())
	assert.True(t, Quit(err))
	assert.Equal(t, 1, s.Completed())
	assert.Len(t, opener.order, 1)
}

func TestSessionWithoutTraining(t *testing.T) {
	plan := testPlan()
	plan.TrainingRepetitions = 0
	plan.BlockRepetitions = 1
	plan.Conditions = plan.Conditions[:1]
	r, env := newRunner(testSettings(), &fakeTrial{}, newMemOpener())
	env.Answer("x")

	require.NoError(t, NewSession(r, plan).Run(context.Background()))
	for _, f := range env.Frames {
		assert.NotEqual(t, trainingOverText, f.Text)
	}
}

// TestSessionWithMachine drives the real state machine: the qualifying
// key is held on every frame and every report is confirmed at once.
func TestSessionWithMachine(t *testing.T) {
	env := screentest.New(time.Second / 60)
	for n := 1; n <= 20000; n++ {
		env.PressAt(n, "left")
	}

	machine := trial.New(trial.Settings{
		DegreesPerFrame: 1.5,
		FullRotation:    4 * time.Second,
		HoldTime:        time.Second,
		AngleResolution: 0.1,
		TimeResolution:  time.Millisecond,
		ConfirmKeys:     []string{"space"},
		QuitKeys:        []string{"escape"},
		MoveKeys:        map[string]float64{"right": 3},
	}, trial.Env{
		Surface:  env,
		Keyboard: env,
		Timer:    env,
		Rand:     rand.New(rand.NewSource(9)),
		Log:      logger.Discard(),
	})

	settings := testSettings()
	settings.TrainingTrials = 2
	settings.BlockTrials = 3
	settings.DotDelay = Range{}
	opener := newMemOpener()
	r := NewRunner(settings, machine, Env{
		Surface:  env,
		Keyboard: env,
		Timer:    env,
		Sinks:    opener,
		Rand:     rand.New(rand.NewSource(9)),
		Log:      logger.Discard(),
	})

	plan := Plan{
		Training:            []Condition{fingerPress},
		Conditions:          []Condition{fingerPress},
		TrainingRepetitions: 1,
		BlockRepetitions:    1,
	}

	// Two training reports, training over, three reports, thank you
	env.Answer("space", "space", "x", "right", "space", "space", "space", "x")

	require.NoError(t, NewSession(r, plan).Run(context.Background()))

	rows := opener.sinks["Finger_press1"].rows
	require.Len(t, rows, 3)
	for i, rec := range rows {
		require.True(t, rec.Complete())
		assert.Equal(t, i+1, rec.Sequence)

		// The key is already down on the first rotation frame
		assert.Equal(t, 16*time.Millisecond, *rec.PressOnset)
		assert.Zero(t, rec.Misses)
		assert.True(t, rec.StartAngle >= 0 && rec.StartAngle < 360)
	}

	// The first report was moved 3 degrees past the press
	assert.InDelta(t, float64(-33*time.Millisecond), float64(*rows[0].JudgementError), float64(2*time.Millisecond))
	assert.Equal(t, time.Duration(0), *rows[1].JudgementError)
}

func TestQuit(t *testing.T) {
	assert.True(t, Quit(trial.ErrQuit))
	assert.False(t, Quit(errors.New("other")))
}
