package experiment

import (
	"github.com/sergev/libet/block"
	"github.com/sergev/libet/config"
	"github.com/sergev/libet/frameclock"
	"github.com/sergev/libet/trial"
)

// trialSettings combines the configuration with the measured clock.
func trialSettings(c *config.Config, p *config.Profile, clock frameclock.Clock) trial.Settings {
	return trial.Settings{
		DegreesPerFrame:  clock.DegreesPerFrame,
		FullRotation:     p.FullRotation,
		HoldTime:         p.HoldTime,
		ArmAfterDegrees:  p.ArmAfterDegrees,
		Endless:          p.Endless,
		ResetAngleOnMiss: p.ResetAngleOnMiss,
		AngleResolution:  c.Resolution.Angle,
		TimeResolution:   c.Resolution.Time,
		ConfirmKeys:      c.ConfirmKeys,
		QuitKeys:         c.QuitKeys,
		MoveKeys:         c.MoveKeys,
		Question:         p.Question,
		MissedText:       p.MissedText,
	}
}

func blockSettings(c *config.Config, p *config.Profile, participant string) block.Settings {
	return block.Settings{
		Participant:    participant,
		HoldTime:       p.HoldTime,
		ISI:            block.Range{Min: p.ISI[0], Max: p.ISI[1]},
		DotDelay:       block.Range{Min: p.DotDelay[0], Max: p.DotDelay[1]},
		TrainingTrials: p.TrainingTrials,
		BlockTrials:    p.BlockTrials,
		BlockBreak:     p.BlockBreak,
		ConfirmKeys:    c.ConfirmKeys,
		QuitKeys:       c.QuitKeys,
	}
}

func blockCondition(c *config.Condition) block.Condition {
	bc := block.Condition{
		Name: c.Name,
		Binding: trial.Binding{
			Keys:      c.Keys,
			StartCode: c.StartCode,
			PressCode: c.PressCode,
		},
		Instruction: c.Instruction,
	}
	if c.Preparation != nil {
		bc.Preparation = &block.Preparation{
			Text:     c.Preparation.Text,
			Duration: c.Preparation.Duration,
		}
	}
	return bc
}

// sessionPlan lists training and main conditions of a profile.
func sessionPlan(p *config.Profile) block.Plan {
	plan := block.Plan{
		TrainingRepetitions: p.TrainingRepetitions,
		BlockRepetitions:    p.BlockRepetitions,
	}
	for _, c := range p.Training() {
		plan.Training = append(plan.Training, blockCondition(c))
	}
	for i := range p.Condition {
		plan.Conditions = append(plan.Conditions, blockCondition(&p.Condition[i]))
	}
	return plan
}
