package trial

import "time"

// Record holds the measurements of one trial. BlockRunner creates it
// with the trial parameters filled in; Machine.Run sets the rest.
// Measurements are nil until taken.
type Record struct {
	Participant    string
	Condition      string
	Sequence       int // 1-based position within the block
	DotDelayFrames int
	HoldTime       time.Duration
	ISI            time.Duration

	StartAngle float64 // degrees, kept across miss restarts
	Misses     int

	PressOnset     *time.Duration // rotation start to qualifying press
	PressAngle     *float64       // degrees
	ReportedAngle  *float64       // degrees
	ReportTime     *time.Duration // reporting start to confirmation
	JudgementError *time.Duration // press angle minus reported angle, as time
}

// Pressed reports whether the qualifying press was captured.
func (r *Record) Pressed() bool {
	return r.PressOnset != nil
}

// Complete reports whether every measurement is present.
func (r *Record) Complete() bool {
	return r.PressOnset != nil && r.PressAngle != nil &&
		r.ReportedAngle != nil && r.ReportTime != nil
}

// setPress stores the qualifying press. Only the first call has effect.
func (r *Record) setPress(onset time.Duration, angle float64) bool {
	if r.Pressed() {
		return false
	}
	r.PressOnset = &onset
	r.PressAngle = &angle
	return true
}

func (r *Record) setReport(elapsed time.Duration, angle float64) {
	r.ReportTime = &elapsed
	r.ReportedAngle = &angle
}
