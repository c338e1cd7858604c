package trial

import "time"

// Phase names the states of a trial.
type Phase int

const (
	Idle Phase = iota
	Rotating
	Missed
	PostPressRotating
	HoldDelay
	Reporting
	Confirmed
	Aborted
)

var phaseNames = [...]string{
	Idle:              "idle",
	Rotating:          "rotating",
	Missed:            "missed",
	PostPressRotating: "post-press",
	HoldDelay:         "hold",
	Reporting:         "reporting",
	Confirmed:         "confirmed",
	Aborted:           "aborted",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether no transition leaves the phase.
func (p Phase) Terminal() bool {
	return p == Confirmed || p == Aborted
}

// state is the current phase with the data only that phase needs.
type state interface {
	phase() Phase
}

type rotating struct{}

type missed struct{}

type postPress struct {
	framesRemaining int
}

type holding struct{}

type reporting struct {
	started time.Time
}

type confirmed struct{}

type aborted struct {
	err error
}

func (rotating) phase() Phase  { return Rotating }
func (missed) phase() Phase    { return Missed }
func (postPress) phase() Phase { return PostPressRotating }
func (holding) phase() Phase   { return HoldDelay }
func (reporting) phase() Phase { return Reporting }
func (confirmed) phase() Phase { return Confirmed }
func (aborted) phase() Phase   { return Aborted }
