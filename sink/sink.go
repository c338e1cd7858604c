// Package sink persists confirmed trial records: one CSV file per
// participant and condition, optionally mirrored to an MQTT broker.
package sink

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/sergev/libet/trial"
)

// Sink receives the records of one block.
type Sink interface {
	Write(rec trial.Record) error
	Close() error
}

// Opener creates the sink for a block.
type Opener interface {
	Open(participant, condition string) (Sink, error)
}

// Columns of the result table, in file order.
var Columns = []string{
	"id",
	"condition",
	"sequenceNumber",
	"dotDelayFrames",
	"holdTimeSeconds",
	"pressOnsetMs",
	"pressAngleDeg",
	"reportedAngleDeg",
	"reportTimeMs",
	"interStimulusIntervalSeconds",
	"startAngleDeg",
	"misses",
	"judgementErrorMs",
}

// Row formats a record as a table row matching Columns.
// Unset measurements are empty.
func Row(rec trial.Record) []string {
	return []string{
		rec.Participant,
		rec.Condition,
		strconv.Itoa(rec.Sequence),
		strconv.Itoa(rec.DotDelayFrames),
		seconds(rec.HoldTime),
		millis(rec.PressOnset),
		degrees(rec.PressAngle),
		degrees(rec.ReportedAngle),
		millis(rec.ReportTime),
		seconds(rec.ISI),
		startAngle(rec.StartAngle),
		strconv.Itoa(rec.Misses),
		millis(rec.JudgementError),
	}
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func millis(d *time.Duration) string {
	if d == nil {
		return ""
	}
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// degrees prints a truncated angle exactly. Rounding to a fixed number
// of digits would turn 359.99 into 360.0.
func degrees(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func startAngle(v float64) string {
	return strconv.FormatFloat(math.Floor(v*1000)/1000, 'f', 3, 64)
}

// Tee writes every record to all sinks.
type Tee []Sink

func (t Tee) Write(rec trial.Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TeeOpener opens a sink from each opener and combines them.
type TeeOpener []Opener

func (t TeeOpener) Open(participant, condition string) (Sink, error) {
	var tee Tee
	for _, o := range t {
		s, err := o.Open(participant, condition)
		if err != nil {
			tee.Close()
			return nil, err
		}
		tee = append(tee, s)
	}
	return tee, nil
}

// Discard drops every record.
type Discard struct{}

func (Discard) Write(trial.Record) error { return nil }
func (Discard) Close() error             { return nil }
