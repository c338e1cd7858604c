package sink

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/trial"
)

func durationPtr(d time.Duration) *time.Duration { return &d }
func floatPtr(v float64) *float64                { return &v }

func sampleRecord(seq int) trial.Record {
	return trial.Record{
		Participant:    "17",
		Condition:      "Finger_press2",
		Sequence:       seq,
		DotDelayFrames: 2,
		HoldTime:       4 * time.Second,
		ISI:            6 * time.Second,
		StartAngle:     123.4567,
		Misses:         1,
		PressOnset:     durationPtr(666 * time.Millisecond),
		PressAngle:     floatPtr(60),
		ReportedAngle:  floatPtr(57.5),
		ReportTime:     durationPtr(2345 * time.Millisecond),
		JudgementError: durationPtr(27 * time.Millisecond),
	}
}

func TestRow(t *testing.T) {
	row := Row(sampleRecord(3))
	require.Len(t, row, len(Columns))
	assert.Equal(t, []string{
		"17", "Finger_press2", "3", "2", "4", "666", "60", "57.5",
		"2345", "6", "123.456", "1", "27",
	}, row)
}

func TestRowAnglesStayBelowFullTurn(t *testing.T) {
	rec := sampleRecord(1)
	rec.PressAngle = floatPtr(trial.TruncateAngle(359.996, 0.01))
	rec.ReportedAngle = floatPtr(trial.TruncateAngle(359.9999, 0.001))
	rec.StartAngle = 359.9996

	row := Row(rec)
	assert.Equal(t, "359.99", row[6])
	assert.Equal(t, "359.999", row[7])
	assert.Equal(t, "359.999", row[10])

	payload, err := json.Marshal(NewMessage("s", rec))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"pressAngleDeg":359.99,`)
}

func TestRowUnsetFields(t *testing.T) {
	row := Row(trial.Record{Participant: "1", Condition: "Breath_in1", HoldTime: 4 * time.Second})
	assert.Equal(t, "", row[5])
	assert.Equal(t, "", row[6])
	assert.Equal(t, "", row[7])
	assert.Equal(t, "", row[8])
	assert.Equal(t, "", row[12])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	o, err := NewCSVOpener(dir, "libetrandom")
	require.NoError(t, err)

	path := o.Path("17", "Finger_press2")
	assert.Equal(t, filepath.Join(dir, "libetrandom_17_Finger_press2.csv"), path)

	s, err := o.Open("17", "Finger_press2")
	require.NoError(t, err)
	require.NoError(t, s.Write(sampleRecord(1)))

	// Rows are on disk before the sink is closed
	rows := readCSV(t, path)
	assert.Len(t, rows, 2)

	require.NoError(t, s.Write(sampleRecord(2)))
	require.NoError(t, s.Close())

	// Reopening appends without a second header
	s, err = o.Open("17", "Finger_press2")
	require.NoError(t, err)
	require.NoError(t, s.Write(sampleRecord(3)))
	require.NoError(t, s.Close())

	rows = readCSV(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "1", rows[1][2])
	assert.Equal(t, "3", rows[3][2])
}

func TestCSVUnwritableDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewCSVOpener(filepath.Join(file, "data"), "x")
	assert.Error(t, err)
}

type memSink struct {
	rows   []trial.Record
	closed bool
	err    error
}

func (m *memSink) Write(rec trial.Record) error {
	m.rows = append(m.rows, rec)
	return m.err
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

type memOpener struct {
	sink *memSink
	err  error
}

func (o *memOpener) Open(string, string) (Sink, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.sink, nil
}

func TestCSVLogsWhereConfiguredAtOpen(t *testing.T) {
	dir := t.TempDir()
	o, err := NewCSVOpener(dir, "libetrandom")
	require.NoError(t, err)

	// Logging moves to a file after the opener exists, as in a session
	logPath := filepath.Join(dir, "session.log")
	require.NoError(t, logger.Configure("debug", logPath))
	t.Cleanup(func() { _ = logger.Configure("", "") })

	s, err := o.Open("17", "Finger_press1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "opened")
	assert.Contains(t, string(data), "libetrandom_17_Finger_press1.csv")
}

func TestTee(t *testing.T) {
	a, b := &memSink{}, &memSink{err: errors.New("disk full")}
	tee := Tee{a, b}

	err := tee.Write(sampleRecord(1))
	assert.EqualError(t, err, "disk full")
	assert.Len(t, a.rows, 1)
	assert.Len(t, b.rows, 1)

	require.NoError(t, tee.Close())
	assert.True(t, a.closed && b.closed)
}

func TestTeeOpenerFailure(t *testing.T) {
	a := &memSink{}
	o := TeeOpener{&memOpener{sink: a}, &memOpener{err: errors.New("nope")}}

	_, err := o.Open("1", "c")
	assert.EqualError(t, err, "nope")
	assert.True(t, a.closed)
}

// fakeToken is an already completed token.
type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{}          { c := make(chan struct{}); close(c); return c }
func (t fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.msgs = append(p.msgs, published{topic: topic, payload: payload.([]byte)})
	return fakeToken{err: p.err}
}

func TestMQTTPublish(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, "libet", "5f0c")
	m.log = logger.Discard()

	s, err := m.Open("17", "Finger_press2")
	require.NoError(t, err)
	require.NoError(t, s.Write(sampleRecord(4)))
	require.NoError(t, s.Close())

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "libet/17/Finger_press2", pub.msgs[0].topic)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &msg))
	assert.Equal(t, "5f0c", msg.Session)
	assert.Equal(t, 4, msg.Sequence)
	assert.Equal(t, int64(666), *msg.PressOnset)
	assert.Equal(t, 57.5, *msg.ReportedAngle)
	assert.Equal(t, 4.0, msg.HoldTime)
}

func TestMQTTFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	m := NewMQTT(pub, "libet", "s")
	m.log = logger.Discard()

	s, err := m.Open("1", "c")
	require.NoError(t, err)
	assert.NoError(t, s.Write(sampleRecord(1)))
}
