package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/trial"
)

const publishTimeout = 2 * time.Second

// Message is the JSON form of a record published to the broker.
type Message struct {
	Session        string   `json:"session"`
	Participant    string   `json:"id"`
	Condition      string   `json:"condition"`
	Sequence       int      `json:"sequenceNumber"`
	DotDelayFrames int      `json:"dotDelayFrames"`
	HoldTime       float64  `json:"holdTimeSeconds"`
	PressOnset     *int64   `json:"pressOnsetMs"`
	PressAngle     *float64 `json:"pressAngleDeg"`
	ReportedAngle  *float64 `json:"reportedAngleDeg"`
	ReportTime     *int64   `json:"reportTimeMs"`
	ISI            float64  `json:"interStimulusIntervalSeconds"`
	StartAngle     float64  `json:"startAngleDeg"`
	Misses         int      `json:"misses"`
	JudgementError *int64   `json:"judgementErrorMs"`
}

func optionalMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// NewMessage converts a record for publishing.
func NewMessage(session string, rec trial.Record) Message {
	return Message{
		Session:        session,
		Participant:    rec.Participant,
		Condition:      rec.Condition,
		Sequence:       rec.Sequence,
		DotDelayFrames: rec.DotDelayFrames,
		HoldTime:       rec.HoldTime.Seconds(),
		PressOnset:     optionalMillis(rec.PressOnset),
		PressAngle:     rec.PressAngle,
		ReportedAngle:  rec.ReportedAngle,
		ReportTime:     optionalMillis(rec.ReportTime),
		ISI:            rec.ISI.Seconds(),
		StartAngle:     rec.StartAngle,
		Misses:         rec.Misses,
		JudgementError: optionalMillis(rec.JudgementError),
	}
}

// Publisher is the part of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT mirrors records to a broker. The CSV files stay the primary
// copy: publish failures are logged and never stop the session.
type MQTT struct {
	client  Publisher
	topic   string
	session string
	log     *log.Logger
	close   func()
}

// DialMQTT connects to the broker.
func DialMQTT(broker, clientID, topic, session string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}

	m := NewMQTT(client, topic, session)
	m.close = func() { client.Disconnect(250) }
	return m, nil
}

// NewMQTT mirrors records through an existing publisher.
func NewMQTT(client Publisher, topic, session string) *MQTT {
	return &MQTT{
		client:  client,
		topic:   topic,
		session: session,
		log:     logger.New("mqtt"),
	}
}

// Topic returns the topic records of a block are published to.
func (m *MQTT) Topic(participant, condition string) string {
	return fmt.Sprintf("%s/%s/%s", m.topic, participant, condition)
}

// Open implements Opener.
func (m *MQTT) Open(participant, condition string) (Sink, error) {
	return &mqttSink{m: m, topic: m.Topic(participant, condition)}, nil
}

// Disconnect closes the broker connection.
func (m *MQTT) Disconnect() {
	if m.close != nil {
		m.close()
	}
}

type mqttSink struct {
	m     *MQTT
	topic string
}

func (s *mqttSink) Write(rec trial.Record) error {
	payload, err := json.Marshal(NewMessage(s.m.session, rec))
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	token := s.m.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.m.log.Warn("publish timed out", "topic", s.topic, "trial", rec.Sequence)
		return nil
	}
	if err := token.Error(); err != nil {
		s.m.log.Warn("publish failed", "topic", s.topic, "trial", rec.Sequence, "err", err)
	}
	return nil
}

func (s *mqttSink) Close() error { return nil }
