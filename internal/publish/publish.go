// Package publish announces finished calibrations to other services over MQTT.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/camcal/internal/store"
)

// DefaultTimeout bounds connect and publish round trips.
const DefaultTimeout = 5 * time.Second

// Publisher sends a calibration record somewhere.
type Publisher interface {
	Publish(c *store.Calibration) error
	Close()
}

// Message is the payload published for each calibration.
type Message struct {
	Type        string             `json:"type"`
	Calibration *store.Calibration `json:"calibration"`
	Timestamp   int64              `json:"timestamp"`
}

// Encode builds the JSON payload for c.
func Encode(c *store.Calibration, now time.Time) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil calibration")
	}
	return json.Marshal(Message{
		Type:        "calibration",
		Calibration: c,
		Timestamp:   now.UnixMilli(),
	})
}

// MQTTPublisher publishes retained QoS 1 messages so late subscribers get the
// current calibration.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to broker.
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(DefaultTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(DefaultTimeout) {
		return nil, fmt.Errorf("MQTT connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", err)
	}

	log.Printf("connected to MQTT broker %s", broker)
	return &MQTTPublisher{client: client, topic: topic}, nil
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(c *store.Calibration) error {
	payload, err := Encode(c, time.Now())
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(DefaultTimeout) {
		return fmt.Errorf("MQTT publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish error: %w", err)
	}
	return nil
}

// Close disconnects, allowing in-flight messages 250ms to finish.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// Recorder keeps published calibrations in memory.
type Recorder struct {
	mu        sync.Mutex
	published []*store.Calibration
	err       error
	closed    bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetError makes every following Publish fail with err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Publish implements Publisher.
func (r *Recorder) Publish(c *store.Calibration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, c)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Published returns what has been published so far.
func (r *Recorder) Published() []*store.Calibration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*store.Calibration, len(r.published))
	copy(out, r.published)
	return out
}
