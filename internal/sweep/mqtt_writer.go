package sweep

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// DefaultMQTTTopic prefixes every published topic unless overridden.
const DefaultMQTTTopic = "netsim/sweeps"

const mqttPublishTimeout = 5 * time.Second

// mqttPublisher is the part of mqtt.Client the writer needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTWriter publishes results to <prefix>/<sweep>/runs/<index> and a final
// summary to <prefix>/<sweep>/summary.
type MQTTWriter struct {
	client mqttPublisher
	conn   mqtt.Client
	prefix string
	sweep  string
}

// sweepSummary is the retained end-of-sweep message.
type sweepSummary struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Runs       int            `json:"runs"`
	Counts     map[Status]int `json:"counts"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Best       *Point         `json:"best_throughput_point,omitempty"`
}

// NewMQTTWriter connects to broker (e.g. tcp://localhost:1883).
func NewMQTTWriter(broker, prefix string) (*MQTTWriter, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("netsim-sweep-" + uuid.NewString()[:8])
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); !token.WaitTimeout(mqttPublishTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, err)
	}
	w := newMQTTWriter(c, prefix)
	w.conn = c
	return w, nil
}

func newMQTTWriter(p mqttPublisher, prefix string) *MQTTWriter {
	if prefix == "" {
		prefix = DefaultMQTTTopic
	}
	return &MQTTWriter{client: p, prefix: strings.TrimSuffix(prefix, "/")}
}

func (w *MQTTWriter) StartSweep(info SweepInfo) error {
	w.sweep = info.Name
	return nil
}

func (w *MQTTWriter) topic(sweep string, parts ...string) string {
	if sweep == "" {
		sweep = "default"
	}
	return strings.Join(append([]string{w.prefix, sweep}, parts...), "/")
}

// WriteResult publishes one result with QoS 1.
func (w *MQTTWriter) WriteResult(r RunResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	sweep := r.Sweep
	if sweep == "" {
		sweep = w.sweep
	}
	return w.publish(w.topic(sweep, "runs", fmt.Sprint(r.Index)), false, payload)
}

// EndSweep publishes a retained summary of the sweep.
func (w *MQTTWriter) EndSweep(res *Result) error {
	s := sweepSummary{
		ID:         res.ID,
		Name:       res.Name,
		Runs:       res.Len(),
		Counts:     res.Counts(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if best, _, ok := res.Best(); ok {
		s.Best = &best.Point
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return w.publish(w.topic(res.Name, "summary"), true, payload)
}

func (w *MQTTWriter) publish(topic string, retained bool, payload []byte) error {
	token := w.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (w *MQTTWriter) Close() error {
	if w.conn != nil {
		w.conn.Disconnect(250)
	}
	return nil
}
