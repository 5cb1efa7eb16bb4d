package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for messages the dispatcher could not decode.
const (
	PoisonOutcomePoisoned = "poisoned"
	PoisonOutcomeDropped  = "dropped"
)

// PoisonMetrics tracks messages that were sent to the poison queue or
// dropped, per inbound topic.
type PoisonMetrics struct {
	mu sync.Mutex

	topics map[string]*PoisonTopicMetrics

	messagesTotal *prometheus.CounterVec
	lastSeen      *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

// PoisonTopicMetrics holds the counts for one inbound topic.
type PoisonTopicMetrics struct {
	Poisoned uint64    `json:"poisoned"`
	Dropped  uint64    `json:"dropped"`
	LastAt   time.Time `json:"last_at"`
}

func newPoisonCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protowamp",
			Subsystem: "poison",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newPoisonGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "protowamp",
			Subsystem: "poison",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewPoisonMetrics creates the collectors. Nothing is exported until Register.
func NewPoisonMetrics(registerer prometheus.Registerer) *PoisonMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PoisonMetrics{
		topics:        make(map[string]*PoisonTopicMetrics),
		registerer:    registerer,
		messagesTotal: newPoisonCounterVec("messages_total", "Undecodable messages by inbound topic and outcome", []string{"topic", "outcome"}),
		lastSeen:      newPoisonGaugeVec("last_message_timestamp_seconds", "Unix time of the last undecodable message per inbound topic", []string{"topic"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *PoisonMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	for _, c := range []prometheus.Collector{m.messagesTotal, m.lastSeen} {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// Record counts one message from topic with the given outcome.
func (m *PoisonMetrics) Record(topic, outcome string) {
	if m == nil {
		return
	}
	if topic == "" {
		topic = "unknown"
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	tm, ok := m.topics[topic]
	if !ok {
		tm = &PoisonTopicMetrics{}
		m.topics[topic] = tm
	}
	switch outcome {
	case PoisonOutcomePoisoned:
		tm.Poisoned++
	case PoisonOutcomeDropped:
		tm.Dropped++
	}
	tm.LastAt = now

	m.messagesTotal.WithLabelValues(topic, outcome).Inc()
	m.lastSeen.WithLabelValues(topic).Set(float64(now.Unix()))
}

// Topic returns a copy of the counts for topic, nil if none were recorded.
func (m *PoisonMetrics) Topic(topic string) *PoisonTopicMetrics {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tm, ok := m.topics[topic]
	if !ok {
		return nil
	}
	cp := *tm
	return &cp
}

// Snapshot returns a copy of the counts of every topic.
func (m *PoisonMetrics) Snapshot() map[string]PoisonTopicMetrics {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PoisonTopicMetrics, len(m.topics))
	for topic, tm := range m.topics {
		out[topic] = *tm
	}
	return out
}

// PoisonMetrics returns the counters of undecodable messages.
func (s *Service) PoisonMetrics() *PoisonMetrics { return s.poison }
