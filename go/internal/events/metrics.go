package events

import (
	"context"
	"sync"
	"time"
)

// MetricsCollector records the outcome of event publishes.
type MetricsCollector interface {
	RecordEventPublished(eventType string, success bool, duration time.Duration)
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event Event) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordEventPublished(event.Type, err == nil, time.Since(start))
	return err
}

// TypeStats are the counters kept for one event type.
type TypeStats struct {
	Published     uint64        `json:"published"`
	Failed        uint64        `json:"failed"`
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// Counters is an in-process MetricsCollector.
type Counters struct {
	mu     sync.Mutex
	byType map[string]TypeStats
}

func NewCounters() *Counters {
	return &Counters{byType: make(map[string]TypeStats)}
}

func (c *Counters) RecordEventPublished(eventType string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.byType[eventType]
	if success {
		s.Published++
	} else {
		s.Failed++
	}
	s.TotalDuration += duration
	c.byType[eventType] = s
}

// Snapshot returns a copy of the counters keyed by event type.
func (c *Counters) Snapshot() map[string]TypeStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]TypeStats, len(c.byType))
	for k, v := range c.byType {
		out[k] = v
	}
	return out
}
