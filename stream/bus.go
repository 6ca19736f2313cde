package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBufferHighWaterMark is the per-subscriber channel capacity beyond
// which a slow subscriber is disconnected with SubscriberLagged.
const DefaultBufferHighWaterMark = 256

// Bus is the per-process event bus: one monotonic sequencer per thread, an
// append-only log, and fan-out to any number of concurrent subscribers.
type Bus struct {
	mu       sync.Mutex
	threads  map[string]*threadLog
	bufSize  int
	metrics  *Metrics
}

type threadLog struct {
	mu          sync.Mutex
	events      []AgentEvent
	lastSeqID   int64
	subscribers map[*Subscription]struct{}
}

// NewBus creates an empty Bus. bufSize <= 0 uses DefaultBufferHighWaterMark.
func NewBus(bufSize int, metrics *Metrics) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferHighWaterMark
	}
	return &Bus{threads: make(map[string]*threadLog), bufSize: bufSize, metrics: metrics}
}

func (b *Bus) logFor(threadID string) *threadLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	tl, ok := b.threads[threadID]
	if !ok {
		tl = &threadLog{subscribers: make(map[*Subscription]struct{})}
		b.threads[threadID] = tl
	}
	return tl
}

// Publish assigns the next seq_id for threadID and fans the event out to
// every live subscriber. The caller supplies eventType, source, and data;
// Publish fills in ProtocolVersion, SeqID, ID, and Timestamp.
func (b *Bus) Publish(ctx context.Context, threadID string, eventType EventType, source string, data any) (AgentEvent, error) {
	tl := b.logFor(threadID)

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.lastSeqID++
	event := AgentEvent{
		ProtocolVersion: ProtocolVersion,
		SeqID:           tl.lastSeqID,
		ID:              uuid.NewString(),
		Timestamp:       time.Now(),
		Source:          source,
		Type:            eventType,
		Data:            data,
	}
	tl.events = append(tl.events, event)

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(string(eventType)).Inc()
	}

	for sub := range tl.subscribers {
		if len(sub.ch) >= b.bufSize {
			b.disconnectLocked(tl, sub)
			continue
		}
		sub.ch <- event
		sub.lastDelivered = event.SeqID
	}

	return event, nil
}

// disconnectLocked sends the terminal SubscriberLagged event and removes
// sub from tl's subscriber set. The channel's capacity is bufSize+1 while
// the high-water check fires at bufSize, so the reserved slot guarantees
// the terminal event is always deliverable. Caller holds tl.mu.
func (b *Bus) disconnectLocked(tl *threadLog, sub *Subscription) {
	delete(tl.subscribers, sub)
	sub.ch <- AgentEvent{
		ProtocolVersion: ProtocolVersion,
		SeqID:           tl.lastSeqID,
		Type:            EventSubscriberLagged,
		Data:            SubscriberLaggedData{LastDeliveredSeqID: sub.lastDelivered},
	}
	close(sub.ch)
	if b.metrics != nil {
		b.metrics.SubscribersLagged.Inc()
	}
}

// Subscription is a live subscriber's channel plus bookkeeping needed to
// report its last-delivered seq_id on disconnect.
type Subscription struct {
	ch            chan AgentEvent
	lastDelivered int64
}

// Events returns the channel new events (and the eventual terminal
// SubscriberLagged) are delivered on.
func (s *Subscription) Events() <-chan AgentEvent { return s.ch }

// Subscribe replays every event with seq_id > afterSeqID, then delivers new
// events as they are published. The returned Subscription must eventually
// be released via Bus.Unsubscribe.
func (b *Bus) Subscribe(ctx context.Context, threadID string, afterSeqID int64) (*Subscription, error) {
	tl := b.logFor(threadID)

	tl.mu.Lock()
	defer tl.mu.Unlock()

	sub := &Subscription{ch: make(chan AgentEvent, b.bufSize+1), lastDelivered: afterSeqID}

	for _, e := range tl.events {
		if e.SeqID <= afterSeqID {
			continue
		}
		if len(sub.ch) >= b.bufSize {
			return nil, fmt.Errorf("stream: backlog for thread %s exceeds buffer before subscription completed", threadID)
		}
		sub.ch <- e
		sub.lastDelivered = e.SeqID
	}

	tl.subscribers[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe removes sub from threadID's fan-out set and closes its
// channel. Safe to call more than once.
func (b *Bus) Unsubscribe(threadID string, sub *Subscription) {
	tl := b.logFor(threadID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if _, ok := tl.subscribers[sub]; ok {
		delete(tl.subscribers, sub)
		close(sub.ch)
	}
}

// LatestSeq returns the highest seq_id published for threadID, for
// frontend rehydration.
func (b *Bus) LatestSeq(threadID string) int64 {
	tl := b.logFor(threadID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.lastSeqID
}

// History returns every event with seq_id > afterSeqID, in order.
func (b *Bus) History(threadID string, afterSeqID int64) []AgentEvent {
	tl := b.logFor(threadID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]AgentEvent, 0)
	for _, e := range tl.events {
		if e.SeqID > afterSeqID {
			out = append(out, e)
		}
	}
	return out
}

// Metrics holds the Prometheus collectors the bus updates.
type Metrics struct {
	EventsPublished   *prometheus.CounterVec
	SubscribersLagged prometheus.Counter
}

// NewMetrics registers the bus's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_stream_events_published_total",
			Help: "Total events published to the stream bus, by type.",
		}, []string{"type"}),
		SubscribersLagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_stream_subscribers_lagged_total",
			Help: "Total subscribers disconnected for exceeding the buffer high-water mark.",
		}),
	}
	reg.MustRegister(m.EventsPublished, m.SubscribersLagged)
	return m
}
