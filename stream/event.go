// Package stream implements the event bus and wire protocol: the
// sequenced, multi-subscriber push channel that carries every node's
// lifecycle, content, and interrupt signals to whoever is watching a
// thread.
package stream

import (
	"fmt"
	"time"
)

// ProtocolVersion is the only version this bus currently emits or accepts.
const ProtocolVersion = "v1"

// EventType discriminates the shape of AgentEvent.Data.
type EventType string

const (
	EventContentDelta    EventType = "content.delta"
	EventAgentStatus     EventType = "agent.status"
	EventStateUpdate     EventType = "state.update"
	EventInterruptReq    EventType = "interrupt.request"
	EventLifecycleStatus EventType = "lifecycle.status"
	EventError           EventType = "error"
)

// AgentEvent is the protocol-level wire unit. Within a thread, SeqID is
// strictly increasing and gap-free — the bus is the only assigner.
type AgentEvent struct {
	ProtocolVersion string    `json:"protocol_version"`
	SeqID           int64     `json:"seq_id"`
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Source          string    `json:"source"`
	Type            EventType `json:"type"`
	Data            any       `json:"data"`
}

// ErrProtocolVersionMismatch is fatal to the producer: an event was built
// with a protocol_version other than ProtocolVersion.
var ErrProtocolVersionMismatch = fmt.Errorf("stream: protocol version mismatch")

// ContentDeltaData is the payload for EventContentDelta.
type ContentDeltaData struct {
	Content string `json:"content"`
}

// AgentStatusData is the payload for EventAgentStatus.
type AgentStatusData struct {
	Status string `json:"status"` // idle|running|done|error|attention
	Node   string `json:"node"`
}

// LifecycleStatusData is the payload for EventLifecycleStatus.
type LifecycleStatusData struct {
	Status string `json:"status"` // running|paused|done|error
}

// ErrorData is the payload for EventError.
type ErrorData struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
	Node      string `json:"node"`
}

// SubscriberLaggedData is the terminal payload sent to a subscriber that
// has been disconnected for exceeding the bounded-buffer high-water mark.
type SubscriberLaggedData struct {
	LastDeliveredSeqID int64 `json:"last_delivered_seq_id"`
}

// EventSubscriberLagged is a bus-internal terminal event type, not part of
// the six wire types table but delivered over the same Stream channel so a
// subscriber's loop can distinguish "disconnected, resubscribe" from a
// normal close.
const EventSubscriberLagged EventType = "subscriber.lagged"
