package boundarylog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the boundary-crossing logger: JSONL output to writer plus one
// OpenTelemetry span per crossing, unified into a single call site so the
// core never has two logging paths to keep in sync.
type Logger struct {
	writer io.Writer
	tracer trace.Tracer
}

// NewLogger builds a Logger writing JSONL Records to writer (os.Stdout if
// nil) and spans via tracer.
func NewLogger(writer io.Writer, tracer trace.Tracer) *Logger {
	if writer == nil {
		writer = os.Stdout
	}
	return &Logger{writer: writer, tracer: tracer}
}

// Log writes rec as a JSONL line and, if a tracer is configured, records a
// span for the crossing.
func (l *Logger) Log(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("boundarylog: marshal record: %w", err)
	}
	if _, err := fmt.Fprintf(l.writer, "%s\n", data); err != nil {
		return fmt.Errorf("boundarylog: write record: %w", err)
	}

	if l.tracer == nil {
		return nil
	}

	_, span := l.tracer.Start(ctx, string(rec.Crossing))
	defer span.End()

	span.SetAttributes(
		attribute.String("boundarylog.node", rec.Node),
		attribute.String("boundarylog.thread_id", rec.ThreadID),
	)
	if rec.ArtifactID != nil {
		span.SetAttributes(attribute.String("boundarylog.artifact_id", *rec.ArtifactID))
	}
	if rec.ContractKind != nil {
		span.SetAttributes(attribute.String("boundarylog.contract_kind", *rec.ContractKind))
	}

	if !rec.OK() {
		span.SetStatus(codes.Error, rec.ErrorCode)
		if rec.Replay != nil {
			span.SetAttributes(
				attribute.String("boundarylog.replay.current_node", rec.Replay.CurrentNode),
				attribute.String("boundarylog.replay.state_snapshot_hash", rec.Replay.StateSnapshotHash),
			)
		}
	}

	return nil
}
