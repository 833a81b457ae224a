package insight

import (
	"context"

	"github.com/goliatone/go-datainsight/internal/logging"
)

// Telemetry records dashboard events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// LogTelemetry writes every event as a debug log entry.
type LogTelemetry struct{}

// Record implements Telemetry.
func (LogTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	logging.Ctx(ctx).Debug().Str("event", event).Fields(payload).Msg("telemetry")
}

// MultiTelemetry fans events out to several sinks.
type MultiTelemetry []Telemetry

// Record implements Telemetry.
func (m MultiTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	for _, t := range m {
		if t != nil {
			t.Record(ctx, event, payload)
		}
	}
}
