package commands

import (
	"context"

	"github.com/goliatone/go-datainsight/components/insight"
)

// Telemetry is the event sink shared with the controller, so one
// insight.MultiTelemetry can observe both.
type Telemetry = insight.Telemetry

type discard struct{}

func (discard) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return discard{}
	}
	return t
}
