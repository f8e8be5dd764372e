package station

import (
	"context"
	"log"
)

// TriggerAPI is the slice of the resource client the trigger needs.
type TriggerAPI interface {
	TriggerMeterValues(ctx context.Context, stationID string, connectorID int) error
}

// MeterTrigger asks a station to push fresh meter values before a read.
// The upstream serves cached values otherwise, so this minimises
// staleness; freshness stays best-effort and a failed trigger must never
// block the read that follows.
type MeterTrigger struct {
	api TriggerAPI
}

func NewMeterTrigger(api TriggerAPI) *MeterTrigger {
	return &MeterTrigger{api: api}
}

// Trigger reports whether the refresh command was accepted. Failures are
// logged here and swallowed by the caller.
func (t *MeterTrigger) Trigger(ctx context.Context, stationID string, connectorID int) bool {
	if err := t.api.TriggerMeterValues(ctx, stationID, connectorID); err != nil {
		log.Printf("Meter value trigger failed for station %s: %v (reading cached values)", stationID, err)
		return false
	}
	return true
}
