package station

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"garo-monitor/internal/garo"
)

// CommitAPI is the slice of the resource client the gateway needs.
type CommitAPI interface {
	CommitConfiguration(ctx context.Context, stationID, key, value string) (*garo.CommitResponse, error)
	Configuration(ctx context.Context, stationID string) ([]garo.ConfigItem, error)
}

type CommitOutcome string

const (
	CommitAccepted CommitOutcome = "Accepted"
	CommitRejected CommitOutcome = "Rejected"
	CommitPending  CommitOutcome = "Pending"
)

// CommitResult is the terminal state of one configuration write. A
// Rejected outcome carries the upstream reason verbatim; a rejected write
// that changes nothing is still an outcome the user must see.
type CommitResult struct {
	Key     string        `json:"key"`
	Value   string        `json:"value"`
	Outcome CommitOutcome `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
}

// WritableKey bounds one allow-listed configuration key. The upstream's
// mutability attribute always comes back unknown, so editability is gated
// by this fixed list instead.
type WritableKey struct {
	Unit    string
	Min     float64
	Max     float64
	Integer bool
}

var writableKeys = map[string]WritableKey{
	"GaroOwnerMaxCurrent": {Unit: "A", Min: 6, Max: 32, Integer: true},
	"LightIntensity":      {Unit: "%", Min: 0, Max: 100},
}

// WritableKeys returns the allow-listed keys and their bounds.
func WritableKeys() map[string]WritableKey {
	keys := make(map[string]WritableKey, len(writableKeys))
	for k, v := range writableKeys {
		keys[k] = v
	}
	return keys
}

// CommitGateway writes configuration through the change-configuration
// action endpoint (the direct configuration PUT does not reliably reach
// the physical station) and resolves the asynchronous outcome.
type CommitGateway struct {
	api      CommitAPI
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewCommitGateway(api CommitAPI) *CommitGateway {
	return &CommitGateway{
		api:      api,
		attempts: 10,
		delay:    2 * time.Second,
		sleep:    sleepCtx,
	}
}

// Commit applies key=value on one station. Keys outside the allow-list
// and out-of-range values are rejected locally before any network call.
// Returns the terminal result, or an error when the upstream could not be
// reached at all.
func (g *CommitGateway) Commit(ctx context.Context, stationID, key string, value float64) (*CommitResult, error) {
	bounds, ok := writableKeys[key]
	if !ok {
		return nil, fmt.Errorf("configuration key %q is not writable", key)
	}
	if value < bounds.Min || value > bounds.Max {
		return nil, fmt.Errorf("value %g for %s out of range [%g, %g]", value, key, bounds.Min, bounds.Max)
	}

	wire := strconv.FormatFloat(value, 'f', -1, 64)
	if bounds.Integer {
		wire = strconv.Itoa(int(value))
	}

	log.Printf("Committing configuration %s=%s for station %s", key, wire, stationID)
	resp, err := g.api.CommitConfiguration(ctx, stationID, key, wire)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", key, err)
	}

	result := &CommitResult{Key: key, Value: wire}
	switch resp.Status[key] {
	case "Accepted":
		result.Outcome = CommitAccepted
		return result, nil
	case "Rejected":
		result.Outcome = CommitRejected
		result.Reason = resp.Reason
		return result, nil
	}

	// Acknowledged but not yet applied on the physical station; poll the
	// configuration until the key's status turns terminal.
	return g.awaitOutcome(ctx, stationID, result)
}

func (g *CommitGateway) awaitOutcome(ctx context.Context, stationID string, result *CommitResult) (*CommitResult, error) {
	for attempt := 0; attempt < g.attempts; attempt++ {
		if err := g.sleep(ctx, g.delay); err != nil {
			return nil, err
		}

		items, err := g.api.Configuration(ctx, stationID)
		if err != nil {
			log.Printf("Commit status poll failed for station %s: %v", stationID, err)
			continue
		}
		for _, item := range items {
			if item.Key != result.Key {
				continue
			}
			switch item.Status {
			case "Accepted":
				result.Outcome = CommitAccepted
				return result, nil
			case "Rejected":
				result.Outcome = CommitRejected
				result.Reason = item.StatusReason
				return result, nil
			}
		}
	}

	result.Outcome = CommitPending
	result.Reason = fmt.Sprintf("not confirmed by the station after %d checks", g.attempts)
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
