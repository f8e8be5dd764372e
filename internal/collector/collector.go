package collector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"garo-monitor/internal/garo"
	"garo-monitor/internal/station"
)

// API is the slice of the resource client the coordinator drives. Error
// kinds stay observable here because fallback policy is decided per step,
// not in the transport.
type API interface {
	ListStations(ctx context.Context) (*garo.StationList, error)
	ConnectorStatus(ctx context.Context, stationID string) ([]garo.ConnectorStatus, error)
	LatestMeterValues(ctx context.Context, stationID string, connectorID int) ([]garo.MeterValue, error)
	TriggerMeterValues(ctx context.Context, stationID string, connectorID int) error
	Transactions(ctx context.Context, stationID string, connectorID int) (*garo.TransactionList, error)
	Configuration(ctx context.Context, stationID string) ([]garo.ConfigItem, error)
	UserByToken(ctx context.Context, token string) (map[string]garo.UserInfo, error)
}

// Store persists completed snapshots for history queries.
type Store interface {
	SaveSnapshot(snap *station.Snapshot) error
}

// Publisher hands completed snapshots to the host platform.
type Publisher interface {
	Publish(snap *station.Snapshot) error
}

// Collector runs one poll cycle per tick: it lists the stations, runs an
// independent sub-pipeline per station, and publishes the resulting
// snapshots atomically. A cycle that aborts publishes nothing, so the
// previously published snapshots stay visible.
type Collector struct {
	api       API
	store     Store
	publisher Publisher
	interval  time.Duration
	enabled   bool
	now       func() time.Time

	trigger  *station.MeterTrigger
	identity *station.IdentityResolver

	mu        sync.RWMutex
	latest    map[string]*station.Snapshot
	lastSync  time.Time
	lastErr   error
	isRunning bool
}

type Config struct {
	API       API
	Store     Store
	Publisher Publisher
	Interval  time.Duration
	Enabled   bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewCollector(cfg Config) *Collector {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Collector{
		api:       cfg.API,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		interval:  cfg.Interval,
		enabled:   cfg.Enabled,
		now:       now,
		trigger:   station.NewMeterTrigger(cfg.API),
		identity:  station.NewIdentityResolver(cfg.API),
		latest:    map[string]*station.Snapshot{},
	}
}

func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled {
		log.Println("Collector is disabled")
		return nil
	}

	c.mu.Lock()
	c.isRunning = true
	c.mu.Unlock()

	log.Printf("Starting collector with interval %s", c.interval)

	c.collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Collector stopped")
			c.mu.Lock()
			c.isRunning = false
			c.mu.Unlock()
			return nil
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) collect(ctx context.Context) {
	snapshots, err := c.Sync(ctx)
	if err != nil {
		log.Printf("Sync cycle failed, keeping previous snapshots: %v", err)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.latest = snapshots
	c.lastSync = c.now()
	c.lastErr = nil
	c.mu.Unlock()

	for _, snap := range snapshots {
		if c.store != nil {
			if err := c.store.SaveSnapshot(snap); err != nil {
				log.Printf("Error saving snapshot for %s: %v", snap.Station.ID, err)
			}
		}
		if c.publisher != nil {
			if err := c.publisher.Publish(snap); err != nil {
				log.Printf("Error publishing snapshot for %s: %v", snap.Station.ID, err)
			}
		}
	}

	log.Printf("Sync cycle complete: %d stations", len(snapshots))
}

// Sync runs one full poll cycle and returns the freshly built snapshots
// without publishing them. A returned error voids the whole cycle
// (invalid credentials, station listing unavailable, or cancellation).
func (c *Collector) Sync(ctx context.Context) (map[string]*station.Snapshot, error) {
	list, err := c.api.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	// Load interface stations are aggregation points with no telemetry of
	// their own and are never polled.
	items := make([]garo.StationItem, 0, len(list.Items))
	for _, item := range list.Items {
		if item.LoadInterface {
			continue
		}
		items = append(items, item)
	}

	snaps := make([]*station.Snapshot, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = c.syncStation(ctx, items[i])
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	for _, err := range errs {
		if garo.IsKind(err, garo.ErrUnauthorized) {
			return nil, fmt.Errorf("credentials rejected mid-cycle: %w", err)
		}
	}

	result := make(map[string]*station.Snapshot, len(snaps))
	for _, snap := range snaps {
		if snap != nil {
			result[snap.Station.ID] = snap
		}
	}
	return result, nil
}

// syncStation runs the strictly ordered pipeline for one station. A nil
// snapshot with nil error means the station was skipped (gone upstream);
// a non-nil error aborts the whole cycle (invalid credentials). Other
// sub-failures degrade to an unavailable section on the snapshot.
func (c *Collector) syncStation(ctx context.Context, item garo.StationItem) (*station.Snapshot, error) {
	snap := &station.Snapshot{
		Station: station.NewStation(item),
		TakenAt: c.now().UTC(),
	}

	// Rate limiting anywhere in the pipeline stops further sub-requests
	// for this station; the remaining sections go stale for one cycle.
	limited := false

	connectorID := 1
	statuses, err := c.api.ConnectorStatus(ctx, item.ID)
	switch {
	case err == nil:
		snap.Connectors = make([]station.Connector, 0, len(statuses))
		for _, status := range statuses {
			snap.Connectors = append(snap.Connectors, station.NewConnector(status))
		}
		if len(snap.Connectors) > 0 {
			connectorID = snap.Connectors[0].ID
		}
		snap.ConnectorsOK = true
	case garo.IsKind(err, garo.ErrUnauthorized):
		return nil, err
	case garo.IsKind(err, garo.ErrNotFound):
		log.Printf("Station %s not found upstream, skipping this cycle", item.ID)
		return nil, nil
	default:
		log.Printf("Connector status unavailable for %s: %v", item.ID, err)
		limited = garo.IsKind(err, garo.ErrRateLimited)
	}

	var liveEnergy *float64
	if !limited {
		// Best effort: a failed trigger still leaves cached values to read.
		c.trigger.Trigger(ctx, item.ID, connectorID)

		values, err := c.api.LatestMeterValues(ctx, item.ID, connectorID)
		if garo.IsKind(err, garo.ErrUnauthorized) {
			return nil, err
		}
		if err != nil {
			log.Printf("Meter values unavailable for %s: %v", item.ID, err)
			limited = garo.IsKind(err, garo.ErrRateLimited)
		} else {
			phaseCount := snap.Station.Phases
			if phaseCount > 1 && !station.HasPhaseLabels(values) {
				phaseCount = 1
			}
			snap.Meter = station.Decompose(values, phaseCount)
			snap.MeterOK = true
			liveEnergy = station.LiveEnergyWh(values)
		}
	}

	if !limited {
		list, err := c.api.Transactions(ctx, item.ID, connectorID)
		if garo.IsKind(err, garo.ErrUnauthorized) {
			return nil, err
		}
		if err != nil {
			log.Printf("Transactions unavailable for %s: %v", item.ID, err)
			limited = garo.IsKind(err, garo.ErrRateLimited)
		} else {
			snap.Transactions = make([]station.Transaction, 0, len(list.Items))
			for _, tx := range list.Items {
				snap.Transactions = append(snap.Transactions, station.NewTransaction(tx, liveEnergy))
			}
			snap.TransactionsOK = true
			c.resolveUsers(ctx, snap)
		}
	}

	if !limited {
		items, err := c.api.Configuration(ctx, item.ID)
		if garo.IsKind(err, garo.ErrUnauthorized) {
			return nil, err
		}
		if err != nil {
			log.Printf("Configuration unavailable for %s: %v", item.ID, err)
		} else {
			snap.Config = make([]station.ConfigValue, 0, len(items))
			for _, cfg := range items {
				snap.Config = append(snap.Config, station.NewConfigValue(cfg))
			}
			snap.ConfigOK = true
		}
	}

	snap.Partial = !(snap.ConnectorsOK && snap.MeterOK && snap.TransactionsOK && snap.ConfigOK)
	return snap, nil
}

// resolveUsers resolves identity tokens concurrently; the lookups are
// independent and order does not matter.
func (c *Collector) resolveUsers(ctx context.Context, snap *station.Snapshot) {
	var wg sync.WaitGroup
	for i := range snap.Transactions {
		tx := &snap.Transactions[i]
		if tx.IDToken == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx.UserName = c.identity.Resolve(ctx, tx.IDToken)
		}()
	}
	wg.Wait()
}

// Latest returns the snapshots published by the most recent completed
// cycle. Callers must treat the map and snapshots as read-only.
func (c *Collector) Latest() map[string]*station.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *Collector) LatestFor(stationID string) *station.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest[stationID]
}

type Status struct {
	Running  bool      `json:"running"`
	Stations int       `json:"stations"`
	LastSync time.Time `json:"last_sync"`
	LastErr  string    `json:"last_error,omitempty"`
}

func (c *Collector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status := Status{
		Running:  c.isRunning,
		Stations: len(c.latest),
		LastSync: c.lastSync,
	}
	if c.lastErr != nil {
		status.LastErr = c.lastErr.Error()
	}
	return status
}

// CollectOnce runs a single cycle, publishes it and returns the result.
func (c *Collector) CollectOnce(ctx context.Context) (map[string]*station.Snapshot, error) {
	snapshots, err := c.Sync(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.latest = snapshots
	c.lastSync = c.now()
	c.lastErr = nil
	c.mu.Unlock()

	return snapshots, nil
}
