package station

import (
	"strings"
	"time"

	"garo-monitor/internal/garo"
)

// Domain entities for one charging station. Everything here is rebuilt
// from scratch on every poll cycle; nothing is mutated in place, so a
// published snapshot can never mix data from two cycles.

type Station struct {
	ID                 string     `json:"id"`
	UID                string     `json:"uid"`
	Name               string     `json:"name"`
	SerialNumber       string     `json:"serial_number"`
	VendorName         string     `json:"vendor_name"`
	Model              string     `json:"model"`
	FirmwareVersion    string     `json:"firmware_version"`
	Phases             int        `json:"phases"`
	Connection         string     `json:"connection"`
	Registration       string     `json:"registration"`
	Installation       string     `json:"installation"`
	Configuration      string     `json:"configuration"`
	Heartbeat          *time.Time `json:"heartbeat,omitempty"`
	LastFirmwareCheck  *time.Time `json:"last_firmware_check,omitempty"`
	ConfigSyncRequired bool       `json:"config_sync_required"`
	UsingProxy         bool       `json:"using_proxy"`
}

type Connector struct {
	ID       int        `json:"id"`
	Status   string     `json:"status"`
	Limited  bool       `json:"limited"`
	StatusAt *time.Time `json:"status_at,omitempty"`
}

// Measurements holds one set of scalar meter values. Nil means the
// upstream did not report that measure; zero is a real reading.
type Measurements struct {
	EnergyImport   *float64 `json:"energy_import,omitempty"`
	ActivePower    *float64 `json:"active_power,omitempty"`
	CurrentImport  *float64 `json:"current_import,omitempty"`
	CurrentExport  *float64 `json:"current_export,omitempty"`
	CurrentOffered *float64 `json:"current_offered,omitempty"`
	Voltage        *float64 `json:"voltage,omitempty"`
	Frequency      *float64 `json:"frequency,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

// MeterReading is one normalized record; Phase 0 is an aggregate reading.
type MeterReading struct {
	Phase int `json:"phase"`
	Measurements
}

type MeterReportKind string

const (
	MeterAggregate MeterReportKind = "aggregate"
	MeterPerPhase  MeterReportKind = "per_phase"
)

// MeterReport is a tagged variant so consumers cannot read phase records
// out of an aggregate reading or vice versa.
type MeterReport struct {
	Kind      MeterReportKind `json:"kind"`
	Aggregate *MeterReading   `json:"aggregate,omitempty"`
	Phases    []MeterReading  `json:"phases,omitempty"`
}

type Transaction struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	ConnectorID int        `json:"connector_id"`
	EnergyWh    *float64   `json:"energy_wh,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	IDToken     string     `json:"id_token,omitempty"`
	// UserName is resolved lazily from the ID token and may stay empty.
	UserName string `json:"user_name,omitempty"`
}

type ConfigValue struct {
	Key          string  `json:"key"`
	Value        string  `json:"value"`
	Mutability   *string `json:"mutability"`
	Status       string  `json:"status,omitempty"`
	StatusReason string  `json:"status_reason,omitempty"`
}

// Snapshot is the immutable per-cycle result for one station. The
// per-section OK flags distinguish "fetched, currently empty" from
// "unavailable this cycle"; Partial is true when any section failed
// non-fatally.
type Snapshot struct {
	Station        Station       `json:"station"`
	Connectors     []Connector   `json:"connectors"`
	ConnectorsOK   bool          `json:"connectors_ok"`
	Meter          *MeterReport  `json:"meter,omitempty"`
	MeterOK        bool          `json:"meter_ok"`
	Transactions   []Transaction `json:"transactions"`
	TransactionsOK bool          `json:"transactions_ok"`
	Config         []ConfigValue `json:"config"`
	ConfigOK       bool          `json:"config_ok"`
	Partial        bool          `json:"partial"`
	TakenAt        time.Time     `json:"taken_at"`
}

// NewStation maps the wire station item onto the domain entity. A station
// that does not declare its phase count is treated as single phase.
func NewStation(item garo.StationItem) Station {
	phases := item.ChargingUnit.Phases
	if phases <= 0 {
		phases = 1
	}
	return Station{
		ID:                 item.ID,
		UID:                item.UID,
		Name:               item.Name,
		SerialNumber:       item.ChargingUnit.SerialNumber,
		VendorName:         item.ChargingUnit.VendorName,
		Model:              item.ChargingUnit.Model,
		FirmwareVersion:    item.ChargingUnit.FirmwareVersion,
		Phases:             phases,
		Connection:         item.Status.Connection,
		Registration:       item.Status.Registration,
		Installation:       item.Status.Installation,
		Configuration:      item.Status.Configuration,
		Heartbeat:          ParseTime(item.Status.HeartbeatTimestamp),
		LastFirmwareCheck:  ParseTime(item.Status.LastFirmwareUpdateCheck),
		ConfigSyncRequired: item.Status.ConfigurationSyncRequired,
		UsingProxy:         item.Status.UsingProxy,
	}
}

func NewConnector(status garo.ConnectorStatus) Connector {
	return Connector{
		ID:       status.ConnectorID,
		Status:   status.Status,
		Limited:  status.Limited,
		StatusAt: ParseTime(status.Timestamp),
	}
}

// NewTransaction derives the energy figure: meter_stop-meter_start for a
// finished transaction, live energy reading minus meter_start for an
// ongoing one when a reading is available.
func NewTransaction(item garo.TransactionItem, liveEnergyWh *float64) Transaction {
	tx := Transaction{
		ID:          item.ID,
		State:       item.State,
		ConnectorID: item.ConnectorID,
		StartTime:   ParseTime(item.StartTime),
		EndTime:     ParseTime(item.EndTime),
		IDToken:     item.IDToken,
	}
	if item.MeterStart != nil {
		start := float64(*item.MeterStart)
		switch {
		case item.MeterStop != nil:
			energy := float64(*item.MeterStop) - start
			tx.EnergyWh = &energy
		case liveEnergyWh != nil && *liveEnergyWh >= start:
			energy := *liveEnergyWh - start
			tx.EnergyWh = &energy
		default:
			zero := 0.0
			tx.EnergyWh = &zero
		}
	}
	return tx
}

func NewConfigValue(item garo.ConfigItem) ConfigValue {
	return ConfigValue{
		Key:          item.Key,
		Value:        item.Value,
		Mutability:   item.Mutability,
		Status:       item.Status,
		StatusReason: item.StatusReason,
	}
}

// ParseTime handles the ISO timestamps the API sends, with or without a
// trailing Z. Nil for empty or unparseable values.
func ParseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
