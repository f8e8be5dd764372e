package station

import (
	"testing"

	"garo-monitor/internal/garo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStationDefaultsToSinglePhase(t *testing.T) {
	st := NewStation(garo.StationItem{ID: "st-1", Name: "Garage"})
	assert.Equal(t, 1, st.Phases)

	st = NewStation(garo.StationItem{ID: "st-2", ChargingUnit: garo.ChargingUnit{Phases: 3}})
	assert.Equal(t, 3, st.Phases)
}

func TestNewTransactionFinishedEnergy(t *testing.T) {
	tx := NewTransaction(garo.TransactionItem{
		ID:         "tx-1",
		State:      "Finished",
		MeterStart: num(1000),
		MeterStop:  num(8500),
	}, nil)

	require.NotNil(t, tx.EnergyWh)
	assert.Equal(t, 7500.0, *tx.EnergyWh)
}

func TestNewTransactionOngoingUsesLiveReading(t *testing.T) {
	live := 5400.0
	tx := NewTransaction(garo.TransactionItem{
		ID:         "tx-2",
		State:      "Started",
		MeterStart: num(5000),
	}, &live)

	require.NotNil(t, tx.EnergyWh)
	assert.Equal(t, 400.0, *tx.EnergyWh)
}

func TestNewTransactionOngoingWithoutLiveReading(t *testing.T) {
	tx := NewTransaction(garo.TransactionItem{
		ID:         "tx-3",
		State:      "Started",
		MeterStart: num(5000),
	}, nil)

	// The register cannot have moved backwards; no usable live reading
	// means no measured consumption yet.
	require.NotNil(t, tx.EnergyWh)
	assert.Equal(t, 0.0, *tx.EnergyWh)
}

func TestNewTransactionLiveReadingBelowStartIgnored(t *testing.T) {
	live := 100.0
	tx := NewTransaction(garo.TransactionItem{
		ID:         "tx-4",
		State:      "Started",
		MeterStart: num(5000),
	}, &live)

	require.NotNil(t, tx.EnergyWh)
	assert.Equal(t, 0.0, *tx.EnergyWh)
}

func TestNewTransactionNoMeterStart(t *testing.T) {
	tx := NewTransaction(garo.TransactionItem{ID: "tx-5", State: "Started"}, nil)
	assert.Nil(t, tx.EnergyWh)
}

func TestParseTime(t *testing.T) {
	assert.Nil(t, ParseTime(""))
	assert.Nil(t, ParseTime("not a time"))

	withZone := ParseTime("2026-08-20T10:15:00Z")
	require.NotNil(t, withZone)
	assert.Equal(t, 10, withZone.Hour())

	bare := ParseTime("2026-08-20T10:15:00")
	require.NotNil(t, bare)
	assert.Equal(t, 15, bare.Minute())
}
