package mqtt

import (
	"testing"
	"time"

	"garo-monitor/internal/station"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *station.Snapshot {
	power := 3680.0
	return &station.Snapshot{
		Station: station.Station{ID: "st-1", Name: "Garage", Phases: 1},
		Meter: &station.MeterReport{
			Kind: station.MeterAggregate,
			Aggregate: &station.MeterReading{
				Measurements: station.Measurements{ActivePower: &power},
			},
		},
		TakenAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestDisabledPublisherIsNoOp(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NoError(t, p.Publish(sampleSnapshot()))
	assert.NoError(t, p.PublishDiscovery(sampleSnapshot()))
	assert.False(t, p.IsConnected())
	p.Close()
}

// A publisher whose broker connection failed at startup must still be
// safe to hand to the collector; publish failures are logged, never fatal.
func TestUnconnectedPublisherIsSafe(t *testing.T) {
	p := &Publisher{enabled: false}

	assert.NoError(t, p.Publish(sampleSnapshot()))
	assert.NoError(t, p.PublishDiscovery(sampleSnapshot()))
	assert.False(t, p.IsConnected())
	p.Close()
}

func TestScalarTopicsAggregate(t *testing.T) {
	topics := scalarTopics(sampleSnapshot().Meter)
	assert.Equal(t, 3680.0, topics["power"])
	assert.NotContains(t, topics, "voltage", "unreported measures are not published")
}

func TestScalarTopicsPerPhase(t *testing.T) {
	c1, c2 := 10.1, 10.3
	report := &station.MeterReport{
		Kind: station.MeterPerPhase,
		Phases: []station.MeterReading{
			{Phase: 1, Measurements: station.Measurements{CurrentImport: &c1}},
			{Phase: 2, Measurements: station.Measurements{CurrentImport: &c2}},
		},
	}

	topics := scalarTopics(report)
	assert.Equal(t, 10.1, topics["current_l1"])
	assert.Equal(t, 10.3, topics["current_l2"])
	assert.NotContains(t, topics, "current")
}

func TestScalarTopicsNilReport(t *testing.T) {
	assert.Empty(t, scalarTopics(nil))
}
