package station

import (
	"testing"

	"garo-monitor/internal/garo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(v float64) *garo.Number {
	n := garo.Number(v)
	return &n
}

func TestDecomposeThreePhase(t *testing.T) {
	values := []garo.MeterValue{
		{MeasureName: MeasureCurrentImport, MeasureValue: num(10.1), Phase: "L1", Time: "2026-08-20T10:00:00Z"},
		{MeasureName: MeasureCurrentImport, MeasureValue: num(10.3), Phase: "L2", Time: "2026-08-20T10:00:00Z"},
		{MeasureName: MeasureCurrentImport, MeasureValue: num(9.9), Phase: "L3", Time: "2026-08-20T10:00:00Z"},
		{MeasureName: MeasureVoltage, MeasureValue: num(231.5), Phase: "L1", Time: "2026-08-20T10:00:00Z"},
	}

	report := Decompose(values, 3)
	require.Equal(t, MeterPerPhase, report.Kind)
	require.Len(t, report.Phases, 3)
	assert.Nil(t, report.Aggregate)

	assert.Equal(t, 1, report.Phases[0].Phase)
	assert.Equal(t, 10.1, *report.Phases[0].CurrentImport)
	assert.Equal(t, 10.3, *report.Phases[1].CurrentImport)
	assert.Equal(t, 9.9, *report.Phases[2].CurrentImport)

	assert.Equal(t, 231.5, *report.Phases[0].Voltage)
	assert.Nil(t, report.Phases[1].Voltage)
	assert.Nil(t, report.Phases[2].Voltage)
}

func TestDecomposeSinglePhase(t *testing.T) {
	values := []garo.MeterValue{
		{MeasureName: MeasureActivePower, MeasureValue: num(3680), Time: "2026-08-20T10:00:00Z"},
		{MeasureName: MeasureEnergyImport, MeasureValue: num(125000), Time: "2026-08-20T10:00:00Z"},
	}

	report := Decompose(values, 1)
	require.Equal(t, MeterAggregate, report.Kind)
	require.NotNil(t, report.Aggregate)
	assert.Empty(t, report.Phases)

	assert.Equal(t, 0, report.Aggregate.Phase)
	assert.Equal(t, 3680.0, *report.Aggregate.ActivePower)
	assert.Equal(t, 125000.0, *report.Aggregate.EnergyImport)
	assert.Nil(t, report.Aggregate.Voltage)
}

func TestDecomposeZeroIsValid(t *testing.T) {
	values := []garo.MeterValue{
		{MeasureName: MeasureActivePower, MeasureValue: num(0), Time: "2026-08-20T10:00:00Z"},
	}

	report := Decompose(values, 0)
	require.Equal(t, MeterAggregate, report.Kind)
	require.NotNil(t, report.Aggregate.ActivePower)
	assert.Equal(t, 0.0, *report.Aggregate.ActivePower)
}

func TestDecomposeEmptyInput(t *testing.T) {
	report := Decompose(nil, 3)
	require.Equal(t, MeterPerPhase, report.Kind)
	require.Len(t, report.Phases, 3)
	for _, reading := range report.Phases {
		assert.Nil(t, reading.CurrentImport)
		assert.Nil(t, reading.Voltage)
	}
}

func TestDecomposePicksMostRecent(t *testing.T) {
	values := []garo.MeterValue{
		{MeasureName: MeasureActivePower, MeasureValue: num(1000), Time: "2026-08-20T09:00:00Z"},
		{MeasureName: MeasureActivePower, MeasureValue: num(2000), Time: "2026-08-20T10:00:00Z"},
		{MeasureName: MeasureActivePower, MeasureValue: num(1500), Time: "2026-08-20T09:30:00Z"},
	}

	report := Decompose(values, 1)
	assert.Equal(t, 2000.0, *report.Aggregate.ActivePower)
}

func TestHasPhaseLabels(t *testing.T) {
	labeled := []garo.MeterValue{
		{MeasureName: MeasureCurrentImport, MeasureValue: num(16), Phase: "L1"},
	}
	unlabeled := []garo.MeterValue{
		{MeasureName: MeasureCurrentImport, MeasureValue: num(16)},
	}

	assert.True(t, HasPhaseLabels(labeled))
	assert.False(t, HasPhaseLabels(unlabeled))
	assert.False(t, HasPhaseLabels(nil))
}

func TestLiveEnergyWh(t *testing.T) {
	values := []garo.MeterValue{
		{MeasureName: MeasureEnergyImport, MeasureValue: num(100), Time: "2026-08-20T09:00:00Z"},
		{MeasureName: MeasureEnergyImport, MeasureValue: num(250), Time: "2026-08-20T10:00:00Z"},
		{MeasureName: MeasureActivePower, MeasureValue: num(999), Time: "2026-08-20T11:00:00Z"},
	}

	energy := LiveEnergyWh(values)
	require.NotNil(t, energy)
	assert.Equal(t, 250.0, *energy)

	assert.Nil(t, LiveEnergyWh(nil))
}
