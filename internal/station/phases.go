package station

import (
	"fmt"

	"garo-monitor/internal/garo"
)

// Measure names the upstream reports per OCPP conventions.
const (
	MeasureEnergyImport   = "Energy.Active.Import.Register"
	MeasureActivePower    = "Power.Active.Import"
	MeasureCurrentImport  = "Current.Import"
	MeasureCurrentExport  = "Current.Export"
	MeasureCurrentOffered = "Current.Offered"
	MeasureVoltage        = "Voltage"
	MeasureFrequency      = "Frequency"
	MeasureTemperature    = "Temperature"
)

// Decompose turns the flat measure list the API returns into a normalized
// meter report. phaseCount <= 1 yields a single aggregate reading built
// from the unlabeled measures; phaseCount > 1 yields exactly phaseCount
// readings, phase n populated from the measures tagged L{n}. A measure
// absent for a phase stays nil; zero is a valid reading and is kept.
// Pure function: same input, same report.
func Decompose(values []garo.MeterValue, phaseCount int) *MeterReport {
	if phaseCount <= 1 {
		reading := MeterReading{Phase: 0, Measurements: measurementsFor(values, "")}
		return &MeterReport{Kind: MeterAggregate, Aggregate: &reading}
	}

	phases := make([]MeterReading, 0, phaseCount)
	for n := 1; n <= phaseCount; n++ {
		label := fmt.Sprintf("L%d", n)
		phases = append(phases, MeterReading{
			Phase:        n,
			Measurements: measurementsFor(values, label),
		})
	}
	return &MeterReport{Kind: MeterPerPhase, Phases: phases}
}

// HasPhaseLabels reports whether any measure carries a phase tag. A
// multi-phase station whose payload is entirely unlabeled is reported as
// one aggregate reading, never as a mix.
func HasPhaseLabels(values []garo.MeterValue) bool {
	for _, v := range values {
		if v.Phase != "" {
			return true
		}
	}
	return false
}

// LiveEnergyWh extracts the most recent energy register reading from the
// raw measures, regardless of phase labeling.
func LiveEnergyWh(values []garo.MeterValue) *float64 {
	var latest *garo.MeterValue
	for i := range values {
		v := &values[i]
		if v.MeasureName != MeasureEnergyImport || v.MeasureValue == nil {
			continue
		}
		if latest == nil || v.Time > latest.Time {
			latest = v
		}
	}
	if latest == nil {
		return nil
	}
	energy := float64(*latest.MeasureValue)
	return &energy
}

// measurementsFor picks, per measure name, the most recent value carrying
// the wanted phase label. ISO timestamps compare correctly as strings.
func measurementsFor(values []garo.MeterValue, phase string) Measurements {
	type slot struct {
		value float64
		time  string
	}
	latest := map[string]slot{}
	for _, v := range values {
		if v.Phase != phase || v.MeasureValue == nil {
			continue
		}
		if prev, ok := latest[v.MeasureName]; !ok || v.Time > prev.time {
			latest[v.MeasureName] = slot{value: float64(*v.MeasureValue), time: v.Time}
		}
	}

	pick := func(name string) *float64 {
		if s, ok := latest[name]; ok {
			v := s.value
			return &v
		}
		return nil
	}

	return Measurements{
		EnergyImport:   pick(MeasureEnergyImport),
		ActivePower:    pick(MeasureActivePower),
		CurrentImport:  pick(MeasureCurrentImport),
		CurrentExport:  pick(MeasureCurrentExport),
		CurrentOffered: pick(MeasureCurrentOffered),
		Voltage:        pick(MeasureVoltage),
		Frequency:      pick(MeasureFrequency),
		Temperature:    pick(MeasureTemperature),
	}
}
