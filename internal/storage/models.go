package storage

import (
	"time"

	"gorm.io/gorm"
)

// StationReading is one flattened snapshot row per station per cycle.
// Pointer columns stay NULL when the station never reported the measure
// or the section was unavailable that cycle.
type StationReading struct {
	gorm.Model
	TakenAt   time.Time `gorm:"index" json:"taken_at"`
	StationID string    `gorm:"index" json:"station_id"`

	// Station info
	Name            string `json:"name"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
	Phases          int    `json:"phases"`
	Connection      string `json:"connection"`

	// Primary connector
	ConnectorStatus string `json:"connector_status"`

	// Aggregate meter values
	EnergyImport   *float64 `json:"energy_import_wh"`
	ActivePower    *float64 `json:"active_power_w"`
	CurrentImport  *float64 `json:"current_import_a"`
	CurrentOffered *float64 `json:"current_offered_a"`
	Voltage        *float64 `json:"voltage_v"`
	Frequency      *float64 `json:"frequency_hz"`
	Temperature    *float64 `json:"temperature_c"`

	Partial bool `json:"partial"`

	PhaseReadings []PhaseReading `gorm:"foreignKey:ReadingID" json:"phase_readings,omitempty"`
}

// PhaseReading holds one phase of a multi-phase meter report.
type PhaseReading struct {
	gorm.Model
	ReadingID uint `gorm:"index" json:"-"`
	Phase     int  `json:"phase"`

	EnergyImport   *float64 `json:"energy_import_wh"`
	ActivePower    *float64 `json:"active_power_w"`
	CurrentImport  *float64 `json:"current_import_a"`
	CurrentOffered *float64 `json:"current_offered_a"`
	Voltage        *float64 `json:"voltage_v"`
}

type DailyStats struct {
	Date          time.Time `json:"date"`
	StationID     string    `json:"station_id"`
	MaxPower      float64   `json:"max_power_w"`
	EnergyWh      float64   `json:"energy_wh"`
	ReadingsCount int64     `json:"readings_count"`
}
