package storage

import (
	"fmt"
	"time"

	"garo-monitor/internal/station"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&StationReading{}, &PhaseReading{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// SaveSnapshot flattens one snapshot into a reading row plus per-phase
// rows when the station reports phase-labeled values.
func (d *Database) SaveSnapshot(snap *station.Snapshot) error {
	reading := &StationReading{
		TakenAt:         snap.TakenAt,
		StationID:       snap.Station.ID,
		Name:            snap.Station.Name,
		SerialNumber:    snap.Station.SerialNumber,
		FirmwareVersion: snap.Station.FirmwareVersion,
		Phases:          snap.Station.Phases,
		Connection:      snap.Station.Connection,
		Partial:         snap.Partial,
	}
	if len(snap.Connectors) > 0 {
		reading.ConnectorStatus = snap.Connectors[0].Status
	}

	if snap.Meter != nil {
		switch snap.Meter.Kind {
		case station.MeterAggregate:
			if agg := snap.Meter.Aggregate; agg != nil {
				reading.EnergyImport = agg.EnergyImport
				reading.ActivePower = agg.ActivePower
				reading.CurrentImport = agg.CurrentImport
				reading.CurrentOffered = agg.CurrentOffered
				reading.Voltage = agg.Voltage
				reading.Frequency = agg.Frequency
				reading.Temperature = agg.Temperature
			}
		case station.MeterPerPhase:
			for _, phase := range snap.Meter.Phases {
				reading.PhaseReadings = append(reading.PhaseReadings, PhaseReading{
					Phase:          phase.Phase,
					EnergyImport:   phase.EnergyImport,
					ActivePower:    phase.ActivePower,
					CurrentImport:  phase.CurrentImport,
					CurrentOffered: phase.CurrentOffered,
					Voltage:        phase.Voltage,
				})
			}
		}
	}

	return d.db.Create(reading).Error
}

func (d *Database) GetLatestReading(stationID string) (*StationReading, error) {
	var reading StationReading
	result := d.db.Preload("PhaseReadings").
		Where("station_id = ?", stationID).
		Order("taken_at desc").
		First(&reading)
	if result.Error != nil {
		return nil, result.Error
	}
	return &reading, nil
}

func (d *Database) GetReadingsByRange(stationID string, from, to time.Time) ([]StationReading, error) {
	var readings []StationReading
	result := d.db.Preload("PhaseReadings").
		Where("station_id = ? AND taken_at BETWEEN ? AND ?", stationID, from, to).
		Order("taken_at desc").
		Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

func (d *Database) GetReadingsWithLimit(stationID string, limit int) ([]StationReading, error) {
	var readings []StationReading
	result := d.db.Preload("PhaseReadings").
		Where("station_id = ?", stationID).
		Order("taken_at desc").
		Limit(limit).
		Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

func (d *Database) GetDailyStats(stationID string, date time.Time) (*DailyStats, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := DailyStats{Date: startOfDay, StationID: stationID}

	var maxPower *float64
	d.db.Model(&StationReading{}).
		Where("station_id = ? AND taken_at BETWEEN ? AND ?", stationID, startOfDay, endOfDay).
		Select("MAX(active_power)").
		Scan(&maxPower)
	if maxPower != nil {
		stats.MaxPower = *maxPower
	}

	// Energy registers are cumulative; the day's energy is last minus first.
	var first, last StationReading
	firstRes := d.db.Where("station_id = ? AND taken_at BETWEEN ? AND ? AND energy_import IS NOT NULL",
		stationID, startOfDay, endOfDay).
		Order("taken_at asc").
		First(&first)
	lastRes := d.db.Where("station_id = ? AND taken_at BETWEEN ? AND ? AND energy_import IS NOT NULL",
		stationID, startOfDay, endOfDay).
		Order("taken_at desc").
		First(&last)
	if firstRes.Error == nil && lastRes.Error == nil && first.EnergyImport != nil && last.EnergyImport != nil {
		stats.EnergyWh = *last.EnergyImport - *first.EnergyImport
	}

	d.db.Model(&StationReading{}).
		Where("station_id = ? AND taken_at BETWEEN ? AND ?", stationID, startOfDay, endOfDay).
		Count(&stats.ReadingsCount)

	return &stats, nil
}

func (d *Database) CleanOldReadings(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	if err := d.db.Where("created_at < ?", cutoff).Delete(&PhaseReading{}).Error; err != nil {
		return err
	}
	return d.db.Where("taken_at < ?", cutoff).Delete(&StationReading{}).Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
