package garo

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Wire types for the Garo Next-Gen end-user API. Timestamps stay as the
// ISO strings the API sends; parsing happens in the station layer.

type StationList struct {
	Items []StationItem `json:"items"`
}

type StationItem struct {
	ID            string        `json:"id"`
	UID           string        `json:"uid"`
	Name          string        `json:"name"`
	LoadInterface bool          `json:"load_interface"`
	ChargingUnit  ChargingUnit  `json:"charging_unit"`
	Status        StationStatus `json:"status"`
}

type ChargingUnit struct {
	ID              string `json:"id"`
	SerialNumber    string `json:"serial_number"`
	VendorName      string `json:"vendor_name"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	ModemID         string `json:"modem_id"`
	Phases          int    `json:"phases"`
}

type StationStatus struct {
	Connection                string `json:"connection"`
	Registration              string `json:"registration"`
	Installation              string `json:"installation"`
	Configuration             string `json:"configuration"`
	FirmwareUpdate            string `json:"firmware_update"`
	HeartbeatTimestamp        string `json:"heartbeat_timestamp"`
	LastFirmwareUpdateCheck   string `json:"last_firmware_update_check"`
	ConfigurationSyncRequired bool   `json:"configuration_sync_required"`
	UsingProxy                bool   `json:"using_proxy"`
	LatestFirmwareUpdateID    string `json:"latest_firmware_update_id"`
}

type ConnectorStatus struct {
	ID          string `json:"id"`
	ConnectorID int    `json:"connector_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Limited     bool   `json:"limited"`
}

// Number accepts both bare and quoted numeric values; the API is not
// consistent about which one it sends for measure values.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

type MeterValue struct {
	MeasureName   string  `json:"measure_name"`
	MeasureValue  *Number `json:"measure_value"`
	Phase         string  `json:"phase,omitempty"`
	Location      string  `json:"location,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	Time          string  `json:"time"`
	ConnectorID   int     `json:"connector_id"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Context       string  `json:"context,omitempty"`
}

type TransactionList struct {
	Items []TransactionItem `json:"items"`
}

type TransactionItem struct {
	ID          string  `json:"id"`
	State       string  `json:"state"`
	ConnectorID int     `json:"connector_id"`
	IDToken     string  `json:"id_token,omitempty"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time,omitempty"`
	MeterStart  *Number `json:"meter_start"`
	MeterStop   *Number `json:"meter_stop"`
}

type UserInfo struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Locale         string `json:"locale"`
	VirtualIDToken string `json:"virtual_id_token"`
}

type ConfigItem struct {
	Key          string  `json:"key"`
	Value        string  `json:"value"`
	Mutability   *string `json:"mutability"`
	Status       string  `json:"status,omitempty"`
	StatusReason string  `json:"status_reason,omitempty"`
	LastModified string  `json:"last_modified,omitempty"`
	LastSynced   string  `json:"last_synced_with_charging_station,omitempty"`
}

type configVariable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type commitRequest struct {
	ConfigurationVariables []configVariable `json:"configuration_variables"`
}

// CommitResponse carries the per-key outcome of a change-configuration
// action. Reason is only present on rejection.
type CommitResponse struct {
	Status map[string]string `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

type triggerRequest struct {
	RequestedMessage string `json:"requested_message"`
	ConnectorID      int    `json:"connector_id"`
}
