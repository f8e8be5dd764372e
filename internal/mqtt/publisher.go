package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"garo-monitor/internal/station"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Println("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		// The returned publisher stays usable as a no-op so callers can
		// wire it without caring whether the broker was reachable.
		return &Publisher{enabled: false}, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
	}, nil
}

// Publish pushes one station snapshot: individual scalar topics for the
// values automations typically subscribe to, plus the full snapshot as a
// retained JSON document.
func (p *Publisher) Publish(snap *station.Snapshot) error {
	if !p.enabled {
		return nil
	}

	sid := snap.Station.ID

	topics := map[string]interface{}{
		"name":       snap.Station.Name,
		"connection": snap.Station.Connection,
		"partial":    snap.Partial,
	}
	if len(snap.Connectors) > 0 {
		topics["connector_status"] = snap.Connectors[0].Status
	}
	for name, value := range scalarTopics(snap.Meter) {
		topics[name] = value
	}

	for name, value := range topics {
		topic := fmt.Sprintf("%s/%s/%s", p.topicPrefix, sid, name)
		payload := fmt.Sprintf("%v", value)
		token := p.client.Publish(topic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v", topic, token.Error())
		}
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	snapTopic := fmt.Sprintf("%s/%s/snapshot", p.topicPrefix, sid)
	token := p.client.Publish(snapTopic, 0, true, snapJSON)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish snapshot: %w", token.Error())
	}

	return nil
}

// scalarTopics flattens the meter report. Aggregate values publish under
// plain names, per-phase values under l1/l2/l3 suffixes. Measures the
// station never reported are skipped rather than published as zero.
func scalarTopics(report *station.MeterReport) map[string]interface{} {
	out := map[string]interface{}{}
	if report == nil {
		return out
	}

	add := func(suffix string, m station.Measurements) {
		pairs := map[string]*float64{
			"energy":          m.EnergyImport,
			"power":           m.ActivePower,
			"current":         m.CurrentImport,
			"current_offered": m.CurrentOffered,
			"voltage":         m.Voltage,
			"frequency":       m.Frequency,
			"temperature":     m.Temperature,
		}
		for name, value := range pairs {
			if value != nil {
				out[name+suffix] = *value
			}
		}
	}

	switch report.Kind {
	case station.MeterAggregate:
		if report.Aggregate != nil {
			add("", report.Aggregate.Measurements)
		}
	case station.MeterPerPhase:
		for _, reading := range report.Phases {
			add(fmt.Sprintf("_l%d", reading.Phase), reading.Measurements)
		}
	}
	return out
}

// PublishDiscovery announces the station's sensors to Home Assistant via
// MQTT discovery so the entities appear without manual configuration.
func (p *Publisher) PublishDiscovery(snap *station.Snapshot) error {
	if !p.enabled {
		return nil
	}

	sid := snap.Station.ID

	sensors := []struct {
		Name        string
		ID          string
		Unit        string
		DeviceClass string
	}{
		{"Energy", "energy", "Wh", "energy"},
		{"Power", "power", "W", "power"},
		{"Current", "current", "A", "current"},
		{"Current Offered", "current_offered", "A", "current"},
		{"Voltage", "voltage", "V", "voltage"},
		{"Frequency", "frequency", "Hz", "frequency"},
		{"Temperature", "temperature", "°C", "temperature"},
		{"Connector Status", "connector_status", "", ""},
	}

	model := snap.Station.Model
	if model == "" {
		model = "Charging Station"
	}
	manufacturer := snap.Station.VendorName
	if manufacturer == "" {
		manufacturer = "Garo"
	}

	for _, sensor := range sensors {
		discoveryTopic := fmt.Sprintf("homeassistant/sensor/garo_%s/%s/config", sid, sensor.ID)

		config := map[string]interface{}{
			"name":        fmt.Sprintf("%s %s", snap.Station.Name, sensor.Name),
			"unique_id":   fmt.Sprintf("garo_%s_%s", sid, sensor.ID),
			"state_topic": fmt.Sprintf("%s/%s/%s", p.topicPrefix, sid, sensor.ID),
			"device": map[string]interface{}{
				"identifiers":  []string{fmt.Sprintf("garo_%s", sid)},
				"name":         snap.Station.Name,
				"manufacturer": manufacturer,
				"model":        model,
				"sw_version":   snap.Station.FirmwareVersion,
			},
		}

		if sensor.Unit != "" {
			config["unit_of_measurement"] = sensor.Unit
		}
		if sensor.DeviceClass != "" {
			config["device_class"] = sensor.DeviceClass
		}

		payload, _ := json.Marshal(config)
		token := p.client.Publish(discoveryTopic, 0, true, payload)
		token.Wait()
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
