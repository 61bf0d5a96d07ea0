// internal/config/normalize.go
package config

import "fmt"

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	m := &cfg.Monitor

	// Serial defaults match the deployed DMF meters: 9600 8E1, 1s reads.
	if m.Serial.BaudRate == 0 {
		m.Serial.BaudRate = 9600
	}
	if m.Serial.DataBits == 0 {
		m.Serial.DataBits = 8
	}
	if m.Serial.Parity == "" {
		m.Serial.Parity = "E"
	}
	if m.Serial.StopBits == 0 {
		m.Serial.StopBits = 1
	}
	if m.Serial.TimeoutMs == 0 {
		m.Serial.TimeoutMs = 1000
	}
	if m.Serial.OpenRetries == 0 {
		m.Serial.OpenRetries = 3
	}
	if m.Serial.OpenRetryDelayMs == 0 {
		m.Serial.OpenRetryDelayMs = 2000
	}

	if m.Poll.IntervalMs == 0 {
		m.Poll.IntervalMs = 10000
	}
	if m.Poll.MaxRetries == 0 {
		m.Poll.MaxRetries = 2
	}
	if m.Poll.InterFrameDelayMs == 0 {
		m.Poll.InterFrameDelayMs = 200
	}

	for i := range m.Meters {
		mt := &m.Meters[i]
		if mt.Name == "" {
			mt.Name = fmt.Sprintf("Meter %d", mt.ID)
		}
		if mt.PowerFailLabel == "" {
			mt.PowerFailLabel = "POWER_FAIL"
		}
	}

	if m.Log.Level == "" {
		m.Log.Level = "info"
	}

	if m.Storage.LogIntervalS == 0 {
		m.Storage.LogIntervalS = 60
	}
	if m.Storage.DBPath != "" && m.Storage.DailyDBPath == "" {
		m.Storage.DailyDBPath = m.Storage.DBPath + ".daily"
	}

	if m.MQTT.ClientID == "" {
		m.MQTT.ClientID = "substation-monitor"
	}
	if m.MQTT.Topic == "" {
		m.MQTT.Topic = "substation"
	}
}
