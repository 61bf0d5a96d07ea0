// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

type MonitorConfig struct {
	Serial    SerialConfig          `yaml:"serial"`
	Poll      PollConfig            `yaml:"poll"`
	Meters    []MeterConfig         `yaml:"meters"`
	Registers []RegisterConfig      `yaml:"registers"`
	Ranges    map[string]RangeConfig `yaml:"ranges"`
	Log       LogConfig             `yaml:"log"`
	Storage   StorageConfig         `yaml:"storage"`
	MQTT      MQTTConfig            `yaml:"mqtt"`
	Web       WebConfig             `yaml:"web"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port             string `yaml:"port"`
	BaudRate         int    `yaml:"baud_rate"`
	DataBits         int    `yaml:"data_bits"`
	Parity           string `yaml:"parity"` // N, E, O
	StopBits         int    `yaml:"stop_bits"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	OpenRetries      int    `yaml:"open_retries"`
	OpenRetryDelayMs int    `yaml:"open_retry_delay_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs        int      `yaml:"interval_ms"`
	MaxRetries        int      `yaml:"max_retries"`
	InterFrameDelayMs int      `yaml:"inter_frame_delay_ms"`
	Aggregates        []string `yaml:"aggregates"`
}

// ---- METERS ----

type MeterConfig struct {
	ID   uint8  `yaml:"id"`
	Name string `yaml:"name"`

	// PowerFailLabel overrides the status wording used when the meter
	// reports zero aggregate power while communication is healthy.
	PowerFailLabel string `yaml:"power_fail_label"`
}

// ---- REGISTER MAP OVERRIDE ----

// RegisterConfig overrides the built-in register layout when present.
type RegisterConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"` // float32, int16, uint16, int32, uint32
	Address     uint16 `yaml:"address"`
	WordSwapped bool   `yaml:"word_swapped"`
}

// RangeConfig is an inclusive validation range. A nil max means +inf.
type RangeConfig struct {
	Min float64  `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// ---- LOG ----

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// ---- SINKS ----

// StorageConfig drives the CSV and SQLite collaborators.
// An empty path disables the corresponding sink.
type StorageConfig struct {
	CSVFile      string `yaml:"csv_file"`
	DBPath       string `yaml:"db_path"`
	DailyDBPath  string `yaml:"daily_db_path"`
	LogIntervalS int    `yaml:"log_interval_s"`
}

// MQTTConfig drives the alert publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// WebConfig drives the dashboard endpoint. An empty listen disables it.
type WebConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads and decodes the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	return &cfg, nil
}
