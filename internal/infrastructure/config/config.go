package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/iotsim-core/internal/broker"
)

// Config is the root configuration structure for the simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Run      RunConfig      `yaml:"run"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RunConfig contains run control settings: how long to simulate and how
// often to tick and snapshot, all in simulated seconds.
type RunConfig struct {
	Name              string  `yaml:"name"`
	Seed              int64   `yaml:"seed"`
	DurationS         float64 `yaml:"duration_s"`
	TickIntervalS     float64 `yaml:"tick_interval_s"`
	SnapshotIntervalS float64 `yaml:"snapshot_interval_s"`
}

// ScenarioConfig describes the simulated world: area, broker parameters,
// gateways, and client devices.
type ScenarioConfig struct {
	Area             AreaConfig      `yaml:"area"`
	DutyCycleWindowS float64         `yaml:"duty_cycle_window_s"`
	Broker           BrokerConfig    `yaml:"broker"`
	Failover         FailoverConfig  `yaml:"failover"`
	Gateways         []GatewayConfig `yaml:"gateways"`
	Nodes            []NodeConfig    `yaml:"nodes"`
}

// AreaConfig is the rectangular simulation area in meters.
type AreaConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// BrokerConfig contains simulated-broker parameters.
type BrokerConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	RetryLimit    int `yaml:"retry_limit"`

	// DuplicateProb is the spurious duplicate-delivery probability. A nil
	// value selects the long-standing 0.02 default; an explicit 0 disables
	// spurious duplicates entirely.
	DuplicateProb *float64 `yaml:"duplicate_prob"`

	WAN WANConfig `yaml:"wan"`

	ReconnectBackoffMinS float64 `yaml:"reconnect_backoff_min_s"`
	ReconnectBackoffMaxS float64 `yaml:"reconnect_backoff_max_s"`
	RetransmitFloorS     float64 `yaml:"retransmit_floor_s"`
}

// WANConfig contains the default uplink parameters for traffic not bound
// to a specific gateway.
type WANConfig struct {
	LatencyMS float64 `yaml:"latency_ms"`
	JitterMS  float64 `yaml:"jitter_ms"`
	LossRate  float64 `yaml:"loss_rate"`
}

// FailoverConfig schedules a broker outage inside the run.
type FailoverConfig struct {
	Enabled bool    `yaml:"enabled"`
	AtS     float64 `yaml:"at_s"`
	DownS   float64 `yaml:"down_s"`
}

// GatewayConfig places one gateway, with its uplink parameters and an
// optional movement profile for vehicle-mounted gateways.
type GatewayConfig struct {
	ID       string         `yaml:"id"`
	X        float64        `yaml:"x"`
	Y        float64        `yaml:"y"`
	RangeM   float64        `yaml:"range_m"`
	WAN      WANConfig      `yaml:"wan"`
	Mobility MobilityConfig `yaml:"mobility"`
}

// MobilityConfig selects a movement pattern. An empty pattern means
// stationary.
type MobilityConfig struct {
	Pattern  string  `yaml:"pattern"`
	SpeedMPS float64 `yaml:"speed_mps"`
}

// NodeConfig describes one simulated client device.
type NodeConfig struct {
	ID           string `yaml:"id"`
	Radio        string `yaml:"radio"`
	Topic        string `yaml:"topic"`
	QoS          int    `yaml:"qos"`
	PayloadBytes int    `yaml:"payload_bytes"`
	Retain       bool   `yaml:"retain"`

	PublishIntervalS float64 `yaml:"publish_interval_s"`
	CleanSession     bool    `yaml:"clean_session"`
	KeepAliveS       float64 `yaml:"keep_alive_s"`

	Gateway           string  `yaml:"gateway"`
	DutyCycleOverride float64 `yaml:"duty_cycle_override"`
	BatteryMJ         float64 `yaml:"battery_mj"`

	// Position pins the starting coordinates; nil means a seeded random
	// placement inside the area.
	Position *AreaConfig `yaml:"position"`

	Mobility      MobilityConfig       `yaml:"mobility"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	Will          *WillConfig          `yaml:"will"`
}

// SubscriptionConfig is one topic filter a node subscribes to on connect.
type SubscriptionConfig struct {
	Filter string `yaml:"filter"`
	QoS    int    `yaml:"qos"`
}

// WillConfig is a node's last-will registration.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     int    `yaml:"qos"`
}

// DatabaseConfig contains SQLite run-store settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB snapshot-sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MirrorConfig contains settings for mirroring snapshots to a real MQTT
// broker for live dashboards.
type MirrorConfig struct {
	Enabled   bool                  `yaml:"enabled"`
	Broker    MirrorBrokerConfig    `yaml:"broker"`
	Auth      MirrorAuthConfig      `yaml:"auth"`
	QoS       int                   `yaml:"qos"`
	Reconnect MirrorReconnectConfig `yaml:"reconnect"`
}

// MirrorBrokerConfig contains MQTT broker connection details.
type MirrorBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MirrorAuthConfig contains MQTT authentication credentials.
type MirrorAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MirrorReconnectConfig contains MQTT reconnection settings, in seconds.
type MirrorReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket snapshot-stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IOTSIM_SECTION_KEY
// For example: IOTSIM_DATABASE_PATH, IOTSIM_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults. A default config has no
// nodes; the scenario section must come from the file.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Name:              "iotsim",
			Seed:              1,
			DurationS:         600,
			TickIntervalS:     1,
			SnapshotIntervalS: 10,
		},
		Scenario: ScenarioConfig{
			Area:             AreaConfig{X: 200, Y: 200},
			DutyCycleWindowS: 3600,
			Broker: BrokerConfig{
				QueueCapacity: 1000,
				RetryLimit:    3,
				WAN: WANConfig{
					LatencyMS: 20,
					JitterMS:  10,
					LossRate:  0.01,
				},
				ReconnectBackoffMinS: 0.5,
				ReconnectBackoffMaxS: 5.0,
				RetransmitFloorS:     2.0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/iotsim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Mirror: MirrorConfig{
			Broker: MirrorBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iotsim-core",
			},
			QoS: 1,
			Reconnect: MirrorReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				Path:           "/ws",
				MaxMessageSize: 65536,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOTSIM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Run
	if v := os.Getenv("IOTSIM_RUN_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Run.Seed = seed
		}
	}

	// Database
	if v := os.Getenv("IOTSIM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Mirror broker
	if v := os.Getenv("IOTSIM_MIRROR_HOST"); v != "" {
		cfg.Mirror.Broker.Host = v
	}
	if v := os.Getenv("IOTSIM_MIRROR_USERNAME"); v != "" {
		cfg.Mirror.Auth.Username = v
	}
	if v := os.Getenv("IOTSIM_MIRROR_PASSWORD"); v != "" {
		cfg.Mirror.Auth.Password = v
	}

	// API
	if v := os.Getenv("IOTSIM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IOTSIM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("IOTSIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// knownRadios mirrors the radio identifiers the PHY layer supports.
var knownRadios = map[string]bool{"ble": true, "wifi": true, "zigbee": true}

// knownPatterns mirrors the movement patterns the mobility layer supports.
var knownPatterns = map[string]bool{"": true, "stationary": true, "grid": true, "rwp": true}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Run validation
	if c.Run.DurationS <= 0 {
		errs = append(errs, "run.duration_s must be positive")
	}
	if c.Run.TickIntervalS <= 0 {
		errs = append(errs, "run.tick_interval_s must be positive")
	}
	if c.Run.SnapshotIntervalS <= 0 {
		errs = append(errs, "run.snapshot_interval_s must be positive")
	}

	// Scenario validation
	if c.Scenario.Area.X <= 0 || c.Scenario.Area.Y <= 0 {
		errs = append(errs, "scenario.area dimensions must be positive")
	}
	if c.Scenario.Broker.QueueCapacity < 1 {
		errs = append(errs, "scenario.broker.queue_capacity must be at least 1")
	}
	if p := c.Scenario.Broker.DuplicateProb; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, "scenario.broker.duplicate_prob must be between 0 and 1")
	}
	if c.Scenario.Failover.Enabled && c.Scenario.Failover.DownS <= 0 {
		errs = append(errs, "scenario.failover.down_s must be positive when failover is enabled")
	}

	gateways := make(map[string]bool, len(c.Scenario.Gateways))
	for i, gw := range c.Scenario.Gateways {
		if gw.ID == "" {
			errs = append(errs, fmt.Sprintf("scenario.gateways[%d].id is required", i))
			continue
		}
		if gateways[gw.ID] {
			errs = append(errs, fmt.Sprintf("scenario.gateways[%d].id %q is duplicated", i, gw.ID))
		}
		gateways[gw.ID] = true
		if !knownPatterns[gw.Mobility.Pattern] {
			errs = append(errs, fmt.Sprintf("scenario.gateways[%d].mobility.pattern %q is unknown", i, gw.Mobility.Pattern))
		}
	}

	if len(c.Scenario.Nodes) == 0 {
		errs = append(errs, "scenario.nodes must not be empty")
	}
	nodes := make(map[string]bool, len(c.Scenario.Nodes))
	for i, n := range c.Scenario.Nodes {
		switch {
		case n.ID == "":
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].id is required", i))
			continue
		case nodes[n.ID]:
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].id %q is duplicated", i, n.ID))
		}
		nodes[n.ID] = true

		if !knownRadios[n.Radio] {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].radio %q is unknown", i, n.Radio))
		}
		if n.Topic == "" {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].topic is required", i))
		}
		if n.QoS < 0 || n.QoS > 1 {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].qos must be 0 or 1", i))
		}
		if n.PayloadBytes <= 0 {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].payload_bytes must be positive", i))
		}
		if n.PublishIntervalS <= 0 {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].publish_interval_s must be positive", i))
		}
		if n.Gateway != "" && !gateways[n.Gateway] {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].gateway %q is not defined", i, n.Gateway))
		}
		if !knownPatterns[n.Mobility.Pattern] {
			errs = append(errs, fmt.Sprintf("scenario.nodes[%d].mobility.pattern %q is unknown", i, n.Mobility.Pattern))
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DuplicateProbOrDefault resolves the effective spurious-duplicate
// probability: the configured value when set, the engine default otherwise.
func (b BrokerConfig) DuplicateProbOrDefault() float64 {
	if b.DuplicateProb != nil {
		return *b.DuplicateProb
	}
	return broker.DefaultDuplicateProb
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
