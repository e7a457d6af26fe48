package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceSim    = "sim"
	SourceSerial = "serial"
)

// Console kinds.
const (
	ConsoleStdout = "stdout"
	ConsoleSerial = "serial"
)

// MaxSequence is the highest sequencer index of the converter.
const MaxSequence = 3

// Config represents the application configuration.
type Config struct {
	Sampler SamplerConfig `yaml:"sampler"`
	Source  SourceConfig  `yaml:"source"`
	Console ConsoleConfig `yaml:"console"`
	Sim     SimConfig     `yaml:"sim"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
}

// SamplerConfig contains the sampling cycle parameters.
type SamplerConfig struct {
	Sequence   uint8         `yaml:"sequence"`    // Sequencer used for the single-step conversion
	Period     time.Duration `yaml:"period"`      // Delay between reports
	PollBudget time.Duration `yaml:"poll_budget"` // Max wait for completion (0 = wait forever)
	Arithmetic string        `yaml:"arithmetic"`  // "fixed" or "float"
	Banner     bool          `yaml:"banner"`      // Print the setup banner before sampling
}

// SourceConfig selects where conversions come from.
type SourceConfig struct {
	Kind     string `yaml:"kind"` // "sim" or "serial"
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ConsoleConfig selects where report lines go.
type ConsoleConfig struct {
	Kind       string `yaml:"kind"` // "stdout" or "serial"
	Port       string `yaml:"port"`
	BaudRate   int    `yaml:"baud_rate"`
	LineEnding string `yaml:"line_ending"`
}

// SimConfig contains simulated converter configuration.
type SimConfig struct {
	DieTemperature float64  `yaml:"die_temperature"` // Modelled die temperature (°C)
	NoiseLevel     float64  `yaml:"noise_level"`     // Peak noise (°C)
	Latency        int      `yaml:"latency"`         // Polls before a conversion completes
	Script         []uint16 `yaml:"script"`          // Codes replayed before the model takes over
	Stuck          bool     `yaml:"stuck"`           // Never raise the completion flag
}

// MQTTConfig contains telemetry broker configuration.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Station     string `yaml:"station"`
	QueueSize   int    `yaml:"queue_size"`

	KeepAlive            time.Duration `yaml:"keep_alive"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	RetryInterval        time.Duration `yaml:"retry_interval"`         // Delay between initial connect attempts
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"` // Backoff cap after a lost connection
	PublishTimeout       time.Duration `yaml:"publish_timeout"`
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Sequence:   3,
			Period:     250 * time.Millisecond,
			PollBudget: 0,
			Arithmetic: "fixed",
			Banner:     true,
		},
		Source: SourceConfig{
			Kind:     SourceSim,
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Console: ConsoleConfig{
			Kind:       ConsoleStdout,
			Port:       "/dev/ttyUSB0",
			BaudRate:   9600,
			LineEnding: "\n",
		},
		Sim: SimConfig{
			DieTemperature: 25.0,
			NoiseLevel:     0.5,
			Latency:        2,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "localhost",
			Port:        1883,
			ClientID:    "gotemp",
			TopicPrefix: "gotemp",
			Station:     "station-1",
			QueueSize:   16,

			KeepAlive:            30 * time.Second,
			PingTimeout:          10 * time.Second,
			RetryInterval:        5 * time.Second,
			MaxReconnectInterval: time.Minute,
			PublishTimeout:       5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every inconsistent field.
func (c *Config) Validate() error {
	var errs []error

	if c.Sampler.Sequence > MaxSequence {
		errs = append(errs, fmt.Errorf("sampler.sequence: %d out of range 0-%d", c.Sampler.Sequence, MaxSequence))
	}
	if c.Sampler.Period <= 0 {
		errs = append(errs, errors.New("sampler.period must be > 0"))
	}
	if c.Sampler.PollBudget < 0 {
		errs = append(errs, errors.New("sampler.poll_budget must be >= 0"))
	}
	switch c.Sampler.Arithmetic {
	case "fixed", "float":
	default:
		errs = append(errs, fmt.Errorf("sampler.arithmetic: unknown %q", c.Sampler.Arithmetic))
	}

	switch c.Source.Kind {
	case SourceSim:
	case SourceSerial:
		if c.Source.Port == "" {
			errs = append(errs, errors.New("source.port required for serial source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown %q", c.Source.Kind))
	}

	switch c.Console.Kind {
	case ConsoleStdout:
	case ConsoleSerial:
		if c.Console.Port == "" {
			errs = append(errs, errors.New("console.port required for serial console"))
		}
		if c.Source.Kind == SourceSerial && c.Console.Port == c.Source.Port {
			errs = append(errs, errors.New("console.port and source.port must differ"))
		}
	default:
		errs = append(errs, fmt.Errorf("console.kind: unknown %q", c.Console.Kind))
	}

	if c.Sim.Latency < 0 {
		errs = append(errs, errors.New("sim.latency must be >= 0"))
	}
	for i, v := range c.Sim.Script {
		if v > 4095 {
			errs = append(errs, fmt.Errorf("sim.script[%d]: %d exceeds 4095", i, v))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker required when mqtt is enabled"))
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			errs = append(errs, fmt.Errorf("mqtt.port: %d out of range", c.MQTT.Port))
		}
		if c.MQTT.KeepAlive < time.Second {
			errs = append(errs, errors.New("mqtt.keep_alive must be at least 1s"))
		}
		if c.MQTT.PingTimeout <= 0 || c.MQTT.RetryInterval <= 0 || c.MQTT.PublishTimeout <= 0 {
			errs = append(errs, errors.New("mqtt timeouts must be > 0"))
		}
		if c.MQTT.MaxReconnectInterval < c.MQTT.RetryInterval {
			errs = append(errs, errors.New("mqtt.max_reconnect_interval must not be below retry_interval"))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sampler.Period == 0 {
		c.Sampler.Period = def.Sampler.Period
	}
	if c.Sampler.Arithmetic == "" {
		c.Sampler.Arithmetic = def.Sampler.Arithmetic
	}

	if c.Source.Kind == "" {
		c.Source.Kind = def.Source.Kind
	}
	if c.Source.BaudRate == 0 {
		c.Source.BaudRate = def.Source.BaudRate
	}

	if c.Console.Kind == "" {
		c.Console.Kind = def.Console.Kind
	}
	if c.Console.BaudRate == 0 {
		c.Console.BaudRate = def.Console.BaudRate
	}
	if c.Console.LineEnding == "" {
		c.Console.LineEnding = def.Console.LineEnding
	}

	if c.MQTT.Port == 0 {
		c.MQTT.Port = def.MQTT.Port
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.MQTT.Station == "" {
		c.MQTT.Station = def.MQTT.Station
	}
	if c.MQTT.QueueSize <= 0 {
		c.MQTT.QueueSize = def.MQTT.QueueSize
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = def.MQTT.KeepAlive
	}
	if c.MQTT.PingTimeout == 0 {
		c.MQTT.PingTimeout = def.MQTT.PingTimeout
	}
	if c.MQTT.RetryInterval == 0 {
		c.MQTT.RetryInterval = def.MQTT.RetryInterval
	}
	if c.MQTT.MaxReconnectInterval == 0 {
		c.MQTT.MaxReconnectInterval = def.MQTT.MaxReconnectInterval
	}
	if c.MQTT.PublishTimeout == 0 {
		c.MQTT.PublishTimeout = def.MQTT.PublishTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
