// Package config loads the bridge configuration file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/leandrodaf/midibridge/internal/bridge"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultPath is used when no config file is given.
const DefaultPath = "midi.yaml"

// DefaultPort is used when server.port is absent.
const DefaultPort = 8080

// Config represents the application configuration
type Config struct {
	Server     *ServerConfig `yaml:"server"`
	MIDISource *PortsConfig  `yaml:"midiSource"`
	MIDISink   *PortsConfig  `yaml:"midiSink"`
	Strict     bool          `yaml:"strict"`
	Driver     string        `yaml:"driver"`    // rtmidi, native or fake
	QueueSize  int           `yaml:"queueSize"` // Event loop capacity
	Logging    LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the WebSocket listener settings
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        *int   `yaml:"port"`        // Default 8080; 0 picks an ephemeral port
	Path        string `yaml:"path"`        // WebSocket endpoint (default: /)
	MetricsPath string `yaml:"metricsPath"` // Prometheus endpoint, empty disables it
	SendBuffer  int    `yaml:"sendBuffer"`  // Frames queued per client before dropping
}

// PortsConfig lists hardware port names for one direction
type PortsConfig struct {
	Ports    []string `yaml:"ports"`
	LogLevel int      `yaml:"logLevel"` // Traffic verbosity, 0 disables per-message logs
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error (default: info)
	File   string `yaml:"file"`   // Log to this file instead of stderr
	Format string `yaml:"format"` // json or console (default: console)
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Driver == "" {
		c.Driver = string(contracts.RtMIDIDriver)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Server == nil {
		return
	}
	if c.Server.Path == "" {
		c.Server.Path = "/"
	}
	if c.Server.Port == nil {
		port := DefaultPort
		c.Server.Port = &port
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	if c.Server == nil {
		invalid("server is required")
	} else {
		if c.Server.Port != nil && (*c.Server.Port < 0 || *c.Server.Port > 65535) {
			invalid("server.port %d out of range", *c.Server.Port)
		}
		if !strings.HasPrefix(c.Server.Path, "/") {
			invalid("server.path %q must start with /", c.Server.Path)
		}
		if c.Server.MetricsPath != "" && !strings.HasPrefix(c.Server.MetricsPath, "/") {
			invalid("server.metricsPath %q must start with /", c.Server.MetricsPath)
		}
		if c.Server.MetricsPath != "" && c.Server.MetricsPath == c.Server.Path {
			invalid("server.metricsPath must differ from server.path")
		}
		if c.Server.SendBuffer < 0 {
			invalid("server.sendBuffer must not be negative")
		}
	}

	for _, section := range []struct {
		name  string
		ports *PortsConfig
	}{{"midiSource", c.MIDISource}, {"midiSink", c.MIDISink}} {
		if section.ports == nil {
			continue
		}
		if len(section.ports.Ports) == 0 {
			invalid("%s.ports is required", section.name)
		}
		for i, p := range section.ports.Ports {
			if strings.TrimSpace(p) == "" {
				invalid("%s.ports[%d] is empty", section.name, i)
			}
		}
		if section.ports.LogLevel < 0 {
			invalid("%s.logLevel must not be negative", section.name)
		}
	}

	switch contracts.DriverName(c.Driver) {
	case contracts.RtMIDIDriver, contracts.NativeDriver, contracts.FakeDriver:
	default:
		invalid("unknown driver %q", c.Driver)
	}
	if c.QueueSize < 0 {
		invalid("queueSize must not be negative")
	}
	if _, lerr := ParseLevel(c.Logging.Level); lerr != nil {
		invalid("%v", lerr)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		invalid("logging.format %q must be json or console", c.Logging.Format)
	}

	return err
}

// Addr returns the listen address of the WebSocket server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(*c.Server.Port))
}

// Bridge converts the port sections into a bridge configuration.
func (c *Config) Bridge() bridge.Config {
	bc := bridge.Config{Strict: c.Strict, QueueSize: c.QueueSize}
	if c.MIDISource != nil {
		bc.Sources = c.MIDISource.Ports
		bc.SourceVerbosity = c.MIDISource.LogLevel
	}
	if c.MIDISink != nil {
		bc.Sinks = c.MIDISink.Ports
		bc.SinkVerbosity = c.MIDISink.LogLevel
	}
	return bc
}

// Verbose reports whether any section asked for traffic logs.
func (c *Config) Verbose() bool {
	return (c.MIDISource != nil && c.MIDISource.LogLevel > 0) || (c.MIDISink != nil && c.MIDISink.LogLevel > 0)
}

// ParseLevel maps a level name to a contracts.LogLevel.
func ParseLevel(s string) (contracts.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return contracts.DebugLevel, nil
	case "info", "":
		return contracts.InfoLevel, nil
	case "warn", "warning":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	}
	return contracts.InfoLevel, fmt.Errorf("unknown log level %q", s)
}
