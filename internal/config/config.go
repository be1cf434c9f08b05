// Package config provides configuration loading, environment overrides and
// validation for the bookgraph server.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the port served when nothing overrides it.
const DefaultPort = 5000

// ServerConfig holds the HTTP endpoint settings.
type ServerConfig struct {
	Port          int           `yaml:"port" validate:"min=1,max=65535"`
	GraphiQL      bool          `yaml:"graphiql"`
	Introspection bool          `yaml:"introspection"`
	Pretty        bool          `yaml:"pretty"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" validate:"gte=0"`
	CORSOrigins   []string      `yaml:"cors_origins" validate:"dive,required"`
}

// CatalogConfig controls the in-memory catalog and its resolvers.
type CatalogConfig struct {
	// SeedFile is a YAML seed; empty means the built-in catalog.
	SeedFile         string `yaml:"seed_file"`
	StrictReferences bool   `yaml:"strict_references"`
	// ParallelBatches resolves the batched relations of one depth concurrently.
	ParallelBatches  bool   `yaml:"parallel_batches"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// OTelConfig configures trace export. Tracing is off without an endpoint.
type OTelConfig struct {
	Endpoint string `yaml:"endpoint" validate:"omitempty,hostname_port"`
	Service  string `yaml:"service" validate:"required"`
}

// MetricsConfig configures the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Config is the top-level configuration structure for the bookgraph server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Log     LogConfig     `yaml:"log"`
	OTel    OTelConfig    `yaml:"otel"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns a new Config populated with default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          DefaultPort,
			GraphiQL:      true,
			Introspection: true,
			Timeout:       10 * time.Second,
			MaxBodyBytes:  1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		OTel: OTelConfig{
			Service: "bookgraph",
		},
	}
}

// Load reads a YAML configuration file on top of DefaultConfig. An empty
// path or a missing file yields the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - BOOKGRAPH_PORT, then PORT, override cfg.Server.Port
//   - BOOKGRAPH_SEED_FILE overrides cfg.Catalog.SeedFile
//   - BOOKGRAPH_LOG_LEVEL and BOOKGRAPH_LOG_FORMAT override cfg.Log
//   - BOOKGRAPH_OTEL_ENDPOINT overrides cfg.OTel.Endpoint
//   - BOOKGRAPH_METRICS_ADDR overrides cfg.Metrics.Addr
func ApplyEnvOverrides(cfg *Config) error {
	for _, name := range []string{"BOOKGRAPH_PORT", "PORT"} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", name, v)
		}
		cfg.Server.Port = port
		break
	}
	if v := os.Getenv("BOOKGRAPH_SEED_FILE"); v != "" {
		cfg.Catalog.SeedFile = v
	}
	if v := os.Getenv("BOOKGRAPH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BOOKGRAPH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BOOKGRAPH_OTEL_ENDPOINT"); v != "" {
		cfg.OTel.Endpoint = v
	}
	if v := os.Getenv("BOOKGRAPH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			errs := make([]error, len(verrs))
			for i, fe := range verrs {
				errs[i] = fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid config: %w", errors.Join(errs...))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address of the GraphQL server.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Server.Port) }
