package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/statetree/internal/errors"
)

const (
	// ConfigFileName is the configuration file looked up by Load.
	ConfigFileName = "statetree.yaml"

	DefaultFormat    = "json"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultNamespace = "statetree"
)

// Config is the CLI configuration.
type Config struct {
	// Schema is the default schema file for commands given no --schema.
	Schema string `yaml:"schema,omitempty"`

	// Format is the default wire format of state and diff files.
	Format string `yaml:"format,omitempty" validate:"oneof=json cbor"`

	Log      LogConfig      `yaml:"log,omitempty"`
	Snapshot SnapshotConfig `yaml:"snapshot,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
	Tracing  TracingConfig  `yaml:"tracing,omitempty"`

	configPath string
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"oneof=text json"`
}

// SnapshotConfig configures snapshot output.
type SnapshotConfig struct {
	// Digest prints the BLAKE3 fingerprint of every snapshot written.
	Digest bool `yaml:"digest,omitempty"`

	// Compress zstd-compresses snapshot files.
	Compress bool `yaml:"compress,omitempty"`

	// Indent pretty-prints JSON output.
	Indent bool `yaml:"indent,omitempty"`
}

// MetricsConfig configures the Prometheus dump after each command.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Namespace string `yaml:"namespace,omitempty" validate:"omitempty,promname"`
}

// TracingConfig configures write tracing.
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	TracerName string `yaml:"tracerName,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("promname", func(fl validator.FieldLevel) bool {
		return isMetricName(fl.Field().String())
	})
	return v
}

// isMetricName reports whether s is a valid Prometheus name component.
func isMetricName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// New returns a configuration holding the defaults.
func New() *Config {
	return &Config{
		Format: DefaultFormat,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Snapshot: SnapshotConfig{
			Indent: true,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultNamespace,
		},
	}
}

// Load reads statetree.yaml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path. Keys absent from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C010").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("C011").Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("C011").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			Wrap(err)
	}
	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or statetree.yaml in the working directory when
// path is empty. A missing default file yields the defaults; a missing
// explicit file is an error.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if !Exists(".") {
		return New(), nil
	}
	return Load(".")
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("C011").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("C011").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// SchemaPath resolves Schema relative to the config file.
func (c *Config) SchemaPath() string {
	if c.Schema == "" || filepath.IsAbs(c.Schema) || c.configPath == "" {
		return c.Schema
	}
	return filepath.Join(c.Dir(), c.Schema)
}

// applyDefaults fills in values the file set to empty.
func (c *Config) applyDefaults() {
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultNamespace
	}
}

// Validate checks every field against its constraint.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, describe(fe))
		}
	} else {
		fields = append(fields, err.Error())
	}
	return errors.New("C012").
		WithDetail(strings.Join(fields, "; ")).
		Wrap(err)
}

func describe(fe validator.FieldError) string {
	// Namespace is "Config.log.level"; drop the struct name.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "promname":
		return field + " is not a valid metric name"
	default:
		return field + " failed " + fe.Tag()
	}
}

// Exists reports whether dir holds a configuration file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
