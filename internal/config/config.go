package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Config holds all run settings. Values come from defaults, then an optional
// YAML file, then environment variables.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	OutputFile string `yaml:"output_file"`

	UsernameMode  string `yaml:"username_mode"`
	FixedUsername string `yaml:"fixed_username"`
	BaseUsername  string `yaml:"base_username"`

	InputTimezone  string `yaml:"input_timezone"`
	OutputTimezone string `yaml:"output_timezone"`

	CSVColumns []string  `yaml:"csv_columns"`
	GPX        GPXConfig `yaml:"gpx"`

	MaxArchiveEntryBytes int64 `yaml:"max_archive_entry_bytes"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	SQLitePath string `yaml:"sqlite_path"`

	KafkaEnabled bool     `yaml:"kafka_enabled"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	MetricsTextfile string `yaml:"metrics_textfile"`
}

// GPXConfig holds the activity thresholds and the speed clamp for GPX tracks.
type GPXConfig struct {
	domain.Thresholds `yaml:",inline"`
	MaxSpeedKmh       float64 `yaml:"max_speed_kmh"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:        "data",
		OutputFile:     "timeline_output.csv",
		UsernameMode:   domain.UsernameFixed,
		FixedUsername:  "testuser",
		BaseUsername:   "user",
		InputTimezone:  "Asia/Tokyo",
		OutputTimezone: "UTC",
		CSVColumns:     append([]string(nil), domain.DefaultColumns...),
		GPX: GPXConfig{
			Thresholds: domain.Thresholds{
				WalkingMax:    4,
				HikingMax:     6,
				RunningMax:    15,
				CyclingMax:    40,
				HikingMinGain: 100,
			},
			MaxSpeedKmh: 200,
		},
		MaxArchiveEntryBytes: 256 << 20,
		LogLevel:             "info",
		LogFormat:            "text",
		KafkaBrokers:         []string{"localhost:9092"},
		KafkaTopic:           "location-records",
	}
}

// Load builds the configuration. path names an optional YAML file; when empty,
// GEOETL_CONFIG is consulted. A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GEOETL_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DataDir = sharedcfg.EnvOrDefault("DATA_DIR", c.DataDir)
	c.OutputFile = sharedcfg.EnvOrDefault("OUTPUT_FILE", c.OutputFile)
	c.UsernameMode = sharedcfg.EnvOrDefault("USERNAME_MODE", c.UsernameMode)
	c.FixedUsername = sharedcfg.EnvOrDefault("FIXED_USERNAME", c.FixedUsername)
	c.BaseUsername = sharedcfg.EnvOrDefault("BASE_USERNAME", c.BaseUsername)
	c.InputTimezone = sharedcfg.EnvOrDefault("INPUT_TIMEZONE", c.InputTimezone)
	c.OutputTimezone = sharedcfg.EnvOrDefault("OUTPUT_TIMEZONE", c.OutputTimezone)
	c.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.SQLitePath = sharedcfg.EnvOrDefault("SQLITE_PATH", c.SQLitePath)
	c.KafkaTopic = sharedcfg.EnvOrDefault("KAFKA_TOPIC", c.KafkaTopic)
	c.MetricsTextfile = sharedcfg.EnvOrDefault("METRICS_TEXTFILE", c.MetricsTextfile)

	if v := os.Getenv("CSV_COLUMNS"); v != "" {
		c.CSVColumns = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("invalid KAFKA_ENABLED")
		}
		c.KafkaEnabled = enabled
	}
	if v := os.Getenv("MAX_ARCHIVE_ENTRY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.New("invalid MAX_ARCHIVE_ENTRY_BYTES")
		}
		c.MaxArchiveEntryBytes = n
	}

	floats := []struct {
		env string
		dst *float64
	}{
		{"GPX_WALKING_MAX", &c.GPX.WalkingMax},
		{"GPX_HIKING_MAX", &c.GPX.HikingMax},
		{"GPX_RUNNING_MAX", &c.GPX.RunningMax},
		{"GPX_CYCLING_MAX", &c.GPX.CyclingMax},
		{"GPX_HIKING_MIN_GAIN", &c.GPX.HikingMinGain},
		{"GPX_MAX_SPEED_KMH", &c.GPX.MaxSpeedKmh},
	}
	for _, f := range floats {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s", f.env)
		}
		*f.dst = n
	}
	return nil
}

// Validate reports the first setting that cannot drive a run.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.OutputFile == "" {
		return errors.New("output_file is required")
	}

	switch c.UsernameMode {
	case domain.UsernameFixed, domain.UsernameFilename, domain.UsernameCustom:
	default:
		return fmt.Errorf("username_mode must be one of fixed, filename, custom, got %q", c.UsernameMode)
	}
	if c.UsernameMode == domain.UsernameFixed && c.FixedUsername == "" {
		return errors.New("fixed_username is required when username_mode is fixed")
	}

	if _, err := domain.NewNormalizer(c.InputTimezone, c.OutputTimezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	if len(c.CSVColumns) == 0 {
		return errors.New("csv_columns must not be empty")
	}

	t := c.GPX.Thresholds
	if t.WalkingMax <= 0 || t.WalkingMax >= t.HikingMax || t.HikingMax >= t.RunningMax || t.RunningMax >= t.CyclingMax {
		return errors.New("gpx thresholds must be positive and strictly increasing: walking_max < hiking_max < running_max < cycling_max")
	}
	if t.HikingMinGain < 0 {
		return errors.New("gpx.hiking_min_gain must not be negative")
	}
	if c.GPX.MaxSpeedKmh < 0 {
		return errors.New("gpx.max_speed_kmh must not be negative")
	}

	if c.MaxArchiveEntryBytes <= 0 {
		return errors.New("max_archive_entry_bytes must be positive")
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("kafka_brokers is required when kafka_enabled is true")
		}
		if strings.TrimSpace(c.KafkaTopic) == "" {
			return errors.New("kafka_topic is required when kafka_enabled is true")
		}
	}
	return nil
}

// Resolver returns the username resolver for the configured mode.
func (c *Config) Resolver() domain.UsernameResolver {
	return domain.UsernameResolver{
		Mode:  c.UsernameMode,
		Fixed: c.FixedUsername,
		Base:  c.BaseUsername,
	}
}

// splitList splits a comma-separated list, trimming spaces and dropping
// empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
