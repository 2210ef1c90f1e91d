package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/patterns"
	"github.com/fredhutch/phiscan/internal/risk"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Models   ModelsConfig   `yaml:"models"`
	Risk     risk.Config    `yaml:"risk"`
	Library  LibraryConfig  `yaml:"library"`
	Worker   WorkerConfig   `yaml:"worker"`
	S3       S3Config       `yaml:"s3"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EngineConfig struct {
	Workers            int  `yaml:"workers"`
	IncludeOccurrences bool `yaml:"include_occurrences"`
}

type ModelsConfig struct {
	NER      NERConfig      `yaml:"ner"`
	ZeroShot ZeroShotConfig `yaml:"zero_shot"`
	// MaxConcurrent bounds in-flight model calls across the whole
	// process, independent of the rule worker pool.
	MaxConcurrent int           `yaml:"max_concurrent"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
}

type NERConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type ZeroShotConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Labels  []string `yaml:"labels"`
}

// LibraryConfig customizes the pattern library: category overrides and
// additional patterns on top of the built-ins.
type LibraryConfig struct {
	// ReloadSchedule is a cron expression; empty disables scheduled
	// pattern reloads.
	ReloadSchedule string                 `yaml:"reload_schedule"`
	Categories     []patterns.CategoryDef `yaml:"categories"`
	Patterns       []patterns.Def         `yaml:"patterns"`
}

type WorkerConfig struct {
	ID                string        `yaml:"id"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleJobTimeout   time.Duration `yaml:"stale_job_timeout"`
	MaxObjectBytes    int64         `yaml:"max_object_bytes"`
}

type S3Config struct {
	Region        string `yaml:"region"`
	AssumeRoleARN string `yaml:"assume_role_arn"`
	ExternalID    string `yaml:"external_id"`
}

// Load reads a YAML config file, expands ${ENV} references, and applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with every default applied, for tools that
// run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "phiscan"
	}
	if c.Database.DBName == "" {
		c.Database.DBName = "phiscan"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Engine.Workers == 0 {
		c.Engine.Workers = 4
	}

	if c.Models.MaxConcurrent == 0 {
		c.Models.MaxConcurrent = 4
	}
	if c.Models.CallTimeout == 0 {
		c.Models.CallTimeout = 10 * time.Second
	}

	if c.Risk.Thresholds == (risk.Thresholds{}) {
		c.Risk.Thresholds = risk.DefaultThresholds()
	}
	if c.Risk.RuleOnlyConfidence == 0 {
		c.Risk.RuleOnlyConfidence = risk.RuleOnlyConfidence
	}

	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
	if c.Worker.HeartbeatInterval == 0 {
		c.Worker.HeartbeatInterval = 30 * time.Second
	}
	if c.Worker.StaleJobTimeout == 0 {
		c.Worker.StaleJobTimeout = 10 * time.Minute
	}
	if c.Worker.MaxObjectBytes == 0 {
		c.Worker.MaxObjectBytes = 25 << 20
	}

	if c.S3.Region == "" {
		c.S3.Region = "us-west-2"
	}
}

// BuildLibrary assembles the pattern library from the built-ins, the
// config's category overrides and patterns, and any extra definitions
// (typically rows from the pattern store). A definition that fails to
// compile is skipped with a warning so one bad pattern cannot block
// startup or pin a stale snapshot across reloads.
func (c *Config) BuildLibrary(extra []patterns.Def) (*patterns.Library, error) {
	lib, err := patterns.NewLibrary()
	if err != nil {
		return nil, err
	}
	for _, cat := range c.Library.Categories {
		lib.RegisterCategory(models.IdentifierCategory(cat.Name), cat.Priority, cat.RiskWeight)
	}
	if err := registerSkippingBad(lib, c.Library.Patterns); err != nil {
		return nil, err
	}
	if err := registerSkippingBad(lib, extra); err != nil {
		return nil, err
	}
	return lib, nil
}

func registerSkippingBad(lib *patterns.Library, defs []patterns.Def) error {
	for _, def := range defs {
		err := lib.Register(def)
		if err == nil {
			continue
		}
		var ce *patterns.CompileError
		var uv *patterns.UnknownValidatorError
		if errors.As(err, &ce) || errors.As(err, &uv) {
			slog.Warn("skipping bad pattern definition",
				"category", def.Category,
				"pattern", def.Pattern,
				"error", err)
			continue
		}
		return err
	}
	return nil
}
