// Package config loads cachespace settings from a YAML file and CACHESPACE_*
// environment variables and turns them into engine options.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/agentuity/go-cachespace/engine"
	"github.com/agentuity/go-cachespace/logger"
	"github.com/agentuity/go-cachespace/resilience"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ErrInvalid is wrapped by every validation failure returned from Load.
var ErrInvalid = errors.New("config: invalid value")

// Environment variables applied on top of the file.
const (
	EnvPath         = "CACHESPACE_PATH"
	EnvMemoryTTL    = "CACHESPACE_MEMORY_EXPIRES"
	EnvDiskTTL      = "CACHESPACE_DISK_EXPIRES"
	EnvExpiryCheck  = "CACHESPACE_EXPIRY_CHECK"
	EnvQueryTimeout = "CACHESPACE_QUERY_TIMEOUT"
	EnvShards       = "CACHESPACE_SHARDS"
	EnvDiskQuota    = "CACHESPACE_DISK_QUOTA"
	EnvRedisURL     = "CACHESPACE_REDIS_URL"
	EnvRedisPrefix  = "CACHESPACE_REDIS_PREFIX"
)

// Duration is a time.Duration that reads and writes the extended syntax of
// go-str2duration, so "1d12h" and "2w" are accepted.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return str2duration.String(time.Duration(d)), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func parseDuration(s string) (Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	v, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalid, "duration %q: %s", s, err)
	}
	if v < 0 {
		return 0, errors.Wrapf(ErrInvalid, "duration %q must be >= 0", s)
	}
	return Duration(v), nil
}

type Redis struct {
	URL    string `yaml:"url,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	// MaxFailures and OpenFor tune the circuit breaker in front of Redis.
	MaxFailures int      `yaml:"max_failures,omitempty"`
	OpenFor     Duration `yaml:"open_for,omitempty"`
}

// Config holds every tunable of the engine and the CLI.
type Config struct {
	Path          string   `yaml:"path,omitempty"`
	LogLevel      string   `yaml:"log_level,omitempty"`
	MemoryExpires Duration `yaml:"memory_expires,omitempty"`
	DiskExpires   Duration `yaml:"disk_expires,omitempty"`
	ExpiryCheck   Duration `yaml:"expiry_check,omitempty"`
	QueryTimeout  Duration `yaml:"query_timeout,omitempty"`
	Shards        int      `yaml:"shards,omitempty"`
	DiskQuota     string   `yaml:"disk_quota,omitempty"`
	Redis         Redis    `yaml:"redis,omitempty"`

	DiskQuotaBytes resource.Quantity `yaml:"-"`
}

// Load reads the YAML file at path, when path is not empty, then applies the
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(buf, &c); err != nil {
			return nil, errors.Wrapf(err, "config: decode %s", path)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvPath); ok {
		c.Path = v
	}
	if v, ok := os.LookupEnv(logger.EnvLevel); ok {
		c.LogLevel = v
	}
	for name, dst := range map[string]*Duration{
		EnvMemoryTTL:    &c.MemoryExpires,
		EnvDiskTTL:      &c.DiskExpires,
		EnvExpiryCheck:  &c.ExpiryCheck,
		EnvQueryTimeout: &c.QueryTimeout,
	} {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return errors.Wrap(err, name)
		}
		*dst = d
	}
	if v, ok := os.LookupEnv(EnvShards); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s: %s", EnvShards, err)
		}
		c.Shards = n
	}
	if v, ok := os.LookupEnv(EnvDiskQuota); ok {
		c.DiskQuota = v
	}
	if v, ok := os.LookupEnv(EnvRedisURL); ok {
		c.Redis.URL = v
	}
	if v, ok := os.LookupEnv(EnvRedisPrefix); ok {
		c.Redis.Prefix = v
	}
	return nil
}

// Validate checks the config and fills the derived fields.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, ok := logger.ParseLevel(c.LogLevel); !ok {
			return errors.Wrapf(ErrInvalid, "log_level %q", c.LogLevel)
		}
	}
	if c.Redis.MaxFailures < 0 {
		return errors.Wrapf(ErrInvalid, "redis.max_failures must be >= 0, got %d", c.Redis.MaxFailures)
	}
	if c.Shards < 0 {
		return errors.Wrapf(ErrInvalid, "shards must be >= 0, got %d", c.Shards)
	}
	if c.DiskQuota != "" {
		q, err := resource.ParseQuantity(c.DiskQuota)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "disk_quota %q: %s", c.DiskQuota, err)
		}
		if q.Sign() < 0 {
			return errors.Wrapf(ErrInvalid, "disk_quota must be >= 0, got %q", c.DiskQuota)
		}
		c.DiskQuotaBytes = q
	}
	if c.Redis.URL != "" {
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return errors.Wrapf(ErrInvalid, "redis.url: %s", err)
		}
	}
	return nil
}

// Level returns the configured log level, or the level from the environment
// when none is set.
func (c *Config) Level() logger.LogLevel {
	if level, ok := logger.ParseLevel(c.LogLevel); ok {
		return level
	}
	return logger.GetLevelFromEnv()
}

// EngineOptions converts the config into engine options. When a Redis URL is
// configured the returned client backs the Redis tier and must be closed by the
// caller once the engine is closed; otherwise it is nil.
func (c *Config) EngineOptions(log logger.Logger) ([]engine.Option, *redis.Client, error) {
	opts := []engine.Option{
		engine.WithMemoryExpires(time.Duration(c.MemoryExpires)),
		engine.WithDiskExpires(time.Duration(c.DiskExpires)),
	}
	if log != nil {
		opts = append(opts, engine.WithLogger(log))
	}
	if c.ExpiryCheck > 0 {
		opts = append(opts, engine.WithExpiryCheck(time.Duration(c.ExpiryCheck)))
	}
	if c.QueryTimeout > 0 {
		opts = append(opts, engine.WithQueryTimeout(time.Duration(c.QueryTimeout)))
	}
	if c.Shards > 0 {
		opts = append(opts, engine.WithShards(c.Shards))
	}
	if c.Redis.URL == "" {
		return opts, nil, nil
	}
	ropts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalid, "redis.url: %s", err)
	}
	client := redis.NewClient(ropts)
	opts = append(opts, engine.WithRedis(client, c.Redis.Prefix))
	if c.Redis.MaxFailures > 0 || c.Redis.OpenFor > 0 {
		bc := resilience.DefaultConfig()
		bc.CallTimeout = time.Duration(c.QueryTimeout)
		if c.Redis.MaxFailures > 0 {
			bc.MaxFailures = c.Redis.MaxFailures
		}
		if c.Redis.OpenFor > 0 {
			bc.OpenFor = time.Duration(c.Redis.OpenFor)
		}
		opts = append(opts, engine.WithRedisBreaker(bc))
	}
	return opts, client, nil
}

// Marshal returns c encoded as YAML.
func (c *Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	return buf, nil
}

// Save writes c as YAML to path.
func (c *Config) Save(path string) error {
	buf, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrapf(err, "config: write %s", path)
	}
	return nil
}
