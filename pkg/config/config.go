package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hi-noikiy/redtrader/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Store       StoreConfig      `yaml:"store"`
	Log         LogConfig        `yaml:"log"`
	Compile     CompileConfig    `yaml:"compile"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Cache       CacheConfig      `yaml:"cache"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
}

// StoreConfig selects and tunes the storage backend. URL is a file path,
// ":memory:", or a mysql://, postgres:// or clickhouse:// locator.
type StoreConfig struct {
	URL          string        `yaml:"url" default:"~/.redtrader/candrec.db" validate:"required"`
	Init         bool          `yaml:"init" default:"true"`
	Verbose      bool          `yaml:"verbose"`
	Numeric      string        `yaml:"numeric" default:"native" validate:"oneof=native float decimal"`
	Timeout      time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	SecondsTable bool          `yaml:"seconds_table"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

// CompileConfig drives the scheduled timeframe aggregation. An empty symbol
// list compiles every symbol found in the 1m table. Timeout bounds one
// symbol's cascade and may not exceed LockTTL, so a lock never expires under
// a running compile.
type CompileConfig struct {
	Enabled  bool          `yaml:"enabled" default:"true"`
	Schedule string        `yaml:"schedule" default:"5 * * * * *" validate:"required"`
	Symbols  []string      `yaml:"symbols"`
	LockTTL  time.Duration `yaml:"lock_ttl" default:"5m" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" default:"1m" validate:"gt=0,ltefield=LockTTL"`
}

// ServerConfig is the ops endpoint serving /metrics and /healthz.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"9100" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
}

// CacheConfig backs metadata read-through caching and compile locks.
type CacheConfig struct {
	Type          string        `yaml:"type" default:"memory" validate:"oneof=none memory redis layered"`
	TTL           time.Duration `yaml:"ttl" default:"1m"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"1000" validate:"gt=0"`
	Redis         struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"redtrader"`
	} `yaml:"redis"`
}

// KafkaConfig publishes compiled candles when enabled.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic        string        `yaml:"topic" default:"redtrader.candles"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

// ClickHouseConfig tunes clickhouse:// stores beyond what the URL carries.
type ClickHouseConfig struct {
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

var validate = validator.New()

// Default returns a configuration holding only default values.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWithEnv is Load with REDTRADER_* environment overrides applied before
// validation. A .env file in the working directory is loaded first when
// present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDTRADER_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("REDTRADER_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("REDTRADER_STORE_NUMERIC"); v != "" {
		c.Store.Numeric = v
	}
	if v := os.Getenv("REDTRADER_SYMBOLS"); v != "" {
		c.Compile.Symbols = splitList(v)
	}
	if v := os.Getenv("REDTRADER_COMPILE_SCHEDULE"); v != "" {
		c.Compile.Schedule = v
	}
	if v := os.Getenv("REDTRADER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDTRADER_SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("REDTRADER_CACHE_TYPE"); v != "" {
		c.Cache.Type = v
	}
	if v := os.Getenv("REDTRADER_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDTRADER_REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("REDTRADER_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDTRADER_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the struct tags and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("validate config: %s", strings.Join(msgs, "; "))
}
