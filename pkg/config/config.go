package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Window struct {
	Start string `yaml:"start" validate:"required,datetime=15:04"`
	End   string `yaml:"end" validate:"required,datetime=15:04"`
}

type Threshold struct {
	Min  float64 `yaml:"min" validate:"gte=0,lte=100"`
	High float64 `yaml:"high" validate:"gte=0,lte=100,gtefield=Min"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		RateLimit       struct {
			Enabled   bool    `yaml:"enabled"`
			PerSecond float64 `yaml:"per_second" default:"2" validate:"gt=0"`
			Burst     int     `yaml:"burst" default:"10" validate:"gte=1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Path string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Timezone struct {
		Source    string `yaml:"source" default:"America/Argentina/Buenos_Aires" validate:"required"`
		Reference string `yaml:"reference" default:"America/New_York" validate:"required"`
	} `yaml:"timezone"`
	Sessions struct {
		Asia   Window `yaml:"asia" default:"{\"start\":\"19:00\",\"end\":\"04:00\"}"`
		Europe Window `yaml:"europe" default:"{\"start\":\"03:00\",\"end\":\"12:00\"}"`
		NY     Window `yaml:"ny" default:"{\"start\":\"09:30\",\"end\":\"17:00\"}"`
	} `yaml:"sessions"`
	Input struct {
		Delimiter      string `yaml:"delimiter" default:";" validate:"len=1"`
		DatetimeLayout string `yaml:"datetime_layout" default:"20060102 150405" validate:"required"`
		Contract       string `yaml:"contract" default:"MNQ"`
		Dir            string `yaml:"dir" default:"data"` // HTTP path inputs stay under Dir; empty disables them
	} `yaml:"input"`
	Validation struct {
		PriceMin   float64 `yaml:"price_min" default:"1000" validate:"gte=0"`
		PriceMax   float64 `yaml:"price_max" default:"50000" validate:"gtfield=PriceMin"`
		VolumeMin  int64   `yaml:"volume_min" default:"0"`
		GapMinutes int     `yaml:"gap_minutes" default:"5" validate:"gte=1"`
		SkipOHLC   bool    `yaml:"skip_ohlc_check"`
	} `yaml:"validation"`
	Classification struct {
		Metric          string  `yaml:"metric" default:"rango_diario" validate:"oneof=rango_diario volatilidad rango_total atr"`
		OutlierZ        float64 `yaml:"outlier_z" default:"2" validate:"gt=0"`
		MinDays         int     `yaml:"min_days" default:"20" validate:"gte=1"`
		StreakMinLength int     `yaml:"streak_min_length" default:"3" validate:"gte=2"`
		ATRWindow       int     `yaml:"atr_window" default:"14" validate:"gte=1"`
	} `yaml:"classification"`
	Rules struct {
		MinSample int       `yaml:"min_sample" default:"3" validate:"gte=0"`
		DayOfWeek Threshold `yaml:"day_of_week" default:"{\"min\":45,\"high\":50}"`
		Handoff   Threshold `yaml:"handoff" default:"{\"min\":60,\"high\":70}"`
		Streak    Threshold `yaml:"streak" default:"{\"min\":50,\"high\":65}"`
	} `yaml:"rules"`
	Snapshot struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"snapshot"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sessionlens"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"sessionlens"`
		TTL      time.Duration `yaml:"ttl" default:"24h"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"sessionlens.results"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Keys absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file and then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SOURCE_TZ"); v != "" {
		c.Timezone.Source = v
	}
	if v := os.Getenv("REFERENCE_TZ"); v != "" {
		c.Timezone.Reference = v
	}
	if v, ok := os.LookupEnv("INPUT_DIR"); ok {
		c.Input.Dir = v
	}
	if v := os.Getenv("CLASSIFICATION_METRIC"); v != "" {
		c.Classification.Metric = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, w := range map[string]Window{"asia": c.Sessions.Asia, "europe": c.Sessions.Europe, "ny": c.Sessions.NY} {
		if w.Start == w.End {
			return fmt.Errorf("sessions.%s: start and end must differ", name)
		}
	}
	if _, err := time.LoadLocation(c.Timezone.Reference); err != nil {
		return fmt.Errorf("timezone.reference: %w", err)
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis to be enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// Fingerprint identifies the settings that change analysis output. Runs with
// equal fingerprints over the same dataset produce equal results.
func (c *Config) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s-%s|%s-%s|%s-%s|%s|%g|%d|%d|%d|%g/%g|%g/%g|%g/%g",
		c.Timezone.Source, c.Timezone.Reference,
		c.Sessions.Asia.Start, c.Sessions.Asia.End,
		c.Sessions.Europe.Start, c.Sessions.Europe.End,
		c.Sessions.NY.Start, c.Sessions.NY.End,
		c.Classification.Metric, c.Classification.OutlierZ,
		c.Classification.StreakMinLength, c.Classification.ATRWindow, c.Rules.MinSample,
		c.Rules.DayOfWeek.Min, c.Rules.DayOfWeek.High,
		c.Rules.Handoff.Min, c.Rules.Handoff.High,
		c.Rules.Streak.Min, c.Rules.Streak.High,
	)
}
