// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sheikh-saqib/household-ledger/internal/ledger"
)

type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	Store           StoreConfig
	Kafka           KafkaConfig
	Limits          LimitsConfig
}

type StoreConfig struct {
	Driver         string
	DatabaseURL    string
	MaxOpenConns   int
	MigrateOnStart bool
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// LimitsConfig picks how account limit periods map to concrete windows.
type LimitsConfig struct {
	WindowPolicy string
	Timezone     string
	WeekStart    string
}

// settings mirrors the flat environment keys; Load folds it into Config.
type settings struct {
	HTTPAddr             string        `mapstructure:"http_addr"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel             string        `mapstructure:"log_level"`
	StoreDriver          string        `mapstructure:"store_driver"`
	DatabaseURL          string        `mapstructure:"database_url"`
	DatabaseMaxOpenConns int           `mapstructure:"database_max_open_conns"`
	MigrateOnStart       bool          `mapstructure:"migrate_on_start"`
	KafkaBrokers         string        `mapstructure:"kafka_brokers"`
	KafkaTopicPrefix     string        `mapstructure:"kafka_topic_prefix"`
	LimitWindowPolicy    string        `mapstructure:"limit_window_policy"`
	LimitTimezone        string        `mapstructure:"limit_timezone"`
	LimitWeekStart       string        `mapstructure:"limit_week_start"`
}

// Load reads a .env file when one is given or present in the working
// directory, then the process environment. Environment variables are the
// upper-case form of the settings keys, e.g. STORE_DRIVER.
func Load(envPath ...string) (Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return Config{}, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()

	// default values
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_driver", "memory")
	v.SetDefault("database_url", "")
	v.SetDefault("database_max_open_conns", 10)
	v.SetDefault("migrate_on_start", true)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic_prefix", "ledger")
	v.SetDefault("limit_window_policy", "calendar")
	v.SetDefault("limit_timezone", "UTC")
	v.SetDefault("limit_week_start", "monday")

	v.AutomaticEnv()

	var st settings
	if err := v.Unmarshal(&st); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	c := Config{
		HTTPAddr:        st.HTTPAddr,
		ShutdownTimeout: st.ShutdownTimeout,
		LogLevel:        st.LogLevel,
		Store: StoreConfig{
			Driver:         strings.ToLower(st.StoreDriver),
			DatabaseURL:    st.DatabaseURL,
			MaxOpenConns:   st.DatabaseMaxOpenConns,
			MigrateOnStart: st.MigrateOnStart,
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(st.KafkaBrokers),
			TopicPrefix: st.KafkaTopicPrefix,
		},
		Limits: LimitsConfig{
			WindowPolicy: st.LimitWindowPolicy,
			Timezone:     st.LimitTimezone,
			WeekStart:    st.LimitWeekStart,
		},
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if _, err := c.Limits.Resolver(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Resolver builds the window resolver the limit guard uses.
func (l LimitsConfig) Resolver() (ledger.WindowResolver, error) {
	switch strings.ToLower(l.WindowPolicy) {
	case "rolling":
		return ledger.RollingWindows{}, nil
	case "calendar", "":
		loc, err := time.LoadLocation(l.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid LIMIT_TIMEZONE: %w", err)
		}
		day, err := parseWeekday(l.WeekStart)
		if err != nil {
			return nil, err
		}
		return ledger.CalendarWindows{Location: loc, WeekStart: day}, nil
	default:
		return nil, fmt.Errorf("unknown LIMIT_WINDOW_POLICY %q", l.WindowPolicy)
	}
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	if s == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid LIMIT_WEEK_START %q", s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
