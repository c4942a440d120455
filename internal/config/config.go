// Package config loads tileping settings from defaults, an optional tileping.yaml,
// TILEPING_* environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// CIPort is where the tile server listens in GitHub Actions runs.
const CIPort = "62134"

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type ServeConfig struct {
	Addr     string        `mapstructure:"addr"`
	Interval time.Duration `mapstructure:"interval"`
	Watch    bool          `mapstructure:"watch"`
}

type SlackConfig struct {
	Webhook    string        `mapstructure:"webhook"`
	OnRecovery bool          `mapstructure:"on_recovery"`
	Cooldown   time.Duration `mapstructure:"cooldown"` // minimum gap between repeat failure alerts
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"` // e.g. tcp://mqtt.local:1883; empty disables
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"` // empty means in-memory run history
}

type APIConfig struct {
	AdminKeys    []string `mapstructure:"admin_keys"`
	PublicKeys   []string `mapstructure:"public_keys"`
	TriggerRPM   int      `mapstructure:"trigger_rpm"` // POST /api/runs per client per minute
	TriggerBurst int      `mapstructure:"trigger_burst"`
}

type Config struct {
	Server        string        `mapstructure:"server"`
	Webconf       string        `mapstructure:"webconf"`
	Workers       int           `mapstructure:"workers"`
	AutoDetect    bool          `mapstructure:"auto_detect"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	BackoffFactor float64       `mapstructure:"backoff_factor"` // seconds
	SaveReport    bool          `mapstructure:"save_report"`
	ReportPath    string        `mapstructure:"report_path"`
	Quiet         bool          `mapstructure:"quiet"`
	CheckMetadata bool          `mapstructure:"check_metadata"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"` // 0 disables

	Log      LogConfig      `mapstructure:"log"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Slack    SlackConfig    `mapstructure:"slack"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"server":         "server",
	"webconf":        "webconf",
	"workers":        "workers",
	"auto-detect":    "auto_detect",
	"timeout":        "timeout",
	"retries":        "retries",
	"backoff-factor": "backoff_factor",
	"save-report":    "save_report",
	"report":         "report_path",
	"quiet":          "quiet",
	"check-metadata": "check_metadata",
	"slow-threshold": "slow_threshold",
	"log-level":      "log.level",
	"log-dir":        "log.dir",
	"addr":           "serve.addr",
	"interval":       "serve.interval",
	"watch":          "serve.watch",
	"slack-webhook":  "slack.webhook",
	"database-url":   "database.url",
	"mqtt-broker":    "mqtt.broker",
}

// AddFlags registers the flags Load understands.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a tileping.yaml config file")
	fs.String("server", "", "tile server base URL (default: TILE_SERVER_URL, TILE_SERVER_PORT or http://localhost)")
	fs.String("webconf", "", "path to the webconf directory (default: ./webconf)")
	fs.Int("workers", 5, "number of endpoints probed concurrently")
	fs.Bool("auto-detect", true, "detect the server URL by trying common ports")
	fs.Bool("no-auto-detect", false, "use the server URL exactly as given")
	fs.Duration("timeout", 15*time.Second, "per request timeout")
	fs.Int("retries", 2, "retries per tile request")
	fs.Float64("backoff-factor", 0.5, "retry backoff factor in seconds")
	fs.Bool("save-report", false, "save a detailed report")
	fs.String("report", "", "report file (.json, .yaml or .yml); implies --save-report")
	fs.Bool("quiet", false, "only show the summary, not each endpoint")
	fs.Bool("check-metadata", false, "also fetch each endpoint's metadata URL")
	fs.Duration("slow-threshold", 5*time.Second, "flag successful tiles slower than this (0 disables)")
	fs.String("log-level", LogLevelInfo, "debug, info, warn or error")
	fs.String("log-dir", "", "directory for rotated JSON logs")
}

// AddServeFlags registers the flags only serve mode uses.
func AddServeFlags(fs *pflag.FlagSet) {
	fs.String("addr", "127.0.0.1:8080", "status API bind address")
	fs.Duration("interval", 5*time.Minute, "time between scheduled runs")
	fs.Bool("watch", false, "run again when webconf files change")
	fs.String("slack-webhook", "", "Slack incoming webhook for status changes")
	fs.String("database-url", "", "Postgres URL for run history (default: in-memory)")
	fs.String("mqtt-broker", "", "MQTT broker for status changes, e.g. tcp://mqtt.local:1883")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server", "")
	v.SetDefault("webconf", "webconf")
	v.SetDefault("workers", 5)
	v.SetDefault("auto_detect", true)
	v.SetDefault("timeout", "15s")
	v.SetDefault("retries", 2)
	v.SetDefault("backoff_factor", 0.5)
	v.SetDefault("save_report", false)
	v.SetDefault("report_path", "")
	v.SetDefault("quiet", false)
	v.SetDefault("check_metadata", false)
	v.SetDefault("slow_threshold", "5s")
	v.SetDefault("log.level", LogLevelInfo)
	v.SetDefault("log.dir", "")
	v.SetDefault("serve.addr", "127.0.0.1:8080")
	v.SetDefault("serve.interval", "5m")
	v.SetDefault("serve.watch", false)
	v.SetDefault("slack.webhook", "")
	v.SetDefault("slack.on_recovery", true)
	v.SetDefault("slack.cooldown", "15m")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "tileping/alerts")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("database.url", "")
	v.SetDefault("api.admin_keys", []string{})
	v.SetDefault("api.public_keys", []string{})
	v.SetDefault("api.trigger_rpm", 12)
	v.SetDefault("api.trigger_burst", 3)
}

// Load builds the configuration. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if f := lookup(flags, "config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	} else {
		v.SetConfigName("tileping")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("TILEPING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := lookup(flags, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	if f := lookup(flags, "no-auto-detect"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("auto_detect", false)
	}
	if f := lookup(flags, "report"); f != nil && f.Changed {
		v.Set("save_report", true)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server == "" {
		cfg.Server = ResolveServerURL(os.Getenv)
	}
	cfg.API.AdminKeys = splitKeys(cfg.API.AdminKeys)
	cfg.API.PublicKeys = splitKeys(cfg.API.PublicKeys)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func lookup(fs *pflag.FlagSet, name string) *pflag.Flag {
	if fs == nil {
		return nil
	}
	return fs.Lookup(name)
}

// ResolveServerURL picks the base URL from the environment: TILE_SERVER_URL,
// then TILE_SERVER_PORT on localhost, then the CI port under GITHUB_ACTIONS,
// then http://localhost.
func ResolveServerURL(getenv func(string) string) string {
	if u := strings.TrimSpace(getenv("TILE_SERVER_URL")); u != "" {
		return u
	}
	if p := strings.TrimSpace(getenv("TILE_SERVER_PORT")); p != "" {
		return "http://localhost:" + p
	}
	if getenv("GITHUB_ACTIONS") != "" {
		return "http://localhost:" + CIPort
	}
	return "http://localhost"
}

// Backoff converts BackoffFactor to a duration.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.BackoffFactor * float64(time.Second))
}

// ReportFile is ReportPath, or def when none was configured.
func (c *Config) ReportFile(def string) string {
	if c.ReportPath != "" {
		return c.ReportPath
	}
	return def
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.Required, validation.By(validateServerURL)),
		validation.Field(&c.Webconf, validation.Required),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Retries, validation.Min(0)),
		validation.Field(&c.BackoffFactor, validation.Min(0.0)),
		validation.Field(&c.SlowThreshold, validation.Min(time.Duration(0))),
		validation.Field(&c.Log,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LogConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LogConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Serve,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServeConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServeConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Addr, validation.Required, validation.By(validateHostPort)),
					validation.Field(&sc.Interval, validation.Required, validation.Min(time.Second)),
				)
			}),
		),
		validation.Field(&c.API,
			validation.By(func(value interface{}) error {
				ac, ok := value.(APIConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an APIConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.TriggerRPM, validation.Required, validation.Min(1)),
					validation.Field(&ac.TriggerBurst, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Slack,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SlackConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SlackConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Webhook, is.URL),
					validation.Field(&sc.Cooldown, validation.Min(time.Duration(0))),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}

func validateServerURL(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}
	return nil
}

// splitKeys accepts both list values and comma separated strings.
func splitKeys(in []string) []string {
	var out []string
	for _, s := range in {
		for _, k := range strings.Split(s, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}
