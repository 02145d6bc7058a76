// Package config loads and validates service configuration from the
// environment (and an optional config file), via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TransportConfig describes how to reach the chat bot API.
type TransportConfig struct {
	BotToken       string
	BaseURL        string
	PollTimeout    time.Duration
	ConnectTimeout time.Duration
}

// BusConfig describes how to reach the internal MQTT event bus broker.
type BusConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// ProjectConfig describes one logical database/project the scanner and
// ingestion services operate against.
type ProjectConfig struct {
	Name           string
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// MonitorConfig mirrors internal/monitor.Config's shape as loaded from the
// environment.
type MonitorConfig struct {
	CheckInterval        time.Duration
	MaxLocationAge       time.Duration
	Enabled              bool
	NotificationsEnabled bool
}

// ServiceConfig holds the general service-level settings.
type ServiceConfig struct {
	DefaultTimezone string
	WebAppURL       string
	HTTPAddr        string
	RateLimitSpec   string
}

// Config is the fully loaded, validated configuration.
type Config struct {
	Transport TransportConfig
	Bus       BusConfig
	Projects  []ProjectConfig
	Monitor   MonitorConfig
	Service   ServiceConfig
}

// Load reads configuration from the environment (prefixed TRACKING_) and,
// if present, a config file named by TRACKING_CONFIG_FILE. The bot token,
// default timezone and web app URL are also read from the unprefixed
// TELEGRAM_BOT_TOKEN, DEFAULT_TZ and WEB_APP_URL. It mirrors the teacher's
// LoadConfig/getEnvWithDefault shape but is actually backed by viper,
// rather than hand-rolled os.LookupEnv/strconv parsing.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("bot_token", "TRACKING_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("service.default_tz", "TRACKING_SERVICE_DEFAULT_TZ", "DEFAULT_TZ")
	_ = v.BindEnv("service.web_app_url", "TRACKING_SERVICE_WEB_APP_URL", "WEB_APP_URL")

	v.SetDefault("transport.base_url", "https://api.telegram.org")
	v.SetDefault("transport.poll_timeout", "30s")
	v.SetDefault("transport.connect_timeout", "10s")

	v.SetDefault("bus.broker_url", "tcp://localhost:1883")
	v.SetDefault("bus.client_id", "geofence-attendance-core")
	v.SetDefault("bus.connect_timeout", "10s")

	v.SetDefault("monitor.check_interval", "5m")
	v.SetDefault("monitor.max_location_age", "10m")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.notifications_enabled", true)

	v.SetDefault("service.default_tz", "Africa/Nairobi")
	v.SetDefault("service.http_addr", ":8080")
	v.SetDefault("service.rate_limit", "100/minute")

	if cfgFile := v.GetString("config_file"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading config file %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{
		Transport: TransportConfig{
			BotToken:       v.GetString("bot_token"),
			BaseURL:        v.GetString("transport.base_url"),
			PollTimeout:    v.GetDuration("transport.poll_timeout"),
			ConnectTimeout: v.GetDuration("transport.connect_timeout"),
		},
		Bus: BusConfig{
			BrokerURL:      v.GetString("bus.broker_url"),
			ClientID:       v.GetString("bus.client_id"),
			Username:       v.GetString("bus.username"),
			Password:       v.GetString("bus.password"),
			ConnectTimeout: v.GetDuration("bus.connect_timeout"),
		},
		Monitor: MonitorConfig{
			CheckInterval:        v.GetDuration("monitor.check_interval"),
			MaxLocationAge:       v.GetDuration("monitor.max_location_age"),
			Enabled:              v.GetBool("monitor.enabled"),
			NotificationsEnabled: v.GetBool("monitor.notifications_enabled"),
		},
		Service: ServiceConfig{
			DefaultTimezone: v.GetString("service.default_tz"),
			WebAppURL:       v.GetString("service.web_app_url"),
			HTTPAddr:        v.GetString("service.http_addr"),
			RateLimitSpec:   v.GetString("service.rate_limit"),
		},
	}

	cfg.Projects = loadProjects(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProjects parses a comma-separated PROJECTS list, each resolved to its
// own DB_<NAME>_* keys, mirroring the teacher's convention of one DBConfig
// per environment block but generalized to N named projects.
func loadProjects(v *viper.Viper) []ProjectConfig {
	names := strings.Split(v.GetString("projects"), ",")
	var out []ProjectConfig
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		prefix := "db_" + strings.ToLower(name) + "_"
		out = append(out, ProjectConfig{
			Name:           name,
			DSN:            v.GetString(prefix + "dsn"),
			MaxConns:       int32(v.GetInt(prefix + "max_conns")),
			ConnectTimeout: orDefault(v.GetDuration(prefix+"connect_timeout"), 10*time.Second),
		})
	}
	return out
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// Validate aggregates every configuration problem into one error, the same
// strings.Join-based idiom the teacher's Config.Validate uses.
func (c *Config) Validate() error {
	var problems []string

	if c.Transport.BotToken == "" {
		problems = append(problems, "bot_token must be set")
	}
	if len(c.Projects) == 0 {
		problems = append(problems, "at least one project must be configured via PROJECTS")
	}
	for _, p := range c.Projects {
		if p.DSN == "" {
			problems = append(problems, fmt.Sprintf("project %s is missing a DSN", p.Name))
		}
	}
	if c.Monitor.CheckInterval <= 0 {
		problems = append(problems, "monitor.check_interval must be positive")
	}
	if c.Monitor.MaxLocationAge <= 0 {
		problems = append(problems, "monitor.max_location_age must be positive")
	}
	if _, err := time.LoadLocation(c.Service.DefaultTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("service.default_tz %q is not a valid timezone", c.Service.DefaultTimezone))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
