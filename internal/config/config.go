package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/alertbell/internal/detector"
	"github.com/rewired-gh/alertbell/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	History   HistoryConfig   `mapstructure:"history"`
	Symbols   SymbolsConfig   `mapstructure:"symbols"`
	Detectors DetectorsConfig `mapstructure:"detectors"`
	Jobs      []JobConfig     `mapstructure:"jobs"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RunConfig controls when and how alert generation runs
type RunConfig struct {
	Interval    time.Duration `mapstructure:"interval"`     // 0 = run once and exit
	AllWeekdays bool          `mapstructure:"all_weekdays"` // ignore per-job weekday gating
	DryRun      bool          `mapstructure:"dry_run"`      // print to stdout instead of notifying
}

// HistoryConfig selects where metric histories come from
type HistoryConfig struct {
	Provider     string        `mapstructure:"provider"` // csv | postgres
	CSVDir       string        `mapstructure:"csv_dir"`
	PostgresURL  string        `mapstructure:"postgres_url"`
	Table        string        `mapstructure:"table"`
	LookbackDays int           `mapstructure:"lookback_days"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SymbolsConfig points to the symbols file
type SymbolsConfig struct {
	File string `mapstructure:"file"`
}

// DetectorsConfig holds the tunables of both detectors
type DetectorsConfig struct {
	Drawdown    DrawdownConfig    `mapstructure:"drawdown"`
	Fluctuation FluctuationConfig `mapstructure:"fluctuation"`
}

type DrawdownConfig struct {
	AveragingPeriod int            `mapstructure:"averaging_period"`
	CooldownPeriod  int            `mapstructure:"cooldown_period"`
	Levels          []models.Level `mapstructure:"levels"`
}

type FluctuationConfig struct {
	Windows []detector.Window `mapstructure:"windows"`
}

// JobConfig is one alert category checked on given weekdays
type JobConfig struct {
	Category       string   `mapstructure:"category"`
	Alert          string   `mapstructure:"alert"` // drawdown | fluctuation
	Name           string   `mapstructure:"name"`  // display name, defaults per alert kind
	Metric         string   `mapstructure:"metric"`
	Weekdays       []string `mapstructure:"weekdays"`
	LinkPattern    string   `mapstructure:"link_pattern"`
	Sources        []string `mapstructure:"sources"`
	ExcludeSources []string `mapstructure:"exclude_sources"`
}

// StorageConfig holds alert state persistence configuration
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // sqlite | badger | memory
	DataDir string `mapstructure:"data_dir"`
}

// NotifyConfig selects and configures the delivery channel
type NotifyConfig struct {
	Channel  string         `mapstructure:"channel"` // console | email | telegram | nats
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	NATS     NATSConfig     `mapstructure:"nats"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Subject       string        `mapstructure:"subject"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// Enable environment variable override, e.g. ALERTBELL_NOTIFY_EMAIL_PASSWORD
	v.SetEnvPrefix("ALERTBELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Run defaults
	v.SetDefault("run.interval", "0s")
	v.SetDefault("run.all_weekdays", false)
	v.SetDefault("run.dry_run", false)

	// History defaults
	v.SetDefault("history.provider", "csv")
	v.SetDefault("history.csv_dir", "./data/history")
	v.SetDefault("history.postgres_url", "")
	v.SetDefault("history.table", "metric_history")
	v.SetDefault("history.lookback_days", 400)
	v.SetDefault("history.timeout", "30s")

	// Symbols defaults
	v.SetDefault("symbols.file", "./configs/symbols.yaml")

	// Detector defaults; level and window tables are filled in by applyDefaults
	v.SetDefault("detectors.drawdown.averaging_period", 30)
	v.SetDefault("detectors.drawdown.cooldown_period", 30)

	// Storage defaults
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "./data")

	// Notify defaults; empty secrets are registered so env overrides reach Unmarshal
	v.SetDefault("notify.channel", "console")
	v.SetDefault("notify.email.smtp_host", "")
	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.max_retries", 3)
	v.SetDefault("notify.telegram.retry_delay_base", "1s")
	v.SetDefault("notify.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("notify.nats.subject", "alertbell.alerts")
	v.SetDefault("notify.nats.max_reconnects", 5)
	v.SetDefault("notify.nats.reconnect_wait", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

var defaultAlertNames = map[string]string{
	detector.KindDrawdown:    "DoubleDownAlert",
	detector.KindFluctuation: "Fluctulert",
}

func (c *Config) applyDefaults() {
	if len(c.Detectors.Drawdown.Levels) == 0 {
		c.Detectors.Drawdown.Levels = models.DefaultLevelTable()
	}
	if len(c.Detectors.Fluctuation.Windows) == 0 {
		c.Detectors.Fluctuation.Windows = detector.DefaultFluctuationConfig().Windows
	}
	for i := range c.Jobs {
		if c.Jobs[i].Metric == "" {
			c.Jobs[i].Metric = "Price"
		}
		if c.Jobs[i].Name == "" {
			c.Jobs[i].Name = defaultAlertNames[c.Jobs[i].Alert]
		}
	}
}

// DetectorConfig converts the detector section into detector configuration
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		Drawdown: detector.DrawdownConfig{
			Levels:          models.LevelTable(c.Detectors.Drawdown.Levels),
			AveragingPeriod: c.Detectors.Drawdown.AveragingPeriod,
			CooldownPeriod:  c.Detectors.Drawdown.CooldownPeriod,
		},
		Fluctuation: detector.FluctuationConfig{
			Windows: c.Detectors.Fluctuation.Windows,
		},
	}
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Run config
	if c.Run.Interval != 0 && c.Run.Interval < 1*time.Minute {
		return fmt.Errorf("run.interval must be 0 or at least 1 minute")
	}

	// Validate History config
	switch c.History.Provider {
	case "csv":
		if c.History.CSVDir == "" {
			return fmt.Errorf("history.csv_dir is required for the csv provider")
		}
	case "postgres":
		if c.History.PostgresURL == "" {
			return fmt.Errorf("history.postgres_url is required for the postgres provider")
		}
		if c.History.Table == "" {
			return fmt.Errorf("history.table is required for the postgres provider")
		}
	default:
		return fmt.Errorf("history.provider must be one of: csv, postgres")
	}
	if c.History.LookbackDays < 1 {
		return fmt.Errorf("history.lookback_days must be at least 1")
	}

	// Validate Symbols config
	if c.Symbols.File == "" {
		return fmt.Errorf("symbols.file is required")
	}

	// Validate Detectors config
	detectors := c.DetectorConfig()
	if err := detectors.Drawdown.Validate(); err != nil {
		return fmt.Errorf("detectors.drawdown: %w", err)
	}
	if err := detectors.Fluctuation.Validate(); err != nil {
		return fmt.Errorf("detectors.fluctuation: %w", err)
	}

	// Validate Jobs config
	if len(c.Jobs) == 0 {
		return fmt.Errorf("jobs must contain at least one job")
	}
	for i, job := range c.Jobs {
		if job.Category == "" {
			return fmt.Errorf("jobs[%d].category is required", i)
		}
		if job.Alert != detector.KindDrawdown && job.Alert != detector.KindFluctuation {
			return fmt.Errorf("jobs[%d].alert must be one of: drawdown, fluctuation", i)
		}
		if _, err := ParseWeekdays(job.Weekdays); err != nil {
			return fmt.Errorf("jobs[%d].weekdays: %w", i, err)
		}
	}

	// Validate Storage config
	validBackends := map[string]bool{"sqlite": true, "badger": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("storage.backend must be one of: sqlite, badger, memory")
	}
	if c.Storage.Backend != "memory" && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	// Validate Notify config
	switch c.Notify.Channel {
	case "console":
	case "email":
		if c.Notify.Email.SMTPHost == "" {
			return fmt.Errorf("notify.email.smtp_host is required when channel is email")
		}
		if c.Notify.Email.SMTPPort < 1 {
			return fmt.Errorf("notify.email.smtp_port must be positive")
		}
		if c.Notify.Email.From == "" {
			return fmt.Errorf("notify.email.from is required when channel is email")
		}
	case "telegram":
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when channel is telegram")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when channel is telegram")
		}
	case "nats":
		if c.Notify.NATS.URL == "" {
			return fmt.Errorf("notify.nats.url is required when channel is nats")
		}
		if c.Notify.NATS.Subject == "" {
			return fmt.Errorf("notify.nats.subject is required when channel is nats")
		}
	default:
		return fmt.Errorf("notify.channel must be one of: console, email, telegram, nats")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays parses day names such as "mon" or "Friday". An empty list
// means every day.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		}, nil
	}
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}
