package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gstat-gcloud/covid19-sim/internal/hospital"
	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/olg"
	"github.com/gstat-gcloud/covid19-sim/internal/seiar"
	"github.com/gstat-gcloud/covid19-sim/internal/sir"
)

// EnvPrefix prefixes every environment override, e.g. EPIFORECAST_STORAGE_DB_PATH.
const EnvPrefix = "EPIFORECAST"

// Config represents the complete application configuration
type Config struct {
	Mode     string         `mapstructure:"mode"`  // once or watch
	Model    string         `mapstructure:"model"` // sir, seiar, olg or all
	SIR      SIRConfig      `mapstructure:"sir"`
	SEIAR    SEIARConfig    `mapstructure:"seiar"`
	OLG      OLGConfig      `mapstructure:"olg"`
	Source   SourceConfig   `mapstructure:"source"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// SIRConfig holds the hospital projection inputs
type SIRConfig struct {
	Susceptible         float64                         `mapstructure:"susceptible"`
	CurrentHospitalized float64                         `mapstructure:"current_hospitalized"`
	MarketShare         float64                         `mapstructure:"market_share"`
	HospitalizedRate    float64                         `mapstructure:"hospitalized_rate"`
	KnownInfected       float64                         `mapstructure:"known_infected"`
	Recovered           float64                         `mapstructure:"recovered"`
	RecoveryDays        float64                         `mapstructure:"recovery_days"`
	DoublingTime        float64                         `mapstructure:"doubling_time"`
	RelativeContactRate float64                         `mapstructure:"relative_contact_rate"`
	NDays               int                             `mapstructure:"n_days"`
	Dispositions        map[string]hospital.Disposition `mapstructure:"dispositions"`
}

// Params converts the section into the engine parameter bundle.
func (c SIRConfig) Params() sir.Params {
	return sir.Params{
		Susceptible:         c.Susceptible,
		CurrentHospitalized: c.CurrentHospitalized,
		MarketShare:         c.MarketShare,
		HospitalizedRate:    c.HospitalizedRate,
		KnownInfected:       c.KnownInfected,
		Recovered:           c.Recovered,
		RecoveryDays:        c.RecoveryDays,
		DoublingTime:        c.DoublingTime,
		RelativeContactRate: c.RelativeContactRate,
		NDays:               c.NDays,
	}
}

// SEIARConfig holds the compartment model inputs
type SEIARConfig struct {
	N        float64        `mapstructure:"n"`
	S0       float64        `mapstructure:"s0"`
	E0       float64        `mapstructure:"e0"`
	I0       float64        `mapstructure:"i0"`
	A0       float64        `mapstructure:"a0"`
	R0       float64        `mapstructure:"r0"`
	Alpha    float64        `mapstructure:"alpha"`
	BetaIll  float64        `mapstructure:"beta_ill"`
	BetaAsy  float64        `mapstructure:"beta_asy"`
	GammaIll float64        `mapstructure:"gamma_ill"`
	GammaAsy float64        `mapstructure:"gamma_asy"`
	Rho      float64        `mapstructure:"rho"`
	Theta    float64        `mapstructure:"theta"`
	Start    string         `mapstructure:"start"` // YYYY-MM-DD
	Days     int            `mapstructure:"days"`
	Schedule seiar.Schedule `mapstructure:"schedule"`
}

// Params converts the section into the engine parameter bundle.
func (c SEIARConfig) Params() (seiar.Params, error) {
	start, err := time.Parse(models.DateLayout, c.Start)
	if err != nil {
		return seiar.Params{}, models.NewParameterError("seiar.start", c.Start, "must be a YYYY-MM-DD date")
	}
	return seiar.Params{
		N:        c.N,
		S0:       c.S0,
		E0:       c.E0,
		I0:       c.I0,
		A0:       c.A0,
		R0:       c.R0,
		Alpha:    c.Alpha,
		BetaIll:  c.BetaIll,
		BetaAsy:  c.BetaAsy,
		GammaIll: c.GammaIll,
		GammaAsy: c.GammaAsy,
		Rho:      c.Rho,
		Theta:    c.Theta,
		Start:    start,
		Days:     c.Days,
		Schedule: c.Schedule,
	}, nil
}

// OLGConfig holds the growth-rate forecaster inputs
type OLGConfig struct {
	Fi           float64        `mapstructure:"fi"`
	Theta        float64        `mapstructure:"theta"`
	Tau          int            `mapstructure:"tau"`
	InitInfected float64        `mapstructure:"init_infected"`
	Scenarios    []olg.Scenario `mapstructure:"scenarios"`
	Recurrence   string         `mapstructure:"recurrence"`
	// Per-group onset thresholds. Keys are matched case-insensitively since
	// viper lowercases map keys.
	Overrides map[string]float64 `mapstructure:"init_infected_overrides"`
	Groups    []string           `mapstructure:"groups"` // empty runs every stored group
	Workers   int                `mapstructure:"workers"`
}

// Params converts the section into the engine parameter bundle.
func (c OLGConfig) Params() olg.Params {
	return olg.Params{
		Fi:           c.Fi,
		Theta:        c.Theta,
		Tau:          c.Tau,
		InitInfected: c.InitInfected,
		Scenarios:    c.Scenarios,
		Recurrence:   olg.Recurrence(c.Recurrence),
	}
}

// SourceConfig holds the open-data datastore configuration
type SourceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	ResourceID     string        `mapstructure:"resource_id"`
	Limit          int           `mapstructure:"limit"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	GroupField     string        `mapstructure:"group_field"` // empty assigns every record to Group
	Group          string        `mapstructure:"group"`
	DateField      string        `mapstructure:"date_field"`
	DateLayout     string        `mapstructure:"date_layout"`
	CountField     string        `mapstructure:"count_field"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WatchConfig holds service loop configuration
type WatchConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads configuration from file, environment variables and, when
// flags is non-nil, the bound command-line flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindFlags maps command-line flags onto their configuration keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := map[string]string{
		"mode":      "mode",
		"model":     "model",
		"log-level": "logging.level",
	}
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "once")
	v.SetDefault("model", "all")

	// SIR defaults
	v.SetDefault("sir.susceptible", 3600000)
	v.SetDefault("sir.current_hospitalized", 69)
	v.SetDefault("sir.market_share", 0.15)
	v.SetDefault("sir.hospitalized_rate", 0.025)
	v.SetDefault("sir.recovery_days", 14)
	v.SetDefault("sir.doubling_time", 4)
	v.SetDefault("sir.relative_contact_rate", 0.3)
	v.SetDefault("sir.n_days", 60)

	// SEIAR defaults
	v.SetDefault("seiar.start", "2020-03-01")
	v.SetDefault("seiar.days", 200)

	// OLG defaults
	v.SetDefault("olg.fi", 0.5)
	v.SetDefault("olg.theta", 0.0696)
	v.SetDefault("olg.tau", 14)
	v.SetDefault("olg.init_infected", 100)
	v.SetDefault("olg.recurrence", string(olg.RecurrenceGenerational))
	v.SetDefault("olg.workers", 4)

	// Source defaults
	v.SetDefault("source.enabled", false)
	v.SetDefault("source.base_url", "https://data.gov.il/api/action")
	v.SetDefault("source.limit", 100000)
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_delay_base", "1s")
	v.SetDefault("source.date_layout", models.DateLayout)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/epiforecast.db")
	v.SetDefault("storage.max_runs", 500)

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Watch defaults
	v.SetDefault("watch.poll_interval", "6h")
}

// Validate checks that all service configuration values are valid. Physical
// parameter ranges are checked by the engines themselves.
func (c *Config) Validate() error {
	validModes := map[string]bool{"once": true, "watch": true}
	if !validModes[c.Mode] {
		return fmt.Errorf("mode must be one of: once, watch")
	}
	validModels := map[string]bool{"all": true, "sir": true, "seiar": true, "olg": true}
	if !validModels[c.Model] {
		return fmt.Errorf("model must be one of: all, sir, seiar, olg")
	}

	// Validate SIR config
	if c.RunsModel(models.ModelSIR) && len(c.SIR.Dispositions) == 0 {
		return fmt.Errorf("sir.dispositions must contain at least one disposition")
	}

	// Validate OLG config
	if c.OLG.Workers < 1 {
		return fmt.Errorf("olg.workers must be at least 1")
	}
	for group, threshold := range c.OLG.Overrides {
		if threshold < 0 {
			return fmt.Errorf("olg.init_infected_overrides.%s must not be negative", group)
		}
	}

	// Validate Source config
	if c.Source.Enabled {
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required when source is enabled")
		}
		if c.Source.ResourceID == "" {
			return fmt.Errorf("source.resource_id is required when source is enabled")
		}
		if c.Source.DateField == "" || c.Source.CountField == "" {
			return fmt.Errorf("source.date_field and source.count_field are required when source is enabled")
		}
		if c.Source.GroupField == "" && c.Source.Group == "" {
			return fmt.Errorf("source.group is required when source.group_field is empty")
		}
		if c.Source.Limit < 1 {
			return fmt.Errorf("source.limit must be at least 1")
		}
		if c.Source.MaxRetries < 1 {
			return fmt.Errorf("source.max_retries must be at least 1")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRuns < 1 {
		return fmt.Errorf("storage.max_runs must be at least 1")
	}

	// Validate Watch config
	if c.Mode == "watch" {
		if c.Watch.PollInterval < 1*time.Minute {
			return fmt.Errorf("watch.poll_interval must be at least 1 minute")
		}
		if !c.RunsModel(models.ModelOLG) {
			return fmt.Errorf("watch mode requires model olg or all")
		}
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

// RunsModel reports whether the configured model selection includes m.
func (c *Config) RunsModel(m models.Model) bool {
	return c.Model == "all" || c.Model == string(m)
}

// ThresholdFor returns the onset threshold for a group, applying
// init_infected_overrides.
func (c OLGConfig) ThresholdFor(group string) float64 {
	return olg.Threshold(c.Overrides, group, c.InitInfected)
}
