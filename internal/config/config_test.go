package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/olg"
)

const fullConfig = `
mode: watch
model: all

sir:
  susceptible: 1000
  current_hospitalized: 2
  market_share: 1.0
  hospitalized_rate: 0.1
  recovery_days: 14
  doubling_time: 4
  relative_contact_rate: 0.3
  n_days: 30
  dispositions:
    hospitalized:
      rate: 0.025
      length_of_stay: 7
    icu:
      rate: 0.0075
      length_of_stay: 9

seiar:
  n: 1000000
  s0: 999000
  e0: 500
  i0: 300
  a0: 200
  alpha: 0.2
  beta_ill: 0.4
  beta_asy: 0.3
  gamma_ill: 0.1
  gamma_asy: 0.15
  rho: 1.0
  theta: 0.6
  start: "2020-03-01"
  days: 120
  schedule:
    ill:
      - day: 30
        rate: 0.1
    asy:
      - day: 30
        rate: 0.05

olg:
  fi: 0.5
  theta: 0.0696
  tau: 14
  init_infected: 100
  recurrence: lagged
  workers: 2
  scenarios:
    - days: 30
      multiplier: 100
    - days: 60
      multiplier: 80
  init_infected_overrides:
    Bnei-Brak: 25

source:
  enabled: true
  resource_id: "d07c0771-01a8-43b2-96cc-c6154e7fa9bd"
  group_field: town
  date_field: date
  count_field: cumulated_cases

storage:
  db_path: "./data/test.db"
  max_runs: 50

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "debug"
  format: "text"

watch:
  poll_interval: 1h
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Mode != "watch" {
		t.Errorf("Expected mode watch, got %s", cfg.Mode)
	}
	if len(cfg.SIR.Dispositions) != 2 {
		t.Fatalf("Expected 2 dispositions, got %d", len(cfg.SIR.Dispositions))
	}
	if d := cfg.SIR.Dispositions["icu"]; d.Rate != 0.0075 || d.LengthOfStay != 9 {
		t.Errorf("Unexpected icu disposition %+v", d)
	}
	if len(cfg.SEIAR.Schedule.Ill) != 1 || cfg.SEIAR.Schedule.Asy[0].Rate != 0.05 {
		t.Errorf("Unexpected seiar schedule %+v", cfg.SEIAR.Schedule)
	}
	if len(cfg.OLG.Scenarios) != 2 || cfg.OLG.Scenarios[1] != (olg.Scenario{Days: 60, Multiplier: 80}) {
		t.Errorf("Unexpected scenarios %+v", cfg.OLG.Scenarios)
	}
	if cfg.Watch.PollInterval != time.Hour {
		t.Errorf("Expected poll interval 1h, got %v", cfg.Watch.PollInterval)
	}

	// Defaults fill what the file leaves out.
	if cfg.Source.BaseURL != "https://data.gov.il/api/action" {
		t.Errorf("Expected default base URL, got %s", cfg.Source.BaseURL)
	}
	if cfg.Telegram.MaxRetries != 3 {
		t.Errorf("Expected default telegram max retries 3, got %d", cfg.Telegram.MaxRetries)
	}
}

func TestParamsConverters(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sp := cfg.SIR.Params()
	if err := sp.Validate(); err != nil {
		t.Errorf("SIR params invalid: %v", err)
	}
	if sp.Susceptible != 1000 || sp.NDays != 30 {
		t.Errorf("Unexpected SIR params %+v", sp)
	}

	ep, err := cfg.SEIAR.Params()
	if err != nil {
		t.Fatalf("SEIAR Params failed: %v", err)
	}
	if err := ep.Validate(); err != nil {
		t.Errorf("SEIAR params invalid: %v", err)
	}
	if !ep.Start.Equal(time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected SEIAR start %v", ep.Start)
	}

	op := cfg.OLG.Params()
	if err := op.Validate(); err != nil {
		t.Errorf("OLG params invalid: %v", err)
	}
	if op.Recurrence != olg.RecurrenceLagged {
		t.Errorf("Expected lagged recurrence, got %s", op.Recurrence)
	}
}

func TestSEIARParams_BadStart(t *testing.T) {
	_, err := SEIARConfig{Start: "01/03/2020"}.Params()
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestOLGThresholdFor(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.OLG.Params().InitInfected; got != 100 {
		t.Errorf("Expected base threshold 100 in params, got %v", got)
	}
	if got := cfg.OLG.ThresholdFor("Bnei-Brak"); got != 25 {
		t.Errorf("Expected override 25, got %v", got)
	}
	if got := cfg.OLG.ThresholdFor("israel"); got != 100 {
		t.Errorf("Expected default threshold 100, got %v", got)
	}
}

func TestLoad_FlagsAndEnv(t *testing.T) {
	t.Setenv("EPIFORECAST_STORAGE_MAX_RUNS", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", "once", "")
	flags.String("model", "all", "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--mode=once", "--model=sir", "--log-level=warn"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, fullConfig), flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Mode != "once" || cfg.Model != "sir" || cfg.Logging.Level != "warn" {
		t.Errorf("Expected flags to override file, got mode=%s model=%s level=%s", cfg.Mode, cfg.Model, cfg.Logging.Level)
	}
	if cfg.Storage.MaxRuns != 7 {
		t.Errorf("Expected env override 7, got %d", cfg.Storage.MaxRuns)
	}
	if !cfg.RunsModel(models.ModelSIR) || cfg.RunsModel(models.ModelOLG) {
		t.Errorf("Unexpected model selection %s", cfg.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(writeConfig(t, fullConfig), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "daemon" }, wantErr: true},
		{name: "unknown model", mutate: func(c *Config) { c.Model = "sis" }, wantErr: true},
		{name: "no dispositions", mutate: func(c *Config) { c.SIR.Dispositions = nil }, wantErr: true},
		{name: "no dispositions without sir", mutate: func(c *Config) { c.SIR.Dispositions = nil; c.Model = "olg" }, wantErr: false},
		{name: "zero workers", mutate: func(c *Config) { c.OLG.Workers = 0 }, wantErr: true},
		{name: "negative override", mutate: func(c *Config) { c.OLG.Overrides = map[string]float64{"x": -1} }, wantErr: true},
		{name: "source without resource", mutate: func(c *Config) { c.Source.ResourceID = "" }, wantErr: true},
		{name: "source without group", mutate: func(c *Config) { c.Source.GroupField = ""; c.Source.Group = "" }, wantErr: true},
		{name: "source disabled", mutate: func(c *Config) { c.Source.Enabled = false; c.Source.ResourceID = "" }, wantErr: false},
		{name: "telegram without token", mutate: func(c *Config) { c.Telegram.BotToken = "" }, wantErr: true},
		{name: "zero max runs", mutate: func(c *Config) { c.Storage.MaxRuns = 0 }, wantErr: true},
		{name: "short poll interval", mutate: func(c *Config) { c.Watch.PollInterval = time.Second }, wantErr: true},
		{name: "short poll interval once", mutate: func(c *Config) { c.Watch.PollInterval = time.Second; c.Mode = "once" }, wantErr: false},
		{name: "watch without olg", mutate: func(c *Config) { c.Model = "seiar" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
