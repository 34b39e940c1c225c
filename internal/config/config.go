package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv        = "MARKET_MONITOR_CONFIG"
	databaseDSNEnv       = "DATABASE_DSN"
	databasePathEnv      = "MONITOR_DB_PATH"
	ollamaURLEnv         = "OLLAMA_URL"
	ollamaModelEnv       = "OLLAMA_MODEL"
	ollamaTimeoutEnv     = "OLLAMA_CALL_TIMEOUT"
	ollamaRetriesEnv     = "OLLAMA_CALL_RETRIES"
	ollamaStreamTimeoEnv = "OLLAMA_STREAM_TIMEOUT"
	smtpHostEnv          = "SMTP_HOST"
	smtpPortEnv          = "SMTP_PORT"
	smtpUsernameEnv      = "SMTP_USERNAME"
	smtpPasswordEnv      = "SMTP_PASSWORD"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Poll      PollConfig      `yaml:"poll"`
	SEC       SECConfig       `yaml:"sec"`
	Prefilter PrefilterConfig `yaml:"prefilter"`
	LLM       LLMConfig       `yaml:"llm"`
	Alerts    AlertConfig     `yaml:"alerts"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Companies []CompanyConfig `yaml:"companies"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig selects the dedupe store backend. A non-empty DSN picks
// Postgres; otherwise the SQLite file at Path is used.
type DatabaseConfig struct {
	DSN  string `yaml:"dsn"`
	Path string `yaml:"path"`
}

// PollConfig defines how often the monitor re-scans the feeds.
type PollConfig struct {
	Interval string `yaml:"interval"`
}

// IntervalDuration parses the poll interval, falling back to 30 minutes.
func (p PollConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(p.Interval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// SECConfig describes the submissions feed and document fetching.
type SECConfig struct {
	SubmissionsURL string   `yaml:"submissionsUrl"`
	UserAgent      string   `yaml:"userAgent"`
	FormTypes      []string `yaml:"formTypes"`
	MaxFilingChars int      `yaml:"maxFilingChars"`
}

// PrefilterConfig carries the length thresholds and boilerplate phrases.
type PrefilterConfig struct {
	DefaultMinChars    int            `yaml:"defaultMinChars"`
	FormMinChars       map[string]int `yaml:"formMinChars"`
	BoilerplatePhrases []string       `yaml:"boilerplatePhrases"`
}

// LLMConfig defines how to contact the classification endpoint.
type LLMConfig struct {
	URL                  string  `yaml:"url"`
	Model                string  `yaml:"model"`
	Temperature          float64 `yaml:"temperature"`
	CallTimeoutSeconds   int     `yaml:"callTimeoutSeconds"`
	Retries              int     `yaml:"retries"`
	StreamTimeoutSeconds int     `yaml:"streamTimeoutSeconds"`
}

// AlertConfig sets the minimum impact level that triggers an email.
type AlertConfig struct {
	MinImpact string `yaml:"minImpact"`
}

// SMTPConfig wires all data required to deliver alert mail.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	FromAddr string   `yaml:"fromAddr"`
	ToAddrs  []string `yaml:"toAddrs"`
}

// CompanyConfig identifies one tracked registrant.
type CompanyConfig struct {
	Symbol string `yaml:"symbol"`
	CIK    string `yaml:"cik"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Companies) == 0 {
		cfg.Companies = defaultConfig().Companies
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(ollamaURLEnv); v != "" {
		c.LLM.URL = v
	}
	if v := os.Getenv(ollamaModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := envInt(ollamaTimeoutEnv); v > 0 {
		c.LLM.CallTimeoutSeconds = v
	}
	if v := envInt(ollamaRetriesEnv); v > 0 {
		c.LLM.Retries = v
	}
	if v := envInt(ollamaStreamTimeoEnv); v > 0 {
		c.LLM.StreamTimeoutSeconds = v
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.SMTP.Host = v
	}
	if v := envInt(smtpPortEnv); v > 0 {
		c.SMTP.Port = v
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.SMTP.Password = v
	}
}

func envInt(name string) int {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s=%q is not a number, ignoring", name, raw)
		return 0
	}
	return n
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Poll.Interval != "" {
		base.Poll.Interval = override.Poll.Interval
	}

	if override.SEC.SubmissionsURL != "" {
		base.SEC.SubmissionsURL = override.SEC.SubmissionsURL
	}
	if override.SEC.UserAgent != "" {
		base.SEC.UserAgent = override.SEC.UserAgent
	}
	if len(override.SEC.FormTypes) > 0 {
		base.SEC.FormTypes = override.SEC.FormTypes
	}
	if override.SEC.MaxFilingChars > 0 {
		base.SEC.MaxFilingChars = override.SEC.MaxFilingChars
	}

	if override.Prefilter.DefaultMinChars > 0 {
		base.Prefilter.DefaultMinChars = override.Prefilter.DefaultMinChars
	}
	if len(override.Prefilter.FormMinChars) > 0 {
		base.Prefilter.FormMinChars = override.Prefilter.FormMinChars
	}
	if len(override.Prefilter.BoilerplatePhrases) > 0 {
		base.Prefilter.BoilerplatePhrases = override.Prefilter.BoilerplatePhrases
	}

	if override.LLM.URL != "" {
		base.LLM.URL = override.LLM.URL
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.Temperature > 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.CallTimeoutSeconds > 0 {
		base.LLM.CallTimeoutSeconds = override.LLM.CallTimeoutSeconds
	}
	if override.LLM.Retries > 0 {
		base.LLM.Retries = override.LLM.Retries
	}
	if override.LLM.StreamTimeoutSeconds > 0 {
		base.LLM.StreamTimeoutSeconds = override.LLM.StreamTimeoutSeconds
	}

	if override.Alerts.MinImpact != "" {
		base.Alerts.MinImpact = override.Alerts.MinImpact
	}

	if override.SMTP.Host != "" {
		base.SMTP.Host = override.SMTP.Host
	}
	if override.SMTP.Port > 0 {
		base.SMTP.Port = override.SMTP.Port
	}
	if override.SMTP.Username != "" {
		base.SMTP.Username = override.SMTP.Username
	}
	if override.SMTP.Password != "" {
		base.SMTP.Password = override.SMTP.Password
	}
	if override.SMTP.FromAddr != "" {
		base.SMTP.FromAddr = override.SMTP.FromAddr
	}
	if len(override.SMTP.ToAddrs) > 0 {
		base.SMTP.ToAddrs = override.SMTP.ToAddrs
	}

	if len(override.Companies) > 0 {
		base.Companies = override.Companies
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "db.sqlite"},
		Poll:     PollConfig{Interval: "30m"},
		SEC: SECConfig{
			SubmissionsURL: "https://data.sec.gov/submissions/CIK%s.json",
			UserAgent:      "SmartMarketMonitor/0.1 (alerts@example.com)",
			FormTypes:      []string{"8-K", "10-Q", "10-K", "4"},
			MaxFilingChars: 15000,
		},
		Prefilter: PrefilterConfig{
			DefaultMinChars: 1500,
			FormMinChars: map[string]int{
				"4":    200,
				"8-K":  800,
				"10-Q": 4000,
				"10-K": 4000,
			},
			BoilerplatePhrases: []string{"forward-looking statements"},
		},
		LLM: LLMConfig{
			URL:                  "http://localhost:11434/api/chat",
			Model:                "llama3:latest",
			Temperature:          0.25,
			CallTimeoutSeconds:   30,
			Retries:              3,
			StreamTimeoutSeconds: 120,
		},
		Alerts: AlertConfig{MinImpact: "Medium"},
		SMTP: SMTPConfig{
			Host:     "smtp.example.com",
			Port:     587,
			FromAddr: "alerts@example.com",
			ToAddrs:  []string{"you@example.com"},
		},
		Companies: []CompanyConfig{
			{Symbol: "GEHC", CIK: "0001932393"},
		},
	}
}
