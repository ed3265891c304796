package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	nativecommon "reservenet/native/common"
	"reservenet/native/reserve"
)

// Duration wraps time.Duration so TOML files can use human readable strings.
type Duration struct {
	time.Duration
}

// UnmarshalText parses values like "6h" or "90s".
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in its canonical string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ConsensusConfig carries the engine tuning knobs.
type ConsensusConfig struct {
	Threshold             int      `toml:"Threshold"`
	AttestationTimeout    Duration `toml:"AttestationTimeout"`
	MaxStaleness          Duration `toml:"MaxStaleness"`
	MinReportingFrequency Duration `toml:"MinReportingFrequency"`
	MaxMissedReports      uint64   `toml:"MaxMissedReports"`
}

// RateLimitConfig bounds attestation submissions per principal. A zero
// SubmitPerMinute disables throttling.
type RateLimitConfig struct {
	SubmitPerMinute float64 `toml:"SubmitPerMinute"`
	Burst           int     `toml:"Burst"`
}

// Config captures the runtime configuration for the reserved daemon.
type Config struct {
	ListenAddress   string          `toml:"ListenAddress"`
	DataDir         string          `toml:"DataDir"`
	CredentialsFile string          `toml:"CredentialsFile"`
	PausedModules   []string        `toml:"PausedModules"`
	RateLimit       RateLimitConfig `toml:"RateLimit"`
	Consensus       ConsensusConfig `toml:"Consensus"`
}

type pauseSet map[string]struct{}

func (p pauseSet) IsPaused(module string) bool {
	_, ok := p[module]
	return ok
}

// Pauses returns a pause view over PausedModules, or nil when nothing is
// paused. Operators edit the list and restart to toggle a module.
func (c *Config) Pauses() nativecommon.PauseView {
	if len(c.PausedModules) == 0 {
		return nil
	}
	set := make(pauseSet, len(c.PausedModules))
	for _, name := range c.PausedModules {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Params converts the consensus section into engine parameters.
func (c ConsensusConfig) Params() reserve.Params {
	return reserve.Params{
		ConsensusThreshold:    c.Threshold,
		AttestationTimeout:    c.AttestationTimeout.Duration,
		MaxStaleness:          c.MaxStaleness.Duration,
		MinReportingFrequency: c.MinReportingFrequency.Duration,
		MaxMissedReports:      c.MaxMissedReports,
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before the daemon starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required")
	}
	if strings.TrimSpace(c.CredentialsFile) == "" {
		return fmt.Errorf("CredentialsFile required")
	}
	if c.RateLimit.SubmitPerMinute < 0 {
		return fmt.Errorf("RateLimit.SubmitPerMinute must not be negative")
	}
	if err := c.Consensus.Params().Validate(); err != nil {
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	defaults := defaultConfig()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaults.ListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		cfg.CredentialsFile = defaults.CredentialsFile
	}
	if cfg.Consensus.Threshold == 0 {
		cfg.Consensus.Threshold = defaults.Consensus.Threshold
	}
	if cfg.Consensus.AttestationTimeout.Duration == 0 {
		cfg.Consensus.AttestationTimeout = defaults.Consensus.AttestationTimeout
	}
	if cfg.Consensus.MaxStaleness.Duration == 0 {
		cfg.Consensus.MaxStaleness = defaults.Consensus.MaxStaleness
	}
	if cfg.Consensus.MinReportingFrequency.Duration == 0 {
		cfg.Consensus.MinReportingFrequency = defaults.Consensus.MinReportingFrequency
	}
	if cfg.Consensus.MaxMissedReports == 0 {
		cfg.Consensus.MaxMissedReports = defaults.Consensus.MaxMissedReports
	}
}

func defaultConfig() *Config {
	params := reserve.DefaultParams()
	return &Config{
		ListenAddress:   ":8551",
		DataDir:         "./reserved-data",
		CredentialsFile: "credentials.yaml",
		RateLimit: RateLimitConfig{
			SubmitPerMinute: 120,
			Burst:           10,
		},
		Consensus: ConsensusConfig{
			Threshold:             params.ConsensusThreshold,
			AttestationTimeout:    Duration{params.AttestationTimeout},
			MaxStaleness:          Duration{params.MaxStaleness},
			MinReportingFrequency: Duration{params.MinReportingFrequency},
			MaxMissedReports:      params.MaxMissedReports,
		},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
