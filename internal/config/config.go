// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"snowops/internal/errors"
	"snowops/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Connection selects the account and the authentication mode
	Connection Connection `json:"connection" yaml:"connection"`

	// Pricing contains pricing configuration
	Pricing PricingConfig `json:"pricing" yaml:"pricing"`

	// Analysis contains report thresholds
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Apply contains reconciliation settings
	Apply ApplyConfig `json:"apply" yaml:"apply"`

	// Output contains output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// AuthMode is the credential strategy of a connection.
type AuthMode string

const (
	AuthKeyPair  AuthMode = "key_pair"
	AuthPassword AuthMode = "password"
	AuthBrowser  AuthMode = "browser_sso"
)

// Connection holds session settings. Exactly one auth mode may be set.
type Connection struct {
	Account   string `json:"account" yaml:"account"`
	User      string `json:"user" yaml:"user"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	Warehouse string `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	Database  string `json:"database,omitempty" yaml:"database,omitempty"`
	Schema    string `json:"schema,omitempty" yaml:"schema,omitempty"`

	PrivateKeyPath       string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	PrivateKeyPassphrase string `json:"private_key_passphrase,omitempty" yaml:"private_key_passphrase,omitempty"`
	Password             string `json:"password,omitempty" yaml:"password,omitempty"`
	BrowserSSO           bool   `json:"browser_sso,omitempty" yaml:"browser_sso,omitempty"`
}

// AuthMode resolves the single configured authentication mode.
func (c Connection) AuthMode() (AuthMode, error) {
	var modes []AuthMode
	if c.PrivateKeyPath != "" {
		modes = append(modes, AuthKeyPair)
	}
	if c.Password != "" {
		modes = append(modes, AuthPassword)
	}
	if c.BrowserSSO {
		modes = append(modes, AuthBrowser)
	}

	switch len(modes) {
	case 0:
		return "", errors.Config("no authentication mode set: provide one of private_key_path, password or browser_sso")
	case 1:
		return modes[0], nil
	default:
		names := make([]string, len(modes))
		for i, m := range modes {
			names[i] = string(m)
		}
		return "", errors.Configf("ambiguous authentication: %s are all set, choose one", strings.Join(names, ", "))
	}
}

// Validate checks the connection before any network call.
func (c Connection) Validate() error {
	if c.Account == "" {
		return errors.Config("connection account is required")
	}
	if c.User == "" {
		return errors.Config("connection user is required")
	}
	if c.PrivateKeyPassphrase != "" && c.PrivateKeyPath == "" {
		return errors.Config("private_key_passphrase set without private_key_path")
	}
	_, err := c.AuthMode()
	return err
}

// PricingConfig contains pricing-related settings
type PricingConfig struct {
	// CreditPrice is the currency cost of one credit
	CreditPrice decimal.Decimal `json:"credit_price" yaml:"credit_price"`

	// Currency is the display currency
	Currency string `json:"currency" yaml:"currency"`
}

// AnalysisConfig contains report defaults
type AnalysisConfig struct {
	// Days is the default lookback window
	Days int `json:"days" yaml:"days"`

	// BaselinePeriods is the trailing window of the spike detector
	BaselinePeriods int `json:"baseline_periods" yaml:"baseline_periods"`

	// SpikeThreshold is the minimum reported spike, in percent of baseline
	SpikeThreshold float64 `json:"spike_threshold" yaml:"spike_threshold"`

	// InactiveDays marks users inactive in the access audit
	InactiveDays int `json:"inactive_days" yaml:"inactive_days"`

	// MaxClusteringKeys bounds the proposed clustering key
	MaxClusteringKeys int `json:"max_clustering_keys" yaml:"max_clustering_keys"`

	// SlowQuerySeconds is the slow-query cutoff
	SlowQuerySeconds float64 `json:"slow_query_seconds" yaml:"slow_query_seconds"`
}

// ApplyConfig contains reconciliation settings
type ApplyConfig struct {
	// StatementsPerSecond paces statements sent to the platform
	StatementsPerSecond float64 `json:"statements_per_second" yaml:"statements_per_second"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// Color enables ANSI colors
	Color bool `json:"color" yaml:"color"`

	// Detailed prints per-row rationale
	Detailed bool `json:"detailed" yaml:"detailed"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Pricing: PricingConfig{
			CreditPrice: decimal.NewFromInt(3),
			Currency:    "USD",
		},
		Analysis: AnalysisConfig{
			Days:              30,
			BaselinePeriods:   7,
			SpikeThreshold:    120,
			InactiveDays:      90,
			MaxClusteringKeys: 4,
			SlowQuerySeconds:  60,
		},
		Apply: ApplyConfig{
			StatementsPerSecond: 2,
		},
		Output: OutputConfig{
			Color: true,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a YAML or JSON file
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, errors.Wrap(errors.TypeConfig, "read config", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.TypeConfig, err, "parse config %s", path)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overlays environment settings, which take precedence over the file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SNOWFLAKE_ACCOUNT", &c.Connection.Account)
	str("SNOWFLAKE_USER", &c.Connection.User)
	str("SNOWFLAKE_ROLE", &c.Connection.Role)
	str("SNOWFLAKE_WAREHOUSE", &c.Connection.Warehouse)
	str("SNOWFLAKE_DATABASE", &c.Connection.Database)
	str("SNOWFLAKE_SCHEMA", &c.Connection.Schema)
	str("SNOWFLAKE_PASSWORD", &c.Connection.Password)
	str("SNOWFLAKE_PRIVATE_KEY_PATH", &c.Connection.PrivateKeyPath)
	str("SNOWFLAKE_PRIVATE_KEY_PASSPHRASE", &c.Connection.PrivateKeyPassphrase)
	str("LOG_LEVEL", &c.Logging.Level)

	if v, ok := lookup("SNOWFLAKE_AUTHENTICATOR"); ok && strings.EqualFold(v, "externalbrowser") {
		c.Connection.BrowserSSO = true
	}

	if v, ok := lookup("SNOWFLAKE_CREDIT_COST"); ok && v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrapf(errors.TypeConfig, err, "SNOWFLAKE_CREDIT_COST %q", v)
		}
		c.Pricing.CreditPrice = price
	}

	if v, ok := lookup("SNOWOPS_STATEMENTS_PER_SECOND"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(errors.TypeConfig, err, "SNOWOPS_STATEMENTS_PER_SECOND %q", v)
		}
		c.Apply.StatementsPerSecond = rps
	}

	return nil
}

// Validate checks the non-connection settings. Connection settings are
// checked separately since offline commands never open a session.
func (c *Config) Validate() error {
	if c.Pricing.CreditPrice.IsNegative() {
		return errors.Configf("pricing.credit_price must not be negative, got %s", c.Pricing.CreditPrice)
	}
	if c.Analysis.Days <= 0 {
		return errors.Configf("analysis.days must be positive, got %d", c.Analysis.Days)
	}
	if c.Analysis.BaselinePeriods <= 0 {
		return errors.Configf("analysis.baseline_periods must be positive, got %d", c.Analysis.BaselinePeriods)
	}
	if c.Analysis.MaxClusteringKeys < 1 || c.Analysis.MaxClusteringKeys > 4 {
		return errors.Configf("analysis.max_clustering_keys must be between 1 and 4, got %d", c.Analysis.MaxClusteringKeys)
	}
	if c.Analysis.InactiveDays <= 0 {
		return errors.Configf("analysis.inactive_days must be positive, got %d", c.Analysis.InactiveDays)
	}
	if c.Apply.StatementsPerSecond <= 0 {
		return errors.Configf("apply.statements_per_second must be positive, got %g", c.Apply.StatementsPerSecond)
	}
	return nil
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
