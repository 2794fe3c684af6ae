// Package common provides shared utilities for tamreport
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultJiraIDPattern matches JIRA identifiers such as AAP-123 and AAPRFE-762.
const DefaultJiraIDPattern = `\b([A-Z]{2,}(?:RFE)?-\d+)\b`

// Config holds all configuration for tamreport
type Config struct {
	Environment        string                    `toml:"environment"`
	Source             SourceConfig              `toml:"source"`
	Classifier         ClassifierConfig          `toml:"classifier"`
	Authority          AuthorityConfig           `toml:"authority"`
	Retry              RetryConfig               `toml:"retry"`
	CircuitBreaker     CircuitBreakerConfig      `toml:"circuit_breaker"`
	AccuracyThresholds AccuracyThresholds        `toml:"accuracy_thresholds"`
	Validation         ValidationConfig          `toml:"validation"`
	Reconcile          ReconcileConfig           `toml:"reconcile"`
	Storage            StorageConfig             `toml:"storage"`
	Logging            LoggingConfig             `toml:"logging"`
	Customers          map[string]CustomerConfig `toml:"customers"`
}

// SourceConfig configures the external case tool
type SourceConfig struct {
	RhcasePath     string   `toml:"rhcase_path"`
	LookbackMonths int      `toml:"lookback_months"`
	SBRGroupFilter []string `toml:"sbr_group_filter"`
	Timeout        string   `toml:"timeout"`      // deadline per invocation, default "300s"
	SnapshotTTL    string   `toml:"snapshot_ttl"` // default "24h"
}

// GetTimeout parses and returns the invocation deadline
func (c *SourceConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// GetSnapshotTTL parses and returns the snapshot freshness window
func (c *SourceConfig) GetSnapshotTTL() time.Duration {
	d, err := time.ParseDuration(c.SnapshotTTL)
	if err != nil || d <= 0 {
		return FreshnessCaseSnapshot
	}
	return d
}

// ClassifierConfig holds the case classification vocabularies
type ClassifierConfig struct {
	RFETypeNames              []string `toml:"rfe_type_names"`
	BugTypeNames              []string `toml:"bug_type_names"`
	RFESubjectTokens          []string `toml:"rfe_subject_tokens"`
	BugSubjectTokens          []string `toml:"bug_subject_tokens"`
	ClosedStatusSet           []string `toml:"closed_status_set"`
	ExternalTrackerSubstrings []string `toml:"external_tracker_substrings"`
	JiraIDRegex               string   `toml:"jira_id_regex"`
	AllowedJiraProjects       []string `toml:"allowed_jira_projects"` // empty = any project
}

// AuthorityConfig holds JIRA authority configuration
type AuthorityConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RateLimit      int    `toml:"rate_limit"` // requests per second
}

// GetTimeout returns the per-request timeout
func (c *AuthorityConfig) GetTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryConfig holds the retry policies for each external collaborator
type RetryConfig struct {
	Source    RetryPolicyConfig `toml:"source"`
	Authority RetryPolicyConfig `toml:"authority"`
}

// RetryPolicyConfig describes exponential backoff
type RetryPolicyConfig struct {
	MaxAttempts int     `toml:"max_attempts"`
	BaseDelay   string  `toml:"base_delay"`
	Factor      float64 `toml:"factor"`
	MaxDelay    string  `toml:"max_delay"`
}

// GetBaseDelay parses and returns the first backoff delay
func (c *RetryPolicyConfig) GetBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.BaseDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// GetMaxDelay parses and returns the backoff cap
func (c *RetryPolicyConfig) GetMaxDelay() time.Duration {
	d, err := time.ParseDuration(c.MaxDelay)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// CircuitBreakerConfig configures the per-host authority breaker
type CircuitBreakerConfig struct {
	FailureThreshold       int `toml:"failure_threshold"`
	RecoveryTimeoutSeconds int `toml:"recovery_timeout_seconds"`
	HalfOpenMaxCalls       int `toml:"half_open_max_calls"`
}

// GetRecoveryTimeout returns how long an open breaker rejects calls
func (c *CircuitBreakerConfig) GetRecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSeconds) * time.Second
}

// AccuracyThresholds controls how an accuracy score maps to a validation status
type AccuracyThresholds struct {
	Accurate       float64 `toml:"accurate"`
	CustomerFacing float64 `toml:"customer_facing"`
	Minimum        float64 `toml:"minimum"` // below this the report is inaccurate
}

// ValidationConfig holds content-rule vocabularies
type ValidationConfig struct {
	// ProductKeywords maps a product label to the title keywords that confirm it.
	ProductKeywords map[string][]string `toml:"product_keywords"`
}

// ReconcileConfig configures in-place report updates
type ReconcileConfig struct {
	AuthorMarker string `toml:"author_marker"`
}

// StorageConfig holds the filesystem cache location
type StorageConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// CustomerConfig describes one customer's accounts and report template
type CustomerConfig struct {
	AccountNumbers []string `toml:"account_numbers"`
	DisplayName    string   `toml:"display_name"`
	TemplateKey    string   `toml:"template_key"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Source: SourceConfig{
			RhcasePath:     "rhcase",
			LookbackMonths: 1,
			Timeout:        "300s",
			SnapshotTTL:    "24h",
		},
		Classifier: ClassifierConfig{
			RFETypeNames:              []string{"Feature / Enhancement Request"},
			BugTypeNames:              []string{"Defect / Bug"},
			RFESubjectTokens:          []string{"[RFE]"},
			BugSubjectTokens:          []string{"[BUG]"},
			ClosedStatusSet:           []string{"Closed", "Resolved", "Solved", "Done", "Complete", "Delivered"},
			ExternalTrackerSubstrings: []string{"issues.redhat.com", "bugzilla.redhat.com"},
			JiraIDRegex:               DefaultJiraIDPattern,
		},
		Authority: AuthorityConfig{
			BaseURL:        "https://issues.redhat.com",
			TimeoutSeconds: 10,
			RateLimit:      5,
		},
		Retry: RetryConfig{
			Source: RetryPolicyConfig{
				MaxAttempts: 3,
				BaseDelay:   "2s",
				Factor:      2.0,
				MaxDelay:    "30s",
			},
			Authority: RetryPolicyConfig{
				MaxAttempts: 3,
				BaseDelay:   "2s",
				Factor:      2.0,
				MaxDelay:    "30s",
			},
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:       5,
			RecoveryTimeoutSeconds: 300,
			HalfOpenMaxCalls:       3,
		},
		AccuracyThresholds: AccuracyThresholds{
			Accurate:       0.99,
			CustomerFacing: 0.99,
			Minimum:        0.95,
		},
		Validation: ValidationConfig{
			ProductKeywords: map[string][]string{
				"Ansible": {"ansible", "aap", "tower", "awx", "automation"},
			},
		},
		Reconcile: ReconcileConfig{
			AuthorMarker: "Prepared by",
		},
		Storage: StorageConfig{
			Path: "data",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"console"},
		},
		Customers: map[string]CustomerConfig{},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TAMREPORT_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("TAMREPORT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TAMREPORT_RHCASE_PATH"); path != "" {
		config.Source.RhcasePath = path
	}

	if months := os.Getenv("TAMREPORT_LOOKBACK_MONTHS"); months != "" {
		if m, err := strconv.Atoi(months); err == nil {
			config.Source.LookbackMonths = m
		}
	}

	if url := os.Getenv("TAMREPORT_JIRA_URL"); url != "" {
		config.Authority.BaseURL = url
	}

	// Token precedence: TAMREPORT_JIRA_TOKEN > JIRA_API_TOKEN > config file
	for _, name := range []string{"TAMREPORT_JIRA_TOKEN", "JIRA_API_TOKEN"} {
		if v := os.Getenv(name); v != "" {
			config.Authority.Token = v
			break
		}
	}

	if path := os.Getenv("TAMREPORT_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Source.LookbackMonths < 1 {
		problems = append(problems, fmt.Sprintf("source.lookback_months must be positive, got %d", c.Source.LookbackMonths))
	}
	if strings.TrimSpace(c.Source.RhcasePath) == "" {
		problems = append(problems, "source.rhcase_path is empty")
	}
	if c.Classifier.JiraIDRegex == "" {
		c.Classifier.JiraIDRegex = DefaultJiraIDPattern
	}
	if _, err := regexp.Compile(c.Classifier.JiraIDRegex); err != nil {
		problems = append(problems, fmt.Sprintf("classifier.jira_id_regex does not compile: %v", err))
	}
	if c.CircuitBreaker.FailureThreshold < 1 {
		problems = append(problems, "circuit_breaker.failure_threshold must be positive")
	}
	if c.CircuitBreaker.RecoveryTimeoutSeconds < 1 {
		problems = append(problems, "circuit_breaker.recovery_timeout_seconds must be positive")
	}
	if c.CircuitBreaker.HalfOpenMaxCalls < 1 {
		problems = append(problems, "circuit_breaker.half_open_max_calls must be positive")
	}
	for name, v := range map[string]float64{
		"accurate":        c.AccuracyThresholds.Accurate,
		"customer_facing": c.AccuracyThresholds.CustomerFacing,
		"minimum":         c.AccuracyThresholds.Minimum,
	} {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("accuracy_thresholds.%s must be within [0,1], got %v", name, v))
		}
	}
	for key, cust := range c.Customers {
		for _, acct := range cust.AccountNumbers {
			if !IsAccountNumber(acct) {
				problems = append(problems, fmt.Sprintf("customers.%s: invalid account number %q", key, acct))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return &Error{
			Kind:      KindConfigInvalid,
			Component: "config",
			Stage:     "load",
			Err:       fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; ")),
		}
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveCustomer returns the customer entry for key. When key is not a
// configured customer but is itself an account number, an ad-hoc customer
// for that single account is returned.
func (c *Config) ResolveCustomer(key string) (CustomerConfig, error) {
	if cust, ok := c.Customers[key]; ok {
		if len(cust.AccountNumbers) == 0 {
			return CustomerConfig{}, fmt.Errorf("customer '%s' has no account numbers", key)
		}
		if cust.DisplayName == "" {
			cust.DisplayName = key
		}
		if cust.TemplateKey == "" {
			cust.TemplateKey = key
		}
		return cust, nil
	}
	if IsAccountNumber(key) {
		return CustomerConfig{
			AccountNumbers: []string{key},
			DisplayName:    key,
			TemplateKey:    "default",
		}, nil
	}
	return CustomerConfig{}, fmt.Errorf("customer '%s' not found in config and is not an account number", key)
}

// ResolveConfigPath picks the config file: explicit path, TAMREPORT_CONFIG,
// tamreport.toml beside the binary, then config/tamreport.toml.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("TAMREPORT_CONFIG"); env != "" {
		return env
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "tamreport.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "config/tamreport.toml"
}

// IsAccountNumber reports whether s is 4 to 10 digits
func IsAccountNumber(s string) bool {
	if len(s) < 4 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
