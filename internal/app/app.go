// Package app wires configuration, storage, clients and services into the
// report pipeline shared by every tamreport command.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tamreport/internal/clients/jira"
	"github.com/bobmcallan/tamreport/internal/clients/rhcase"
	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/resilience"
	"github.com/bobmcallan/tamreport/internal/services/classifier"
	"github.com/bobmcallan/tamreport/internal/services/reconcile"
	"github.com/bobmcallan/tamreport/internal/services/validator"
	"github.com/bobmcallan/tamreport/internal/storage/snapshotfs"
)

// App holds the initialized clients and services for one process.
type App struct {
	Config     *common.Config
	Logger     *common.Logger
	Observer   interfaces.Observer
	Store      *snapshotfs.Store
	CaseSource *rhcase.CachedSource
	Jira       *jira.Client
	Breakers   *resilience.Registry
	Classifier *classifier.Classifier
	Enricher   *validator.Enricher
	Validator  *validator.Validator
	Reconciler *reconcile.Engine

	StartupTime time.Time
	now         func() time.Time
}

// Option adjusts how NewAppWithConfig builds the App
type Option func(*options)

type options struct {
	caseClientOpts []rhcase.ClientOption
	jiraOpts       []jira.ClientOption
	observer       interfaces.Observer
	now            func() time.Time
}

// WithCaseClientOptions appends options for the case tool client
func WithCaseClientOptions(opts ...rhcase.ClientOption) Option {
	return func(o *options) {
		o.caseClientOpts = append(o.caseClientOpts, opts...)
	}
}

// WithJiraOptions appends options for the JIRA client
func WithJiraOptions(opts ...jira.ClientOption) Option {
	return func(o *options) {
		o.jiraOpts = append(o.jiraOpts, opts...)
	}
}

// WithObserver replaces the default log observer
func WithObserver(observer interfaces.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithClock replaces the clock used for generated_at, backups and snapshots
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes the App. configPath may be
// empty, in which case common.ResolveConfigPath picks the file.
func NewApp(configPath string, opts ...Option) (*App, error) {
	common.LoadVersionFromBuildInfo()

	config, err := common.LoadConfig(common.ResolveConfigPath(configPath))
	if err != nil {
		return nil, err
	}

	// Relative paths are resolved against the binary directory
	binDir := getBinaryDir()
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return NewAppWithConfig(config, logger, opts...)
}

// NewAppWithConfig initializes the App from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger, opts ...Option) (*App, error) {
	startupStart := time.Now()

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	observer := o.observer
	if observer == nil {
		observer = common.NewLogObserver(logger)
	}

	// Storage
	store, err := snapshotfs.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, &common.Error{Kind: common.KindConfigInvalid, Component: "storage", Stage: "startup", Err: err}
	}

	// Case source: tool invocation behind the snapshot cache
	caseOpts := []rhcase.ClientOption{
		rhcase.WithToolPath(config.Source.RhcasePath),
		rhcase.WithTimeout(config.Source.GetTimeout()),
		rhcase.WithRetryPolicy(resilience.PolicyFromConfig(config.Retry.Source)),
		rhcase.WithLogger(logger),
	}
	caseClient := rhcase.NewClient(append(caseOpts, o.caseClientOpts...)...)
	cached := rhcase.NewCachedSource(caseClient, store, config.Source.GetSnapshotTTL(), logger).WithClock(o.now)

	// Authority
	if config.Authority.Token == "" {
		logger.Warn().Msg("JIRA token not configured - authority requests are anonymous")
	}
	breakers := resilience.NewRegistry(resilience.BreakerSettingsFromConfig(config.CircuitBreaker))
	jiraOpts := []jira.ClientOption{
		jira.WithBaseURL(config.Authority.BaseURL),
		jira.WithTimeout(config.Authority.GetTimeout()),
		jira.WithRateLimit(config.Authority.RateLimit),
		jira.WithRetryPolicy(resilience.PolicyFromConfig(config.Retry.Authority)),
		jira.WithBreakers(breakers),
		jira.WithLogger(logger),
	}
	jiraClient := jira.NewClient(config.Authority.Token, append(jiraOpts, o.jiraOpts...)...)

	// Services
	cls, err := classifier.NewClassifier(config.Classifier, logger)
	if err != nil {
		return nil, err
	}
	enricher := validator.NewEnricher(jiraClient, observer, logger)
	val := validator.NewValidator(config, logger)
	engine := reconcile.NewEngine(config.Reconcile.AuthorMarker, logger).WithClock(o.now)

	a := &App{
		Config:      config,
		Logger:      logger,
		Observer:    observer,
		Store:       store,
		CaseSource:  cached,
		Jira:        jiraClient,
		Breakers:    breakers,
		Classifier:  cls,
		Enricher:    enricher,
		Validator:   val,
		Reconciler:  engine,
		StartupTime: startupStart,
		now:         o.now,
	}

	logger.Debug().
		Str("data_path", store.DataPath()).
		Str("authority", jiraClient.Host()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases resources held by the App.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		a.Store = nil
	}
}

// SetValidationDir redirects validation reports for this process.
func (a *App) SetValidationDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := a.Store.WithValidationDir(dir); err != nil {
		return &common.Error{Kind: common.KindReportWriteError, Component: "storage", Stage: "startup", Err: fmt.Errorf("validation dir: %w", err)}
	}
	return nil
}
