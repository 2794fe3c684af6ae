package app

import (
	"context"
	"fmt"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
	"github.com/bobmcallan/tamreport/internal/services/reconcile"
	"github.com/bobmcallan/tamreport/internal/services/report"
	"github.com/bobmcallan/tamreport/internal/services/validator"
)

// RunOptions controls one pipeline run
type RunOptions struct {
	// Refresh bypasses fresh case snapshots.
	Refresh bool
}

// RunResult is the outcome of fetching, classifying, enriching, assembling
// and validating one customer's cases.
type RunResult struct {
	CustomerKey    string
	Customer       models.Customer
	Model          *models.ReportModel
	Enrichment     *validator.EnrichmentResult
	Validation     *models.ValidationReport
	ValidationPath string
	Warnings       []string
}

// GenerateResult is a RunResult plus the rendered report on disk
type GenerateResult struct {
	*RunResult
	ReportPath string
	BackupPath string
}

// ReconcileRun is a RunResult plus the reconciliation of an existing report
type ReconcileRun struct {
	*RunResult
	Reconcile *models.ReconcileResult
}

// Validate runs the pipeline for customerKey and persists the validation report.
func (a *App) Validate(ctx context.Context, customerKey string, opts RunOptions) (*RunResult, error) {
	run, err := a.prepare(ctx, customerKey, opts)
	if err != nil {
		return nil, err
	}
	if err := a.persist(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Generate runs the pipeline and writes the rendered Markdown report to
// reportPath, backing up any existing file first.
func (a *App) Generate(ctx context.Context, customerKey, reportPath string, opts RunOptions) (*GenerateResult, error) {
	run, err := a.prepare(ctx, customerKey, opts)
	if err != nil {
		return nil, err
	}
	if err := a.persist(ctx, run); err != nil {
		return nil, err
	}

	content := report.FormatMarkdown(run.Model, a.Config.Reconcile.AuthorMarker)
	backup, err := report.WriteReport(reportPath, content, a.now())
	if err != nil {
		return nil, common.WithContext(err, customerKey, "render")
	}
	a.emit(models.EventLevelInfo, "report", "render", customerKey, "Report written", map[string]any{
		"path":   reportPath,
		"backup": backup,
	})
	return &GenerateResult{RunResult: run, ReportPath: reportPath, BackupPath: backup}, nil
}

// Reconcile runs the pipeline and brings the JIRA statuses of the report at
// reportPath in line with the authority. A report that cannot be parsed
// yields no changes and a report_parse_error issue in the validation report.
func (a *App) Reconcile(ctx context.Context, customerKey, reportPath string, opts RunOptions, reconcileOpts reconcile.Options) (*ReconcileRun, error) {
	run, err := a.prepare(ctx, customerKey, opts)
	if err != nil {
		return nil, err
	}

	authority := reconcile.Authority{
		Status: make(map[string]string, len(run.Enrichment.Resolved)),
		Failed: run.Enrichment.Failed,
	}
	for id, st := range run.Enrichment.Resolved {
		authority.Status[id] = st.Status
	}

	result, err := a.Reconciler.Reconcile(reportPath, authority, reconcileOpts)
	if err != nil {
		return nil, common.WithContext(err, customerKey, "reconcile")
	}
	if len(result.Issues) > 0 {
		a.Validator.AddIssues(run.Model, result.Issues...)
	}
	run.Warnings = append(run.Warnings, result.Warnings...)

	if err := a.persist(ctx, run); err != nil {
		return nil, err
	}
	a.emit(models.EventLevelInfo, "reconcile", "apply", customerKey, "Report reconciled", map[string]any{
		"path":    reportPath,
		"updates": result.UpdatesMade,
		"applied": result.Applied,
		"backup":  result.BackupPath,
	})
	return &ReconcileRun{RunResult: run, Reconcile: result}, nil
}

// prepare runs every stage up to a scored report model
func (a *App) prepare(ctx context.Context, customerKey string, opts RunOptions) (*RunResult, error) {
	cust, err := a.Config.ResolveCustomer(customerKey)
	if err != nil {
		return nil, &common.Error{Kind: common.KindConfigInvalid, Component: "config", Customer: customerKey, Stage: "resolve", Err: err}
	}
	customer := models.Customer{
		AccountNumbers: cust.AccountNumbers,
		DisplayName:    cust.DisplayName,
		TemplateKey:    cust.TemplateKey,
	}
	run := &RunResult{CustomerKey: customerKey, Customer: customer}
	generatedAt := a.now()

	// 1. Fetch every account, first occurrence of a case number wins
	records, source, warnings, err := a.fetchCases(ctx, customerKey, customer.AccountNumbers, opts)
	if err != nil {
		return nil, common.WithContext(err, customerKey, "fetch")
	}
	run.Warnings = append(run.Warnings, warnings...)

	// 2. Classify
	classified := a.Classifier.ClassifyAll(records)
	a.emit(models.EventLevelDebug, "classifier", "classify", customerKey, "Cases classified", map[string]any{"cases": len(classified)})

	// 3. Enrich against the authority
	enrichment, err := a.Enricher.Enrich(ctx, classified)
	if err != nil {
		return nil, common.WithContext(err, customerKey, "enrich")
	}
	run.Enrichment = enrichment

	// 4. Assemble and score
	m := report.Assemble(enrichment.Cases, customer, generatedAt, source)
	m.Issues = append(m.Issues, enrichment.Issues...)
	for _, v := range report.Verify(m) {
		a.Logger.Warn().Str("customer", customerKey).Str("violation", v).Msg("Report model check failed")
		run.Warnings = append(run.Warnings, v)
	}
	a.Validator.Evaluate(m)
	run.Model = m

	a.emit(models.EventLevelInfo, "report", "assemble", customerKey, "Report model assembled", map[string]any{
		"active_rfes":  len(m.ActiveRFEs),
		"active_bugs":  len(m.ActiveBugs),
		"closed_cases": len(m.ClosedCases),
		"other_active": len(m.OtherActive),
		"excluded":     len(m.ExternalTrackerExcluded),
		"score":        m.AccuracyScore,
		"status":       string(m.Status),
	})
	return run, nil
}

// persist builds and saves the validation report for the run
func (a *App) persist(ctx context.Context, run *RunResult) error {
	run.Validation = a.Validator.BuildReport(run.Model, run.Warnings, a.now())
	path, err := a.Store.SaveValidationReport(ctx, run.Validation)
	if err != nil {
		return &common.Error{
			Kind:      common.KindReportWriteError,
			Component: "storage",
			Customer:  run.CustomerKey,
			Stage:     "persist",
			Err:       fmt.Errorf("failed to save validation report: %w", err),
		}
	}
	run.ValidationPath = path
	return nil
}

// fetchCases enumerates each account and merges the results. The returned
// source is the least fresh of the per-account sources.
func (a *App) fetchCases(ctx context.Context, customerKey string, accounts []string, opts RunOptions) ([]models.CaseRecord, string, []string, error) {
	a.CaseSource.Refresh = opts.Refresh

	var records []models.CaseRecord
	var warnings []string
	seen := make(map[string]struct{})
	source := models.SourceLive
	for _, acct := range accounts {
		fetch, err := a.CaseSource.ListCases(ctx, interfaces.CaseQuery{
			AccountNumber:  acct,
			LookbackMonths: a.Config.Source.LookbackMonths,
			SBRGroupFilter: a.Config.Source.SBRGroupFilter,
		})
		if err != nil {
			return nil, "", nil, err
		}
		source = lessFresh(source, fetch.Source)
		if fetch.Source == models.SourceFallback {
			warnings = append(warnings, fmt.Sprintf("account %s: case tool unavailable, using last stored snapshot", acct))
		}

		added := 0
		for _, c := range fetch.Cases {
			if _, dup := seen[c.CaseNumber]; dup {
				continue
			}
			seen[c.CaseNumber] = struct{}{}
			records = append(records, c)
			added++
		}
		a.emit(models.EventLevelInfo, "rhcase", "fetch", customerKey, "Cases fetched", map[string]any{
			"account": acct,
			"cases":   added,
			"source":  fetch.Source,
		})
	}
	return records, source, warnings, nil
}

func lessFresh(a, b string) string {
	rank := map[string]int{models.SourceLive: 0, models.SourceCache: 1, models.SourceFallback: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func (a *App) emit(level models.EventLevel, component, stage, customer, msg string, fields map[string]any) {
	a.Observer.Observe(models.Event{
		Level:     level,
		Component: component,
		Stage:     stage,
		Customer:  customer,
		Message:   msg,
		Fields:    fields,
	})
}
