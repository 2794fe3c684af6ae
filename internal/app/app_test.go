package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tamreport/internal/clients/jira"
	"github.com/bobmcallan/tamreport/internal/clients/rhcase"
	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
	"github.com/bobmcallan/tamreport/internal/resilience"
	"github.com/bobmcallan/tamreport/internal/services/reconcile"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

const rfeAccountOutput = `[
  {"caseNumber": "04244831", "summary": "[RFE] Add widget", "status": "Waiting on Red Hat", "isClosed": false,
   "description": "Tracked in AAPRFE-762", "createdDate": "2026-09-01T10:00:00Z", "lastModifiedDate": "2026-10-01T09:00:00Z"}
]`

const bugAccountOutput = `[
  {"caseNumber": "04250001", "summary": "[BUG] Controller crash", "status": "Closed", "isClosed": true,
   "description": "See AAP-1234", "createdDate": "2026-08-01T10:00:00Z", "lastModifiedDate": "2026-09-15T10:00:00Z",
   "closedDate": "2026-09-15T10:00:00Z"},
  {"caseNumber": "04244831", "summary": "[RFE] Add widget (copy)", "status": "Closed", "isClosed": true}
]`

// fakeRunner serves canned case tool output keyed by account number
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	err     error
	calls   int
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return []byte(f.outputs[args[1]]), nil, nil
}

// fakeJira serves issue states; statuses may be changed between runs
type fakeJira struct {
	mu       sync.Mutex
	statuses map[string]string
	code     int
}

func (f *fakeJira) set(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.code != 0 {
		w.WriteHeader(f.code)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
	status, ok := f.statuses[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"key":%q,"fields":{"summary":"x","status":{"name":%q},"assignee":null,"updated":"2026-10-10T10:00:00.000+0000"}}`, id, status)
}

type testEnv struct {
	app    *App
	runner *fakeRunner
	jira   *fakeJira
	events []models.Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		runner: &fakeRunner{outputs: map[string]string{
			"1234567": rfeAccountOutput,
			"7654321": bugAccountOutput,
		}},
		jira: &fakeJira{statuses: map[string]string{
			"AAPRFE-762": "Backlog",
			"AAP-1234":   "Closed",
		}},
	}
	srv := httptest.NewServer(env.jira)
	t.Cleanup(srv.Close)

	config := common.NewDefaultConfig()
	config.Storage.Path = t.TempDir()
	config.Authority.BaseURL = srv.URL
	config.Customers["acme"] = common.CustomerConfig{
		AccountNumbers: []string{"1234567", "7654321"},
		DisplayName:    "Acme Corp",
	}

	noSleep := resilience.DefaultPolicy()
	noSleep.Sleep = func(context.Context, time.Duration) error { return nil }

	a, err := NewAppWithConfig(config, common.NewSilentLogger(),
		WithCaseClientOptions(rhcase.WithRunner(env.runner), rhcase.WithRetryPolicy(noSleep)),
		WithJiraOptions(jira.WithRateLimit(1000), jira.WithRetryPolicy(noSleep)),
		WithObserver(interfaces.ObserverFunc(func(ev models.Event) { env.events = append(env.events, ev) })),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	env.app = a
	return env
}

func TestValidate_MergesAccountsAndPersists(t *testing.T) {
	env := newTestEnv(t)

	run, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.NoError(t, err)

	m := run.Model
	require.Len(t, m.ActiveRFEs, 1)
	assert.Equal(t, "04244831", m.ActiveRFEs[0].CaseNumber)
	assert.Equal(t, "Backlog", m.ActiveRFEs[0].Jira["AAPRFE-762"].Status)
	require.Len(t, m.ClosedCases, 1, "duplicate case from the second account is dropped")
	assert.Equal(t, "04250001", m.ClosedCases[0].CaseNumber)
	assert.Empty(t, m.ActiveBugs)
	assert.Empty(t, m.OtherActive)
	assert.Equal(t, models.SourceLive, m.Source)
	assert.Equal(t, 1.0, m.AccuracyScore)
	assert.Equal(t, models.StatusAccurate, m.Status)

	require.NotNil(t, run.Validation)
	assert.Equal(t, 2, run.Validation.ItemsValidated)
	assert.Equal(t, filepath.Join(env.app.Store.ValidationDir(), "content_validation_report_20261018_120000.json"), run.ValidationPath)
	loaded, err := env.app.Store.LoadValidationReport(context.Background(), run.ValidationPath)
	require.NoError(t, err)
	assert.Equal(t, run.Validation.ReportID, loaded.ReportID)

	var fetches int
	for _, ev := range env.events {
		if ev.Stage == "fetch" {
			fetches++
			assert.Equal(t, "acme", ev.Customer)
		}
	}
	assert.Equal(t, 2, fetches)
}

func TestValidate_UsesSnapshotOnSecondRun(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, env.runner.calls)

	run, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, env.runner.calls, "fresh snapshots served from cache")
	assert.Equal(t, models.SourceCache, run.Model.Source)
}

func TestValidate_FallsBackToStaleSnapshot(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.NoError(t, err)

	env.runner.err = exec.ErrNotFound
	run, err := env.app.Validate(context.Background(), "acme", RunOptions{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, run.Model.Source)
	assert.Len(t, run.Warnings, 2)
	assert.Len(t, run.Model.AllCases(), 2)
}

func TestValidate_SourceUnavailableHalts(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = exec.ErrNotFound

	_, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.Error(t, err)
	assert.Equal(t, common.KindSourceUnavailable, common.KindOf(err))
	rec := common.RecordOf(err)
	assert.Equal(t, "acme", rec.Customer)
	assert.Equal(t, "fetch", rec.Stage)

	entries, _ := os.ReadDir(env.app.Store.ValidationDir())
	assert.Empty(t, entries, "no partial artifacts")
}

func TestValidate_AuthorityUnavailableHalts(t *testing.T) {
	env := newTestEnv(t)
	env.jira.code = http.StatusServiceUnavailable

	_, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.Error(t, err)
	assert.Equal(t, common.KindAuthorityTransient, common.KindOf(err))
	assert.Equal(t, "acme", common.RecordOf(err).Customer)
}

func TestValidate_DeniedIdRecordedAndRunCompletes(t *testing.T) {
	env := newTestEnv(t)
	delete(env.jira.statuses, "AAP-1234")

	run, err := env.app.Validate(context.Background(), "acme", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AAP-1234": models.ReasonNotFound}, run.Enrichment.Failed)
	require.Len(t, run.Model.ClosedCases, 1)
	assert.Equal(t, []models.EnrichmentError{{JiraID: "AAP-1234", Reason: models.ReasonNotFound}}, run.Model.ClosedCases[0].EnrichmentErrors)
	assert.Equal(t, 1, run.Validation.IssueCounts[models.SeverityMedium])
	assert.Less(t, run.Model.AccuracyScore, 1.0)
}

func TestValidate_UnknownCustomer(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.app.Validate(context.Background(), "nobody", RunOptions{})
	require.Error(t, err)
	assert.Equal(t, common.KindConfigInvalid, common.KindOf(err))
}

func TestGenerateThenReconcile(t *testing.T) {
	env := newTestEnv(t)
	reportPath := filepath.Join(t.TempDir(), "reports", "acme.md")

	gen, err := env.app.Generate(context.Background(), "acme", reportPath, RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, gen.BackupPath)
	content, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "| AAPRFE-762 | 04244831 | [RFE] Add widget | Backlog |")

	// Unchanged authority: nothing to do
	rec, err := env.app.Reconcile(context.Background(), "acme", reportPath, RunOptions{}, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Reconcile.UpdatesMade)
	assert.Empty(t, rec.Reconcile.BackupPath)

	// Drift
	env.jira.set("AAPRFE-762", "In Progress")
	rec, err = env.app.Reconcile(context.Background(), "acme", reportPath, RunOptions{}, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusChange{{JiraID: "AAPRFE-762", Old: "Backlog", New: "In Progress"}}, rec.Reconcile.Changes)
	assert.FileExists(t, rec.Reconcile.BackupPath)

	updated, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "| AAPRFE-762 | 04244831 | [RFE] Add widget | In Progress |")
	assert.Contains(t, string(updated), "**Prepared by:** tamreport\nLast Updated: 2026-10-18 12:00:00\n")

	// Second pass is a no-op
	rec, err = env.app.Reconcile(context.Background(), "acme", reportPath, RunOptions{}, reconcile.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Reconcile.UpdatesMade)
	again, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, updated, again)
}

func TestReconcile_UnparseableReportAddsIssue(t *testing.T) {
	env := newTestEnv(t)
	reportPath := filepath.Join(t.TempDir(), "acme.md")
	require.NoError(t, os.WriteFile(reportPath, []byte{0xff, 0xfe, 0x00}, 0644))

	rec, err := env.app.Reconcile(context.Background(), "acme", reportPath, RunOptions{}, reconcile.Options{})
	require.NoError(t, err)
	assert.Empty(t, rec.Reconcile.Changes)

	data, err := os.ReadFile(rec.ValidationPath)
	require.NoError(t, err)
	var persisted models.ValidationReport
	require.NoError(t, json.Unmarshal(data, &persisted))
	var types []string
	for _, issue := range persisted.Issues {
		types = append(types, issue.IssueType)
	}
	assert.Contains(t, types, models.IssueReportParseError)
	assert.Less(t, persisted.OverallAccuracyScore, 1.0)
}

func TestWarmSnapshots(t *testing.T) {
	env := newTestEnv(t)
	env.app.Config.Customers["beta"] = common.CustomerConfig{AccountNumbers: []string{"1234567"}}

	summary := env.app.WarmSnapshots(context.Background(), false)
	assert.Equal(t, WarmSummary{Accounts: 2, Fetched: 2}, summary)
	assert.Equal(t, 2, env.runner.calls)

	// Fresh snapshots are not fetched again
	env.app.WarmSnapshots(context.Background(), false)
	assert.Equal(t, 2, env.runner.calls)

	env.runner.err = exec.ErrNotFound
	summary = env.app.WarmSnapshots(context.Background(), true)
	assert.Equal(t, WarmSummary{Accounts: 2, Fetched: 2}, summary, "stale snapshots still serve as fallback")
}
