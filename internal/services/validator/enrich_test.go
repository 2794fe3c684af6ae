package validator

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
)

type fakeAuthority struct {
	issues map[string]models.JiraIssueState
	errs   map[string]error
	calls  []string
}

func (f *fakeAuthority) GetIssue(ctx context.Context, id string) (*models.JiraIssueState, error) {
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	if st, ok := f.issues[id]; ok {
		return &st, nil
	}
	return nil, common.Errorf(common.KindAuthorityNotFound, "jira", "%s not found", id)
}

func classified(number string, kind models.CaseKind, refs ...string) models.ClassifiedCase {
	return models.ClassifiedCase{
		CaseRecord: models.CaseRecord{CaseNumber: number, Summary: "case " + number},
		Kind:       kind,
		Phase:      models.PhaseActive,
		JiraRefs:   refs,
	}
}

func TestEnrich_DeniedIdRecordedAndRunCompletes(t *testing.T) {
	auth := &fakeAuthority{
		issues: map[string]models.JiraIssueState{"AAPRFE-762": {Key: "AAPRFE-762", Status: "Review", Assignee: "Jane"}},
		errs:   map[string]error{"AAP-99999": common.Errorf(common.KindAuthorityDenied, "jira", "401")},
	}
	var events []models.Event
	e := NewEnricher(auth, interfaces.ObserverFunc(func(ev models.Event) { events = append(events, ev) }), nil)

	res, err := e.Enrich(context.Background(), []models.ClassifiedCase{
		classified("04244831", models.KindRFE, "AAPRFE-762"),
		classified("04244832", models.KindBug, "AAP-99999"),
	})
	require.NoError(t, err)
	require.Len(t, res.Cases, 2)

	assert.Equal(t, "Review", res.Cases[0].Jira["AAPRFE-762"].Status)
	assert.Equal(t, []string{"AAPRFE-762"}, res.Cases[0].JiraRefs)
	assert.Empty(t, res.Cases[0].EnrichmentErrors)

	assert.Empty(t, res.Cases[1].Jira)
	assert.Empty(t, res.Cases[1].JiraRefs)
	assert.Equal(t, []models.EnrichmentError{{JiraID: "AAP-99999", Reason: models.ReasonDenied}}, res.Cases[1].EnrichmentErrors)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, models.IssueJiraEnrichmentFailed, res.Issues[0].IssueType)
	assert.Equal(t, models.SeverityMedium, res.Issues[0].Severity)
	assert.NotEmpty(t, events)
}

func TestEnrich_OneLookupPerDistinctIdInEncounterOrder(t *testing.T) {
	auth := &fakeAuthority{issues: map[string]models.JiraIssueState{
		"AAP-1": {Status: "New"}, "AAP-2": {Status: "Done"}, "AAP-3": {Status: "Backlog"},
	}}
	e := NewEnricher(auth, nil, nil)

	res, err := e.Enrich(context.Background(), []models.ClassifiedCase{
		classified("00000001", models.KindBug, "AAP-2", "AAP-1"),
		classified("00000002", models.KindBug, "AAP-1", "AAP-3"),
		classified("00000003", models.KindBug, "AAP-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAP-2", "AAP-1", "AAP-3"}, auth.calls)
	assert.Equal(t, auth.calls, res.Order)
	assert.Equal(t, []string{"AAP-1", "AAP-3"}, res.Cases[1].JiraRefs)
}

func TestEnrich_NotFoundIsMediumIssueWithCaseLocation(t *testing.T) {
	auth := &fakeAuthority{issues: map[string]models.JiraIssueState{"AAP-1": {Status: "New"}}}
	e := NewEnricher(auth, nil, nil)

	res, err := e.Enrich(context.Background(), []models.ClassifiedCase{
		classified("00000001", models.KindBug, "AAP-1", "AAP-404"),
		classified("00000002", models.KindBug, "AAP-404"),
	})
	require.NoError(t, err)
	require.Len(t, res.Issues, 1, "one issue per distinct id")
	assert.Equal(t, models.IssueJiraNotFound, res.Issues[0].IssueType)
	assert.Equal(t, "jira AAP-404 (case 00000001, 00000002)", res.Issues[0].Location)
	assert.Equal(t, models.ReasonNotFound, res.Failed["AAP-404"])
}

func TestEnrich_EveryIdAccountedFor(t *testing.T) {
	auth := &fakeAuthority{
		issues: map[string]models.JiraIssueState{"AAP-1": {Status: "New"}},
		errs: map[string]error{
			"AAP-2": common.Errorf(common.KindAuthorityMalformed, "jira", "bad"),
			"AAP-3": common.Errorf(common.KindCircuitOpen, "circuit_breaker", "open"),
		},
	}
	cases := []models.ClassifiedCase{classified("00000001", models.KindBug, "AAP-1", "AAP-2", "AAP-3", "AAP-4")}
	res, err := NewEnricher(auth, nil, nil).Enrich(context.Background(), cases)
	require.NoError(t, err)

	ec := res.Cases[0]
	for _, id := range cases[0].JiraRefs {
		_, resolved := ec.Jira[id]
		failed := false
		for _, e := range ec.EnrichmentErrors {
			failed = failed || e.JiraID == id
		}
		assert.True(t, resolved != failed, "id %s must be resolved xor failed", id)
	}
	for _, id := range ec.JiraRefs {
		assert.Contains(t, ec.Jira, id)
	}
	want := []models.EnrichmentError{
		{JiraID: "AAP-2", Reason: models.ReasonMalformed},
		{JiraID: "AAP-3", Reason: models.ReasonCircuitOpen},
		{JiraID: "AAP-4", Reason: models.ReasonNotFound},
	}
	if diff := cmp.Diff(want, ec.EnrichmentErrors); diff != "" {
		t.Errorf("enrichment errors mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrich_HaltsWhenAuthorityUnavailable(t *testing.T) {
	auth := &fakeAuthority{errs: map[string]error{
		"AAP-1": &common.Error{Kind: common.KindAuthorityTransient, Component: "jira", Retryable: true},
		"AAP-2": common.Errorf(common.KindCircuitOpen, "circuit_breaker", "open"),
	}}
	_, err := NewEnricher(auth, nil, nil).Enrich(context.Background(), []models.ClassifiedCase{
		classified("00000001", models.KindBug, "AAP-1", "AAP-2"),
	})
	require.Error(t, err)
	assert.Equal(t, common.KindAuthorityTransient, common.KindOf(err))
}

func TestEnrich_NoHaltWhenSomeFailuresAreDefinite(t *testing.T) {
	auth := &fakeAuthority{errs: map[string]error{
		"AAP-1": &common.Error{Kind: common.KindAuthorityTransient, Component: "jira", Retryable: true},
	}}
	res, err := NewEnricher(auth, nil, nil).Enrich(context.Background(), []models.ClassifiedCase{
		classified("00000001", models.KindBug, "AAP-1", "AAP-404"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Cases[0].EnrichmentErrors, 2)
}

func TestEnrich_NoReferences(t *testing.T) {
	auth := &fakeAuthority{}
	res, err := NewEnricher(auth, nil, nil).Enrich(context.Background(), []models.ClassifiedCase{
		classified("00000001", models.KindOther),
	})
	require.NoError(t, err)
	assert.Empty(t, auth.calls)
	assert.Empty(t, res.Issues)
	assert.NotNil(t, res.Cases[0].Jira)
}

func TestReason(t *testing.T) {
	assert.Equal(t, models.ReasonNotFound, Reason(common.Errorf(common.KindAuthorityNotFound, "jira", "x")))
	assert.Equal(t, models.ReasonDenied, Reason(common.Errorf(common.KindAuthorityDenied, "jira", "x")))
	assert.Equal(t, models.ReasonTransient, Reason(common.Errorf(common.KindAuthorityTransient, "jira", "x")))
	assert.Equal(t, models.ReasonMalformed, Reason(common.Errorf(common.KindAuthorityMalformed, "jira", "x")))
	assert.Equal(t, models.ReasonCircuitOpen, Reason(common.Errorf(common.KindCircuitOpen, "jira", "x")))
}
