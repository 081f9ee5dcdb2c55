package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"offer-wizard/internal/domain"
	"offer-wizard/internal/repository"
)

// fakePlatform composes the per-service fakes into the full platform
// surface. CMAAnalysis is pinned to the offer fake to resolve the embed
// ambiguity.
type fakePlatform struct {
	fakeQnA
	fakeComparablesAPI
	fakeOfferAPI
	fakeReadinessAPI
	fakeImagesAPI
}

func (f *fakePlatform) CMAAnalysis(ctx context.Context, propertyID string) (domain.CMAAnalysis, error) {
	return f.fakeOfferAPI.CMAAnalysis(ctx, propertyID)
}

func newTestWizard(t *testing.T, api *fakePlatform) (*WizardService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc, err := NewWizardService(api, store, 0)
	require.NoError(t, err)
	return svc, store
}

func TestWizard_SessionIDsAreUnique(t *testing.T) {
	svc, _ := newTestWizard(t, &fakePlatform{})
	require.NotEqual(t, svc.NewSessionID(), svc.NewSessionID())
}

func TestWizard_LoadAndSubmitValidation(t *testing.T) {
	svc, _ := newTestWizard(t, &fakePlatform{})
	ctx := context.Background()

	_, err := svc.Load(ctx, "", "mls-1", domain.PageComparables)
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
	_, err = svc.Load(ctx, "s1", " ", domain.PageComparables)
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
	_, err = svc.Load(ctx, "s1", "mls-1", "")
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
	_, err = svc.Submit(ctx, "s1", "mls-1", domain.PageComparables, "", []string{"1"})
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
}

func TestWizard_LoadThenSubmitSharesSequencerState(t *testing.T) {
	api := &fakePlatform{
		fakeQnA: fakeQnA{queue: []domain.Question{singleSelect("q1"), singleSelect("q2", asTerminal)}},
	}
	svc, _ := newTestWizard(t, api)
	ctx := context.Background()

	state, err := svc.Load(ctx, "s1", "mls-1", domain.PageComparables)
	require.NoError(t, err)
	require.Equal(t, "q1", state.Awaiting.QuestionID)

	state, err = svc.Submit(ctx, "s1", "mls-1", domain.PageComparables, "q1", []string{"2"})
	require.NoError(t, err)
	require.Equal(t, "q2", state.Awaiting.QuestionID)
}

func TestWizard_Report(t *testing.T) {
	api := &fakePlatform{
		fakeQnA: fakeQnA{queue: []domain.Question{singleSelect("q1", asTerminal)}},
		fakeOfferAPI: fakeOfferAPI{
			property: domain.Property{MLSID: "mls-1", Address: "123 Main St"},
			analysis: domain.CMAAnalysis{MLSID: "mls-1", SuggestedPrice: 450000},
			price:    domain.OfferPrice{MLSID: "mls-1", Suggested: 450000},
		},
	}
	svc, _ := newTestWizard(t, api)
	ctx := context.Background()

	_, err := svc.Load(ctx, "s1", "mls-1", domain.PageComparables)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "s1", "mls-1", domain.PageComparables, "q1", []string{"2"})
	require.NoError(t, err)

	report, err := svc.Report(ctx, "s1", "mls-1")
	require.NoError(t, err)
	require.Equal(t, "123 Main St", report.Property.Address)
	require.Len(t, report.Answers, 1)
	require.Equal(t, domain.PageComparables, report.Answers[0].Page)
	// Option ids are mapped back to their display text for the report.
	require.Equal(t, []string{"No"}, report.Answers[0].Response)
}

func TestWizard_EndSessionClearsState(t *testing.T) {
	api := &fakePlatform{
		fakeQnA: fakeQnA{queue: []domain.Question{singleSelect("q1", asTerminal)}},
	}
	svc, store := newTestWizard(t, api)
	ctx := context.Background()

	_, err := svc.Load(ctx, "s1", "mls-1", domain.PageComparables)
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, "s1"))

	qs, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	require.Empty(t, qs)
}
