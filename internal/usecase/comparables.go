package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"offer-wizard/internal/domain"
)

// minComparables is the floor below which the comparable set may not shrink.
const minComparables = 3

// ComparablesAPI is the slice of the platform client the comparables
// service consumes.
type ComparablesAPI interface {
	CMAAnalysis(ctx context.Context, propertyID string) (domain.CMAAnalysis, error)
	DeleteComparables(ctx context.Context, propertyID string, comparableIDs []string, reason string) error
	RecalculatePrice(ctx context.Context, propertyID string) (domain.OfferPrice, error)
}

// ComparablesService manages the comparable set backing the offer price. It
// keeps the last fetched analysis per property so removal rules can be
// enforced locally before any network traffic.
type ComparablesService struct {
	api ComparablesAPI

	mu       sync.Mutex
	analyses map[string]domain.CMAAnalysis
}

func NewComparablesService(api ComparablesAPI) (*ComparablesService, error) {
	if api == nil {
		return nil, errors.New("usecase: comparables api must not be nil")
	}
	return &ComparablesService{api: api, analyses: make(map[string]domain.CMAAnalysis)}, nil
}

// Analysis fetches and caches the comparable-market analysis.
func (s *ComparablesService) Analysis(ctx context.Context, propertyID string) (domain.CMAAnalysis, error) {
	analysis, err := s.api.CMAAnalysis(ctx, propertyID)
	if err != nil {
		return domain.CMAAnalysis{}, apiError("cma_analysis_error", err)
	}
	s.mu.Lock()
	s.analyses[propertyID] = analysis
	s.mu.Unlock()
	return analysis, nil
}

// Remove deletes comparables and triggers a price recalculation. Removal is
// rejected locally, with no network call, when it would leave fewer than
// three comparables or when no justification is given.
func (s *ComparablesService) Remove(ctx context.Context, propertyID string, comparableIDs []string, reason string) (domain.CMAAnalysis, error) {
	if len(comparableIDs) == 0 {
		return domain.CMAAnalysis{}, newError(ErrorInvalidInput, "no_comparables_selected", nil)
	}
	if strings.TrimSpace(reason) == "" {
		return domain.CMAAnalysis{}, newError(ErrorInvalidInput, "removal_reason_required", nil)
	}

	s.mu.Lock()
	analysis, loaded := s.analyses[propertyID]
	s.mu.Unlock()
	if !loaded {
		return domain.CMAAnalysis{}, newError(ErrorInvalidInput, "analysis_not_loaded", nil)
	}

	known := 0
	for _, id := range comparableIDs {
		for _, c := range analysis.Comparables {
			if c.ID == id {
				known++
				break
			}
		}
	}
	if known != len(comparableIDs) {
		return domain.CMAAnalysis{}, newError(ErrorInvalidInput, "unknown_comparable", nil)
	}
	if len(analysis.Comparables)-known < minComparables {
		return domain.CMAAnalysis{}, newError(ErrorInvalidInput, "comparable_floor", nil)
	}

	if err := s.api.DeleteComparables(ctx, propertyID, comparableIDs, reason); err != nil {
		return domain.CMAAnalysis{}, apiError("comparable_delete_error", err)
	}
	price, err := s.api.RecalculatePrice(ctx, propertyID)
	if err != nil {
		return domain.CMAAnalysis{}, apiError("price_recalculate_error", err)
	}

	remaining := make([]domain.Comparable, 0, len(analysis.Comparables)-known)
	for _, c := range analysis.Comparables {
		removed := false
		for _, id := range comparableIDs {
			if c.ID == id {
				removed = true
				break
			}
		}
		if !removed {
			remaining = append(remaining, c)
		}
	}
	analysis.Comparables = remaining
	analysis.SuggestedPrice = price.Suggested

	s.mu.Lock()
	s.analyses[propertyID] = analysis
	s.mu.Unlock()
	return analysis, nil
}

// CanRemove reports whether n comparables could currently be removed, for
// front ends that want to disable the control instead of surfacing the
// rejection.
func (s *ComparablesService) CanRemove(propertyID string, n int) bool {
	s.mu.Lock()
	analysis, loaded := s.analyses[propertyID]
	s.mu.Unlock()
	if !loaded || n <= 0 {
		return false
	}
	return len(analysis.Comparables)-n >= minComparables
}
