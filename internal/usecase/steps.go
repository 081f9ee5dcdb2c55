package usecase

import (
	"context"
	"errors"
	"sync"

	"offer-wizard/internal/domain"
)

// ReadinessAPI is the slice of the platform client the step service
// consumes.
type ReadinessAPI interface {
	ReadyStatus(ctx context.Context, propertyID string) (domain.StepReadiness, error)
}

// StepService gates navigation between wizard pages on the backend's
// per-step availability flags.
type StepService struct {
	api ReadinessAPI
}

func NewStepService(api ReadinessAPI) (*StepService, error) {
	if api == nil {
		return nil, errors.New("usecase: readiness api must not be nil")
	}
	return &StepService{api: api}, nil
}

// Readiness fetches the per-step availability flags.
func (s *StepService) Readiness(ctx context.Context, propertyID string) (domain.StepReadiness, error) {
	status, err := s.api.ReadyStatus(ctx, propertyID)
	if err != nil {
		return domain.StepReadiness{}, apiError("ready_status_error", err)
	}
	return status, nil
}

// NextStep returns the page after the given one in wizard order.
func NextStep(page domain.Page) (domain.Page, bool) {
	for i, p := range domain.StepOrder {
		if p == page && i+1 < len(domain.StepOrder) {
			return domain.StepOrder[i+1], true
		}
	}
	return "", false
}

// PanelTracker owns which right-panel preview is showing. Selection is
// latest-wins, keyed off whichever question was last answered or focused;
// only the previous tag is retained, for transition triggers.
type PanelTracker struct {
	mu       sync.Mutex
	previous string
	current  string
}

func NewPanelTracker() *PanelTracker {
	return &PanelTracker{}
}

// Focus records a question gaining focus or being answered. Questions with
// no right-panel tag leave the preview untouched. Reports whether the
// visible panel changed.
func (p *PanelTracker) Focus(q domain.Question) bool {
	if q.RightPanel == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if q.RightPanel == p.current {
		return false
	}
	p.previous = p.current
	p.current = q.RightPanel
	return true
}

// Current returns the panel tag that should be visible.
func (p *PanelTracker) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Previous returns the panel tag shown before the current one.
func (p *PanelTracker) Previous() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.previous
}

// Reset clears the tracker when the user navigates to a different page or
// property.
func (p *PanelTracker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.previous, p.current = "", ""
}
