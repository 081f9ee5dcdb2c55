package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"offer-wizard/internal/domain"
)

// PlatformAPI is the full platform surface the wizard façade consumes.
type PlatformAPI interface {
	QnAAPI
	ComparablesAPI
	OfferAPI
	ReadinessAPI
	ImagesAPI
}

// WizardService exposes every wizard operation keyed by session, for front
// ends that hold no state of their own (the Lambda handler). Sequencers are
// created per session on first use and reused so their serialization
// guarantee holds across requests into the same process.
type WizardService struct {
	api    PlatformAPI
	store  ConversationStore
	pacing time.Duration

	comparables *ComparablesService
	offers      *OfferService
	steps       *StepService
	images      *ImageFetcher

	mu         sync.Mutex
	sequencers map[string]*Sequencer
}

func NewWizardService(api PlatformAPI, store ConversationStore, pacing time.Duration) (*WizardService, error) {
	if api == nil {
		return nil, errors.New("usecase: platform api must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	comparables, err := NewComparablesService(api)
	if err != nil {
		return nil, err
	}
	offers, err := NewOfferService(api)
	if err != nil {
		return nil, err
	}
	steps, err := NewStepService(api)
	if err != nil {
		return nil, err
	}
	images, err := NewImageFetcher(api, "")
	if err != nil {
		return nil, err
	}
	return &WizardService{
		api:         api,
		store:       store,
		pacing:      pacing,
		comparables: comparables,
		offers:      offers,
		steps:       steps,
		images:      images,
		sequencers:  make(map[string]*Sequencer),
	}, nil
}

// NewSessionID mints a session identifier for clients that arrive without
// one.
func (w *WizardService) NewSessionID() string {
	return uuid.NewString()
}

func (w *WizardService) sequencer(sessionID string) (*Sequencer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq, ok := w.sequencers[sessionID]; ok {
		return seq, nil
	}
	seq, err := NewSequencer(w.api, w.store, sessionID, WithPacing(w.pacing))
	if err != nil {
		return nil, err
	}
	w.sequencers[sessionID] = seq
	return seq, nil
}

// Load starts or restarts a page conversation for a session.
func (w *WizardService) Load(ctx context.Context, sessionID, propertyID string, page domain.Page) (ConversationState, error) {
	if err := validateSessionInput(sessionID, propertyID, page); err != nil {
		return ConversationState{}, err
	}
	seq, err := w.sequencer(sessionID)
	if err != nil {
		return ConversationState{}, newError(ErrorInternal, "sequencer_init_error", err)
	}
	return seq.LoadConversation(ctx, propertyID, page)
}

// Submit records a response and advances the conversation.
func (w *WizardService) Submit(ctx context.Context, sessionID, propertyID string, page domain.Page, questionID string, values []string) (ConversationState, error) {
	if err := validateSessionInput(sessionID, propertyID, page); err != nil {
		return ConversationState{}, err
	}
	if strings.TrimSpace(questionID) == "" {
		return ConversationState{}, newError(ErrorInvalidInput, "question_id_required", nil)
	}
	seq, err := w.sequencer(sessionID)
	if err != nil {
		return ConversationState{}, newError(ErrorInternal, "sequencer_init_error", err)
	}
	return seq.SubmitResponse(ctx, propertyID, page, questionID, values)
}

// Readiness exposes step gating for navigation.
func (w *WizardService) Readiness(ctx context.Context, propertyID string) (domain.StepReadiness, error) {
	return w.steps.Readiness(ctx, propertyID)
}

// Property fetches the session's property context.
func (w *WizardService) Property(ctx context.Context, propertyID string) (domain.Property, error) {
	p, err := w.api.Property(ctx, propertyID)
	if err != nil {
		return domain.Property{}, apiError("property_error", err)
	}
	return p, nil
}

// Comparables fetches the comparable-market analysis.
func (w *WizardService) Comparables(ctx context.Context, propertyID string) (domain.CMAAnalysis, error) {
	return w.comparables.Analysis(ctx, propertyID)
}

// RemoveComparables removes comparables with a justification and returns
// the updated analysis.
func (w *WizardService) RemoveComparables(ctx context.Context, propertyID string, comparableIDs []string, reason string) (domain.CMAAnalysis, error) {
	return w.comparables.Remove(ctx, propertyID, comparableIDs, reason)
}

// Recommendation assembles the final offer recommendation.
func (w *WizardService) Recommendation(ctx context.Context, propertyID string) (domain.OfferRecommendation, error) {
	return w.offers.Recommendation(ctx, propertyID)
}

// SaveOfferPrice persists a user-adjusted offer price.
func (w *WizardService) SaveOfferPrice(ctx context.Context, propertyID string, price float64) error {
	return w.offers.SaveAdjustedPrice(ctx, propertyID, price)
}

// Images lists the condition photos available for a page.
func (w *WizardService) Images(ctx context.Context, propertyID string, page domain.Page) ([]domain.ImageMeta, error) {
	metas, err := w.api.ImagesList(ctx, propertyID, page)
	if err != nil {
		return nil, apiError("images_list_error", err)
	}
	return metas, nil
}

// ConditionPhotos downloads every condition photo for a page; the caller
// owns the returned handles.
func (w *WizardService) ConditionPhotos(ctx context.Context, propertyID string, page domain.Page) ([]*ImageHandle, error) {
	return w.images.FetchAll(ctx, propertyID, page)
}

// Report assembles the downloadable offer report: the final recommendation
// plus every answered question across the session's pages, in step order.
func (w *WizardService) Report(ctx context.Context, sessionID, propertyID string) (domain.OfferReport, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.OfferReport{}, newError(ErrorInvalidInput, "session_id_required", nil)
	}
	rec, err := w.Recommendation(ctx, propertyID)
	if err != nil {
		return domain.OfferReport{}, err
	}

	report := domain.OfferReport{Property: rec.Property, Analysis: rec.Analysis, Price: rec.Price}
	for _, page := range domain.StepOrder {
		questions, err := w.store.GetPage(ctx, sessionID, page)
		if err != nil {
			return domain.OfferReport{}, newError(ErrorInternal, "conversation_store_error", err)
		}
		for _, q := range questions {
			if !q.Answered() {
				continue
			}
			report.Answers = append(report.Answers, domain.AnsweredQuestion{
				Page:     page,
				Question: q.Text,
				Response: responseTexts(q),
			})
		}
	}
	return report, nil
}

// responseTexts maps stored option ids back to their display text; free-form
// values and sentinel answers pass through as-is.
func responseTexts(q domain.Question) []string {
	out := make([]string, 0, len(q.Response))
	for _, v := range q.Response {
		text := v
		for _, o := range q.Options {
			if o.ID == v {
				text = o.Text
				break
			}
		}
		out = append(out, text)
	}
	return out
}

// EndSession drops all conversation state for a session, e.g. after a
// forced logout.
func (w *WizardService) EndSession(ctx context.Context, sessionID string) error {
	w.mu.Lock()
	delete(w.sequencers, sessionID)
	w.mu.Unlock()
	if err := w.store.ClearSession(ctx, sessionID); err != nil {
		return newError(ErrorInternal, "conversation_store_error", err)
	}
	return nil
}

func validateSessionInput(sessionID, propertyID string, page domain.Page) error {
	if strings.TrimSpace(sessionID) == "" {
		return newError(ErrorInvalidInput, "session_id_required", nil)
	}
	if strings.TrimSpace(propertyID) == "" {
		return newError(ErrorInvalidInput, "property_id_required", nil)
	}
	if strings.TrimSpace(string(page)) == "" {
		return newError(ErrorInvalidInput, "page_required", nil)
	}
	return nil
}
