package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"offer-wizard/internal/domain"
	"offer-wizard/internal/integrations/platform"
)

const defaultPacing = time.Second

// QnAAPI is the slice of the platform client the sequencer consumes.
type QnAAPI interface {
	CurrentQuestion(ctx context.Context, propertyID string, page domain.Page) (domain.Question, error)
	MarkedQuestions(ctx context.Context, propertyID string, page domain.Page) ([]domain.Question, error)
	AnswerHistory(ctx context.Context, propertyID string, page domain.Page) ([]domain.ChatTurn, error)
	SubmitAnswer(ctx context.Context, propertyID string, page domain.Page, questionID string, response []string) error
}

// ConversationStore is the conversation state the sequencer drives. The
// store instance is injected; the sequencer never reaches for ambient state.
type ConversationStore interface {
	GetPage(ctx context.Context, sessionID string, page domain.Page) ([]domain.Question, error)
	ReplacePage(ctx context.Context, sessionID string, page domain.Page, questions []domain.Question) error
	AppendQuestion(ctx context.Context, sessionID string, page domain.Page, q domain.Question) (bool, error)
	UpdateResponse(ctx context.Context, sessionID string, page domain.Page, questionID string, response []string) error
	ClearPage(ctx context.Context, sessionID string, page domain.Page) error
	ClearSession(ctx context.Context, sessionID string) error
}

// Sequencer drives a page's conversation: exactly one question awaits input
// at a time, and answering it deterministically surfaces the next one. All
// fetch-next round trips are serialized behind a single mutex; they never
// overlap.
type Sequencer struct {
	api       QnAAPI
	store     ConversationStore
	sessionID string
	pacing    time.Duration

	gate chan struct{}
}

type SequencerOption func(*Sequencer)

// WithPacing sets the artificial delay between auto-answer cascade steps.
// Zero disables pacing; tests use that.
func WithPacing(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		s.pacing = d
	}
}

// NewSequencer creates a Sequencer bound to one session.
func NewSequencer(api QnAAPI, store ConversationStore, sessionID string, opts ...SequencerOption) (*Sequencer, error) {
	if api == nil {
		return nil, errors.New("usecase: qna api must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("usecase: session id must not be empty")
	}
	s := &Sequencer{
		api:       api,
		store:     store,
		sessionID: sessionID,
		pacing:    defaultPacing,
		gate:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ConversationState is the view of a page after a load or submit: the full
// question list, the single question awaiting input (nil once terminal is
// answered), the free-text history, and whether the page is complete.
type ConversationState struct {
	Questions []domain.Question
	Awaiting  *domain.Question
	History   []domain.ChatTurn
	Reloaded  bool
	Done      bool
}

// LoadConversation discards any previous state for the page, concurrently
// fetches the answer history, the previously marked questions, and the
// current unanswered question, merges marked + current (dropping the current
// question if it is already marked), and then runs the auto-answer cascade
// until a question requiring input, or the terminal question, is reached.
func (s *Sequencer) LoadConversation(ctx context.Context, propertyID string, page domain.Page) (ConversationState, error) {
	if err := s.acquire(ctx); err != nil {
		return ConversationState{}, err
	}
	defer s.release()
	return s.loadLocked(ctx, propertyID, page)
}

func (s *Sequencer) loadLocked(ctx context.Context, propertyID string, page domain.Page) (ConversationState, error) {
	var (
		history []domain.ChatTurn
		marked  []domain.Question
		current domain.Question
		noneYet bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.api.AnswerHistory(gctx, propertyID, page)
		return err
	})
	g.Go(func() error {
		var err error
		marked, err = s.api.MarkedQuestions(gctx, propertyID, page)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = s.api.CurrentQuestion(gctx, propertyID, page)
		if errors.Is(err, platform.ErrNoQuestion) {
			noneYet = true
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return ConversationState{}, apiError("conversation_load_error", err)
	}

	questions := make([]domain.Question, 0, len(marked)+1)
	seen := make(map[string]struct{}, len(marked)+1)
	for _, q := range marked {
		if _, dup := seen[q.QuestionID]; dup {
			continue
		}
		seen[q.QuestionID] = struct{}{}
		questions = append(questions, q)
	}
	if !noneYet {
		if _, dup := seen[current.QuestionID]; !dup {
			questions = append(questions, current)
		}
	}

	if err := s.store.ReplacePage(ctx, s.sessionID, page, questions); err != nil {
		return ConversationState{}, newError(ErrorInternal, "conversation_store_error", err)
	}

	state, err := s.cascade(ctx, propertyID, page)
	if err != nil {
		return ConversationState{}, err
	}
	state.History = history
	return state, nil
}

// SubmitResponse validates and persists a response for a question already in
// local state. A question carrying skip logic invalidates everything after
// it, so the whole page is reloaded; otherwise the next question is fetched,
// appended, and the auto-answer cascade applied.
func (s *Sequencer) SubmitResponse(ctx context.Context, propertyID string, page domain.Page, questionID string, values []string) (ConversationState, error) {
	if err := s.acquire(ctx); err != nil {
		return ConversationState{}, err
	}
	defer s.release()

	questions, err := s.store.GetPage(ctx, s.sessionID, page)
	if err != nil {
		return ConversationState{}, newError(ErrorInternal, "conversation_store_error", err)
	}
	var question *domain.Question
	for i := range questions {
		if questions[i].QuestionID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return ConversationState{}, newError(ErrorInvalidInput, "unknown_question", nil)
	}
	values = snapIfSlider(*question, values)
	if err := ValidateResponse(*question, values); err != nil {
		return ConversationState{}, newError(ErrorInvalidInput, "invalid_response", err)
	}

	if err := s.api.SubmitAnswer(ctx, propertyID, page, questionID, values); err != nil {
		return ConversationState{}, apiError("answer_save_error", err)
	}
	if err := s.store.UpdateResponse(ctx, s.sessionID, page, questionID, values); err != nil {
		return ConversationState{}, newError(ErrorInternal, "conversation_store_error", err)
	}

	if question.Logic == domain.LogicSkip {
		state, err := s.loadLocked(ctx, propertyID, page)
		if err != nil {
			return ConversationState{}, err
		}
		state.Reloaded = true
		return state, nil
	}

	if question.IsLast {
		return s.snapshot(ctx, page)
	}

	if err := s.fetchNext(ctx, propertyID, page); err != nil {
		return ConversationState{}, err
	}
	return s.cascade(ctx, propertyID, page)
}

// snapIfSlider snaps a raw numeric slider value to the nearest allowed cut
// point. Non-numeric or malformed input passes through for the widget
// validator to reject.
func snapIfSlider(q domain.Question, values []string) []string {
	if q.Type != domain.TypeSlider || len(values) != 1 {
		return values
	}
	raw, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return values
	}
	snapped, err := SnapSliderValue(q, raw)
	if err != nil {
		return values
	}
	return []string{strconv.FormatFloat(snapped, 'f', -1, 64)}
}

// fetchNext retrieves the next unanswered question and appends it, dropping
// duplicates.
func (s *Sequencer) fetchNext(ctx context.Context, propertyID string, page domain.Page) error {
	next, err := s.api.CurrentQuestion(ctx, propertyID, page)
	if errors.Is(err, platform.ErrNoQuestion) {
		return nil
	}
	if err != nil {
		return apiError("next_question_error", err)
	}
	if _, err := s.store.AppendQuestion(ctx, s.sessionID, page, next); err != nil {
		return newError(ErrorInternal, "conversation_store_error", err)
	}
	return nil
}

// cascade auto-answers option-less, panel-less questions with the default
// sentinel, pacing each step, until a question needing input or the terminal
// question is reached.
func (s *Sequencer) cascade(ctx context.Context, propertyID string, page domain.Page) (ConversationState, error) {
	for {
		state, err := s.snapshot(ctx, page)
		if err != nil {
			return ConversationState{}, err
		}
		q := state.Awaiting
		if q == nil || !q.AutoAnswerable() {
			return state, nil
		}

		if err := s.pace(ctx); err != nil {
			return ConversationState{}, err
		}
		auto := []string{domain.AnswerDefault.WireValue()}
		if err := s.api.SubmitAnswer(ctx, propertyID, page, q.QuestionID, auto); err != nil {
			return ConversationState{}, apiError("answer_save_error", err)
		}
		if err := s.store.UpdateResponse(ctx, s.sessionID, page, q.QuestionID, auto); err != nil {
			return ConversationState{}, newError(ErrorInternal, "conversation_store_error", err)
		}
		if q.IsLast {
			return s.snapshot(ctx, page)
		}
		if err := s.fetchNext(ctx, propertyID, page); err != nil {
			return ConversationState{}, err
		}
	}
}

// snapshot reads the page and computes the awaiting question and done flag.
// The awaiting question is the first unanswered one; the page is done once
// its terminal question has been answered.
func (s *Sequencer) snapshot(ctx context.Context, page domain.Page) (ConversationState, error) {
	questions, err := s.store.GetPage(ctx, s.sessionID, page)
	if err != nil {
		return ConversationState{}, newError(ErrorInternal, "conversation_store_error", err)
	}
	state := ConversationState{Questions: questions}
	for i := range questions {
		if !questions[i].Answered() {
			state.Awaiting = &questions[i]
			break
		}
	}
	if state.Awaiting == nil {
		for i := range questions {
			if questions[i].IsLast && questions[i].Answered() {
				state.Done = true
				break
			}
		}
	}
	return state, nil
}

// pace sleeps the configured cascade delay, honoring cancellation.
func (s *Sequencer) pace(ctx context.Context) error {
	if s.pacing <= 0 {
		return nil
	}
	t := time.NewTimer(s.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return newError(ErrorInternal, "cascade_cancelled", ctx.Err())
	case <-t.C:
		return nil
	}
}

func (s *Sequencer) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return newError(ErrorInternal, "sequencer_busy", ctx.Err())
	}
}

func (s *Sequencer) release() {
	<-s.gate
}
