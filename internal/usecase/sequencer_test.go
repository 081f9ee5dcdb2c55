package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"offer-wizard/internal/domain"
	"offer-wizard/internal/integrations/platform"
	"offer-wizard/internal/repository"
)

// fakeQnA scripts the platform's QnA surface. CurrentQuestion serves the
// queue in order; SubmitAnswer records the submission and advances the
// queue, mirroring the backend's next-question behavior.
type fakeQnA struct {
	queue   []domain.Question
	idx     int
	marked  []domain.Question
	history []domain.ChatTurn

	submissions []submission
	submitErr   error
	currentErr  error
	markedErr   error

	// onSubmit, when set, replaces the default advance behavior.
	onSubmit func(questionID string, values []string)
}

type submission struct {
	questionID string
	values     []string
}

func (f *fakeQnA) CurrentQuestion(_ context.Context, _ string, _ domain.Page) (domain.Question, error) {
	if f.currentErr != nil {
		return domain.Question{}, f.currentErr
	}
	if f.idx >= len(f.queue) {
		return domain.Question{}, platform.ErrNoQuestion
	}
	return f.queue[f.idx], nil
}

func (f *fakeQnA) MarkedQuestions(_ context.Context, _ string, _ domain.Page) ([]domain.Question, error) {
	return f.marked, f.markedErr
}

func (f *fakeQnA) AnswerHistory(_ context.Context, _ string, _ domain.Page) ([]domain.ChatTurn, error) {
	return f.history, nil
}

func (f *fakeQnA) SubmitAnswer(_ context.Context, _ string, _ domain.Page, questionID string, values []string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submissions = append(f.submissions, submission{questionID: questionID, values: values})
	if f.onSubmit != nil {
		f.onSubmit(questionID, values)
		return nil
	}
	if f.idx < len(f.queue) && f.queue[f.idx].QuestionID == questionID {
		f.idx++
	}
	return nil
}

func singleSelect(id string, opts ...func(*domain.Question)) domain.Question {
	q := domain.Question{
		QuestionID: id,
		Text:       "question " + id,
		Type:       domain.TypeSingleSelect,
		Options:    []domain.Option{{ID: "1", Text: "Yes"}, {ID: "2", Text: "No"}, {ID: "3", Text: "Maybe"}},
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

func optionless(id string) domain.Question {
	return domain.Question{QuestionID: id, Text: "fyi " + id, Type: domain.TypePreselectDisplay}
}

func asTerminal(q *domain.Question)   { q.IsLast = true }
func withSkip(q *domain.Question)     { q.Logic = domain.LogicSkip }
func answered(v string) func(*domain.Question) {
	return func(q *domain.Question) { q.Response = []string{v} }
}

func newTestSequencer(t *testing.T, api *fakeQnA) (*Sequencer, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	seq, err := NewSequencer(api, store, "session-1", WithPacing(0))
	require.NoError(t, err)
	return seq, store
}

func TestNewSequencer_Validation(t *testing.T) {
	store := repository.NewMemoryStore()
	_, err := NewSequencer(nil, store, "s")
	require.Error(t, err)
	_, err = NewSequencer(&fakeQnA{}, nil, "s")
	require.Error(t, err)
	_, err = NewSequencer(&fakeQnA{}, store, "  ")
	require.Error(t, err)
}

func TestLoadConversation_MergeSkipsDuplicateCurrent(t *testing.T) {
	api := &fakeQnA{
		marked: []domain.Question{singleSelect("q1", answered("2")), singleSelect("q2")},
		queue:  []domain.Question{singleSelect("q2")},
	}
	seq, _ := newTestSequencer(t, api)

	state, err := seq.LoadConversation(context.Background(), "mls-1", domain.PageComparables)
	require.NoError(t, err)
	require.Len(t, state.Questions, 2)

	ids := map[string]int{}
	for _, q := range state.Questions {
		ids[q.QuestionID]++
	}
	for id, n := range ids {
		require.Equal(t, 1, n, "question %s appears %d times", id, n)
	}
	require.NotNil(t, state.Awaiting)
	require.Equal(t, "q2", state.Awaiting.QuestionID)
}

func TestLoadConversation_AutoAnswerCascade(t *testing.T) {
	// A single optionless, panel-less question followed by a terminal
	// question with options: after load only the terminal question awaits
	// input and the optionless one carries the default response.
	api := &fakeQnA{
		queue: []domain.Question{optionless("q1"), singleSelect("q2", asTerminal)},
	}
	seq, _ := newTestSequencer(t, api)

	state, err := seq.LoadConversation(context.Background(), "mls-1", domain.PagePersonalization)
	require.NoError(t, err)

	require.NotNil(t, state.Awaiting)
	require.Equal(t, "q2", state.Awaiting.QuestionID)
	require.False(t, state.Done)

	require.Len(t, state.Questions, 2)
	require.Equal(t, []string{"1"}, state.Questions[0].Response)

	require.Len(t, api.submissions, 1)
	require.Equal(t, "q1", api.submissions[0].questionID)
	require.Equal(t, []string{domain.AnswerDefault.WireValue()}, api.submissions[0].values)
}

func TestLoadConversation_CascadeStopsAtAutoAnswerableTerminal(t *testing.T) {
	api := &fakeQnA{
		queue: []domain.Question{func() domain.Question {
			q := optionless("q1")
			q.IsLast = true
			return q
		}()},
	}
	seq, _ := newTestSequencer(t, api)

	state, err := seq.LoadConversation(context.Background(), "mls-1", domain.PagePersonalization)
	require.NoError(t, err)
	require.True(t, state.Done)
	require.Nil(t, state.Awaiting)
}

func TestLoadConversation_History(t *testing.T) {
	api := &fakeQnA{
		history: []domain.ChatTurn{{Question: "Anything else?", Answer: "needs a new roof"}},
		queue:   []domain.Question{singleSelect("q1", asTerminal)},
	}
	seq, _ := newTestSequencer(t, api)

	state, err := seq.LoadConversation(context.Background(), "mls-1", domain.PagePropertyCondition)
	require.NoError(t, err)
	require.Len(t, state.History, 1)
	require.Equal(t, "needs a new roof", state.History[0].Answer)
}

func TestLoadConversation_APIFailureLeavesStoreUntouched(t *testing.T) {
	api := &fakeQnA{
		marked:    []domain.Question{singleSelect("q1")},
		markedErr: errors.New("backend down"),
	}
	store := repository.NewMemoryStore()
	require.NoError(t, store.ReplacePage(context.Background(), "session-1", domain.PageComparables, []domain.Question{singleSelect("old")}))

	seq, err := NewSequencer(api, store, "session-1", WithPacing(0))
	require.NoError(t, err)

	_, err = seq.LoadConversation(context.Background(), "mls-1", domain.PageComparables)
	require.Error(t, err)
	require.Equal(t, ErrorUpstream, CodeOf(err))

	qs, err := store.GetPage(context.Background(), "session-1", domain.PageComparables)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	require.Equal(t, "old", qs[0].QuestionID, "failed load must not clear existing state")
}

func TestSubmitResponse_AdvancesAndAppends(t *testing.T) {
	api := &fakeQnA{
		queue: []domain.Question{singleSelect("q1"), singleSelect("q2", asTerminal)},
	}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	state, err := seq.LoadConversation(ctx, "mls-1", domain.PageComparables)
	require.NoError(t, err)
	require.Equal(t, "q1", state.Awaiting.QuestionID)

	state, err = seq.SubmitResponse(ctx, "mls-1", domain.PageComparables, "q1", []string{"2"})
	require.NoError(t, err)
	require.Len(t, state.Questions, 2)
	require.Equal(t, []string{"2"}, state.Questions[0].Response)
	require.Equal(t, "q2", state.Awaiting.QuestionID)
	require.False(t, state.Done)
	require.False(t, state.Reloaded)
}

func TestSubmitResponse_TerminalAbsorbs(t *testing.T) {
	api := &fakeQnA{
		queue: []domain.Question{singleSelect("q1", asTerminal)},
	}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PageFinalOffer)
	require.NoError(t, err)

	state, err := seq.SubmitResponse(ctx, "mls-1", domain.PageFinalOffer, "q1", []string{"1"})
	require.NoError(t, err)
	require.True(t, state.Done)
	require.Nil(t, state.Awaiting)
	require.Len(t, api.submissions, 1, "no next-question fetch after the terminal answer")
}

func TestSubmitResponse_SkipLogicReloadsWholePage(t *testing.T) {
	api := &fakeQnA{
		queue: []domain.Question{singleSelect("q1", withSkip), singleSelect("q2"), singleSelect("q3", asTerminal)},
	}
	api.onSubmit = func(questionID string, _ []string) {
		if questionID == "q1" {
			// A skip answer invalidates downstream questions; the backend
			// now serves a different remainder.
			api.queue = []domain.Question{singleSelect("q1", withSkip, answered("1")), singleSelect("q9", asTerminal)}
			api.idx = 1
			api.marked = []domain.Question{singleSelect("q1", withSkip, answered("1"))}
			api.onSubmit = nil
		}
	}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PageMarketConditions)
	require.NoError(t, err)

	state, err := seq.SubmitResponse(ctx, "mls-1", domain.PageMarketConditions, "q1", []string{"1"})
	require.NoError(t, err)
	require.True(t, state.Reloaded, "skip logic must replace, not append")
	require.Len(t, state.Questions, 2)
	require.Equal(t, "q9", state.Questions[1].QuestionID)
}

func TestSubmitResponse_UnknownQuestion(t *testing.T) {
	api := &fakeQnA{queue: []domain.Question{singleSelect("q1", asTerminal)}}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PageComparables)
	require.NoError(t, err)

	_, err = seq.SubmitResponse(ctx, "mls-1", domain.PageComparables, "ghost", []string{"1"})
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
	require.Empty(t, api.submissions)
}

func TestSubmitResponse_ValidationRejectsWithoutNetwork(t *testing.T) {
	freeText := domain.Question{QuestionID: "q1", Text: "Anything else?", Type: domain.TypeFreeText, IsLast: true}
	api := &fakeQnA{queue: []domain.Question{freeText}}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PagePropertyCondition)
	require.NoError(t, err)

	_, err = seq.SubmitResponse(ctx, "mls-1", domain.PagePropertyCondition, "q1", []string{"   "})
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
	require.Empty(t, api.submissions, "rejected input must not reach the network")

	state, err := seq.SubmitResponse(ctx, "mls-1", domain.PagePropertyCondition, "q1", []string{"needs a new roof"})
	require.NoError(t, err)
	require.True(t, state.Done)
	require.Len(t, api.submissions, 1)
}

func TestSubmitResponse_SaveFailureKeepsLocalStateRetryable(t *testing.T) {
	api := &fakeQnA{queue: []domain.Question{singleSelect("q1", asTerminal)}}
	seq, store := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PageComparables)
	require.NoError(t, err)

	api.submitErr = errors.New("network blip")
	_, err = seq.SubmitResponse(ctx, "mls-1", domain.PageComparables, "q1", []string{"2"})
	require.Equal(t, ErrorUpstream, CodeOf(err))

	qs, err := store.GetPage(ctx, "session-1", domain.PageComparables)
	require.NoError(t, err)
	require.Empty(t, qs[0].Response, "failed save must leave the question unanswered")

	api.submitErr = nil
	state, err := seq.SubmitResponse(ctx, "mls-1", domain.PageComparables, "q1", []string{"2"})
	require.NoError(t, err)
	require.True(t, state.Done)
}

func TestSubmitResponse_UnauthorizedClassified(t *testing.T) {
	api := &fakeQnA{queue: []domain.Question{singleSelect("q1", asTerminal)}}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PageComparables)
	require.NoError(t, err)

	api.submitErr = platform.ErrUnauthorized
	_, err = seq.SubmitResponse(ctx, "mls-1", domain.PageComparables, "q1", []string{"2"})
	require.Equal(t, ErrorUnauthorized, CodeOf(err))
}

func TestSubmitResponse_SnapsSliderValues(t *testing.T) {
	slider := sliderQuestion("0", "125", "250", "375")
	slider.IsLast = true
	api := &fakeQnA{queue: []domain.Question{slider}}
	seq, _ := newTestSequencer(t, api)
	ctx := context.Background()

	_, err := seq.LoadConversation(ctx, "mls-1", domain.PageMarketConditions)
	require.NoError(t, err)

	state, err := seq.SubmitResponse(ctx, "mls-1", domain.PageMarketConditions, "slider", []string{"190"})
	require.NoError(t, err)
	require.True(t, state.Done)
	require.Len(t, api.submissions, 1)
	require.Equal(t, []string{"250"}, api.submissions[0].values, "raw values snap to the nearest cut point")
}

func TestLoadConversation_SavedResponseRoundTrip(t *testing.T) {
	// A saved single-select response of option "3" reloads pre-selected.
	api := &fakeQnA{
		marked: []domain.Question{singleSelect("q1", answered("3")), singleSelect("q2", asTerminal)},
		queue:  []domain.Question{singleSelect("q2", asTerminal)},
	}
	seq, _ := newTestSequencer(t, api)

	state, err := seq.LoadConversation(context.Background(), "mls-1", domain.PageVerifyProperty)
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, state.Questions[0].Response)
	require.Equal(t, "q2", state.Awaiting.QuestionID)
}
