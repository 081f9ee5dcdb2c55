package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"offer-wizard/internal/domain"
)

func q(id string, opts ...func(*domain.Question)) domain.Question {
	question := domain.Question{QuestionID: id, Text: "question " + id, Type: domain.TypeSingleSelect}
	for _, opt := range opts {
		opt(&question)
	}
	return question
}

func terminal(question *domain.Question) { question.IsLast = true }

func TestMemoryStore_AppendDeduplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	appended, err := store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1"))
	require.NoError(t, err)
	require.True(t, appended)

	appended, err = store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1"))
	require.NoError(t, err)
	require.False(t, appended, "duplicate ids must be suppressed")

	qs, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	require.Len(t, qs, 1)
}

func TestMemoryStore_SingleTerminalInvariant(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1", terminal))
	require.NoError(t, err)

	_, err = store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q2", terminal))
	require.ErrorIs(t, err, ErrTerminalPresent)
}

func TestMemoryStore_UpdateResponseInPlace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1"))
	require.NoError(t, err)
	_, err = store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q2"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateResponse(ctx, "s1", domain.PageComparables, "q1", []string{"3"}))

	qs, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, qs[0].Response)
	require.Empty(t, qs[1].Response)

	err = store.UpdateResponse(ctx, "s1", domain.PageComparables, "missing", []string{"1"})
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestMemoryStore_PageAndSessionIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1"))
	require.NoError(t, err)
	_, err = store.AppendQuestion(ctx, "s1", domain.PageFinalOffer, q("q1"))
	require.NoError(t, err)
	_, err = store.AppendQuestion(ctx, "s2", domain.PageComparables, q("q1"))
	require.NoError(t, err)

	require.NoError(t, store.ClearPage(ctx, "s1", domain.PageComparables))

	qs, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	require.Empty(t, qs)

	qs, err = store.GetPage(ctx, "s1", domain.PageFinalOffer)
	require.NoError(t, err)
	require.Len(t, qs, 1)

	require.NoError(t, store.ClearSession(ctx, "s2"))
	qs, err = store.GetPage(ctx, "s2", domain.PageComparables)
	require.NoError(t, err)
	require.Empty(t, qs)
}

func TestMemoryStore_GetPageReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1"))
	require.NoError(t, err)

	qs, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	qs[0].Response = []string{"mutated"}

	again, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	require.Empty(t, again[0].Response, "callers must not be able to mutate stored state")
}

func TestMemoryStore_ReplacePage(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.AppendQuestion(ctx, "s1", domain.PageComparables, q("q1"))
	require.NoError(t, err)

	require.NoError(t, store.ReplacePage(ctx, "s1", domain.PageComparables, []domain.Question{q("q5"), q("q6")}))

	qs, err := store.GetPage(ctx, "s1", domain.PageComparables)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	require.Equal(t, "q5", qs[0].QuestionID)
}
