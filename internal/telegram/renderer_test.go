package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"

	"offer-wizard/internal/domain"
)

func selectQuestion(qt domain.QuestionType) domain.Question {
	return domain.Question{
		QuestionID: "q1",
		Text:       "How competitive is the market?",
		Type:       qt,
		Options: []domain.Option{
			{ID: "1", Text: "Cooling"},
			{ID: "2", Text: "Balanced"},
			{ID: "3", Text: "Hot", Icon: "🔥"},
		},
	}
}

func TestRenderQuestion_SingleSelect(t *testing.T) {
	text, kb := RenderQuestion(selectQuestion(domain.TypeSingleSelect), nil)
	require.Contains(t, text, "How competitive")
	require.NotNil(t, kb)
	// One row per option, no submit row: a tap answers immediately.
	require.Len(t, kb.InlineKeyboard, 3)
	require.Equal(t, "opt:2", kb.InlineKeyboard[1][0].CallbackData)
	require.Equal(t, "🔥 Hot", kb.InlineKeyboard[2][0].Text)
}

func TestRenderQuestion_MultiSelectTogglesAndSubmits(t *testing.T) {
	q := selectQuestion(domain.TypeMultipleSelect)
	text, kb := RenderQuestion(q, map[string]bool{"2": true})
	require.Contains(t, text, "Submit")
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 4)
	require.Equal(t, "✅ Balanced", kb.InlineKeyboard[1][0].Text)

	last := kb.InlineKeyboard[3]
	require.Equal(t, cbSubmit, last[0].CallbackData)
	require.Equal(t, cbSkip, last[1].CallbackData)
}

func TestRenderQuestion_DisplayHasNoKeyboard(t *testing.T) {
	q := domain.Question{QuestionID: "q1", Text: "Here's your property.", Type: domain.TypePreselectDisplay}
	text, kb := RenderQuestion(q, nil)
	require.Equal(t, "Here's your property.", text)
	require.Nil(t, kb)
}

func TestRenderQuestion_FreeText(t *testing.T) {
	q := domain.Question{QuestionID: "q1", Text: "Anything else?", Type: domain.TypeFreeText}
	text, kb := RenderQuestion(q, nil)
	require.Contains(t, text, "Type your answer")
	require.Nil(t, kb)
}

func TestRenderQuestion_UnknownTypeFallsBackToText(t *testing.T) {
	q := domain.Question{QuestionID: "q1", Text: "Mystery.", Type: domain.QuestionType("hologram")}
	text, kb := RenderQuestion(q, nil)
	require.Equal(t, "Mystery.", text)
	require.Nil(t, kb)
}

func TestRenderComparables(t *testing.T) {
	analysis := domain.CMAAnalysis{
		Comparables: []domain.Comparable{
			{ID: "c1", Address: "125 Main St", SoldPrice: 460000, Beds: 3, Baths: 2, DistanceMi: 0.1},
		},
		SuggestedPrice: 455000,
	}
	out := RenderComparables(analysis)
	require.Contains(t, out, "[c1] 125 Main St")
	require.Contains(t, out, "$455000")
	require.Contains(t, out, "/remove")
}

func TestRenderRecommendation(t *testing.T) {
	rec := domain.OfferRecommendation{
		Property: domain.Property{Address: "123 Main St", ListPrice: 475000},
		Analysis: domain.CMAAnalysis{Comparables: make([]domain.Comparable, 4)},
		Price:    domain.OfferPrice{Suggested: 455000, Adjusted: 452000},
	}
	out := RenderRecommendation(rec)
	require.Contains(t, out, "123 Main St")
	require.Contains(t, out, "$455000")
	require.Contains(t, out, "$452000")
	require.Contains(t, out, "4 comparable sales")
}
