package telegram

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"offer-wizard/internal/domain"
	"offer-wizard/internal/usecase"
)

// Callback data prefixes. Telegram callback data is capped at 64 bytes, so
// options are referenced by id, never by text.
const (
	cbOption = "opt:"
	cbSubmit = "submit"
	cbSkip   = "skip"
)

// RenderQuestion builds the message text and inline keyboard for a
// question. Selected option ids (for multi-select toggling) are marked in
// the button labels.
func RenderQuestion(q domain.Question, selected map[string]bool) (string, *models.InlineKeyboardMarkup) {
	w, ok := usecase.WidgetFor(q.Type)
	if !ok {
		return q.Text, nil
	}

	var text strings.Builder
	text.WriteString(q.Text)

	switch w.Kind {
	case usecase.WidgetDisplay:
		return text.String(), nil
	case usecase.WidgetFreeText:
		text.WriteString("\n\nType your answer, or /skip.")
		return text.String(), nil
	case usecase.WidgetImageUpload:
		text.WriteString("\n\nSend a photo, or tap Done when finished.")
		return text.String(), keyboard([][]models.InlineKeyboardButton{{submitButton("Done")}})
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(q.Options)+1)
	for _, o := range q.Options {
		label := o.Text
		if o.Icon != "" {
			label = o.Icon + " " + label
		}
		if selected[o.ID] {
			label = "✅ " + label
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         label,
			CallbackData: cbOption + o.ID,
		}})
	}
	if w.Submit == usecase.SubmitExplicit {
		rows = append(rows, []models.InlineKeyboardButton{
			submitButton("Submit"),
			{Text: "Skip", CallbackData: cbSkip},
		})
		text.WriteString("\n\nPick all that apply, then Submit.")
	}
	return text.String(), keyboard(rows)
}

// RenderHistory formats prior free-text turns above a reloaded page.
func RenderHistory(turns []domain.ChatTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Earlier in this conversation:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "• %s — %s\n", t.Question, t.Answer)
	}
	return b.String()
}

// RenderRecommendation formats the final offer summary.
func RenderRecommendation(rec domain.OfferRecommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rec.Property.Address)
	fmt.Fprintf(&b, "List price: $%.0f\n", rec.Property.ListPrice)
	fmt.Fprintf(&b, "Suggested offer: $%.0f\n", rec.Price.Suggested)
	if rec.Price.Adjusted > 0 {
		fmt.Fprintf(&b, "Your adjusted offer: $%.0f\n", rec.Price.Adjusted)
	}
	fmt.Fprintf(&b, "Based on %d comparable sales.", len(rec.Analysis.Comparables))
	return b.String()
}

// RenderComparables formats the comparable set with removal hints.
func RenderComparables(analysis domain.CMAAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comparable sales (%d):\n", len(analysis.Comparables))
	for _, c := range analysis.Comparables {
		fmt.Fprintf(&b, "• [%s] %s — $%.0f, %d bd / %.1f ba, %.1f mi\n",
			c.ID, c.Address, c.SoldPrice, c.Beds, c.Baths, c.DistanceMi)
	}
	fmt.Fprintf(&b, "\nSuggested price: $%.0f\n", analysis.SuggestedPrice)
	b.WriteString("Remove one with: /remove <id> <reason>")
	return b.String()
}

func submitButton(label string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: label, CallbackData: cbSubmit}
}

func keyboard(rows [][]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
