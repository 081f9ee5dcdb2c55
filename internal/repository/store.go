package repository

import (
	"context"
	"errors"

	"offer-wizard/internal/domain"
)

// ErrTerminalPresent is returned when an append would introduce a second
// terminal question on a page. Once a page has its terminal question the
// conversation only ever changes through response updates or a full replace.
var ErrTerminalPresent = errors.New("repository: page already has a terminal question")

// ErrQuestionNotFound is returned by UpdateResponse when the question id is
// not in the page's list.
var ErrQuestionNotFound = errors.New("repository: question not found")

// ConversationStore holds the ordered question list for each (session, page).
// Implementations must keep question ids unique within a page and treat the
// list as append-only apart from in-place response updates and whole-page
// replacement.
type ConversationStore interface {
	// GetPage returns the page's question list, empty when nothing is stored.
	GetPage(ctx context.Context, sessionID string, page domain.Page) ([]domain.Question, error)
	// ReplacePage swaps the page's entire question list.
	ReplacePage(ctx context.Context, sessionID string, page domain.Page, questions []domain.Question) error
	// AppendQuestion adds a question to the end of the page's list. Appends of
	// an id already present are suppressed and report appended=false.
	AppendQuestion(ctx context.Context, sessionID string, page domain.Page, q domain.Question) (appended bool, err error)
	// UpdateResponse stores a response on an existing question in place.
	UpdateResponse(ctx context.Context, sessionID string, page domain.Page, questionID string, response []string) error
	// ClearPage drops the page's question list.
	ClearPage(ctx context.Context, sessionID string, page domain.Page) error
	// ClearSession drops every page of a session.
	ClearSession(ctx context.Context, sessionID string) error
}

// appendQuestion implements the shared append semantics over a snapshot of
// the page list: id dedupe and the single-terminal invariant.
func appendQuestion(questions []domain.Question, q domain.Question) ([]domain.Question, bool, error) {
	for _, existing := range questions {
		if existing.QuestionID == q.QuestionID {
			return questions, false, nil
		}
	}
	if q.IsLast {
		for _, existing := range questions {
			if existing.IsLast {
				return questions, false, ErrTerminalPresent
			}
		}
	}
	return append(questions, q), true, nil
}

// updateResponse implements the shared in-place update semantics.
func updateResponse(questions []domain.Question, questionID string, response []string) error {
	for i := range questions {
		if questions[i].QuestionID == questionID {
			questions[i].Response = response
			return nil
		}
	}
	return ErrQuestionNotFound
}
