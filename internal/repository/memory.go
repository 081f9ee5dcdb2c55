package repository

import (
	"context"
	"sync"

	"offer-wizard/internal/domain"
)

// MemoryStore is the in-process ConversationStore used by the single-process
// bot front end and by tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]map[domain.Page][]domain.Question
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[domain.Page][]domain.Question)}
}

func (s *MemoryStore) GetPage(_ context.Context, sessionID string, page domain.Page) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := s.sessions[sessionID][page]
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (s *MemoryStore) ReplacePage(_ context.Context, sessionID string, page domain.Page, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	s.pages(sessionID)[page] = qs
	return nil
}

func (s *MemoryStore) AppendQuestion(_ context.Context, sessionID string, page domain.Page, q domain.Question) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.pages(sessionID)
	qs, appended, err := appendQuestion(pages[page], q)
	if err != nil {
		return false, err
	}
	pages[page] = qs
	return appended, nil
}

func (s *MemoryStore) UpdateResponse(_ context.Context, sessionID string, page domain.Page, questionID string, response []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateResponse(s.sessions[sessionID][page], questionID, response)
}

func (s *MemoryStore) ClearPage(_ context.Context, sessionID string, page domain.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pages, ok := s.sessions[sessionID]; ok {
		delete(pages, page)
	}
	return nil
}

func (s *MemoryStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) pages(sessionID string) map[domain.Page][]domain.Question {
	pages, ok := s.sessions[sessionID]
	if !ok {
		pages = make(map[domain.Page][]domain.Question)
		s.sessions[sessionID] = pages
	}
	return pages
}
