package memory

import (
	"context"
	"sync"

	"exam-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. A single
// mutex guards the map, which gives Create its create-if-absent atomicity and
// MarkSubmitted its compare-and-set on status.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

func sessionKey(assessmentID, participantID string) string {
	return assessmentID + "/" + participantID
}

func (s *SessionStore) Create(_ context.Context, sess domain.Session) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(sess.AssessmentID, sess.ParticipantID)
	if existing, ok := s.sessions[key]; ok {
		return cloneSession(existing), false, nil
	}
	stored := cloneSession(&sess)
	s.sessions[key] = &stored
	return cloneSession(&stored), true, nil
}

func (s *SessionStore) Get(_ context.Context, assessmentID, participantID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionKey(assessmentID, participantID)]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *SessionStore) MarkSubmitted(_ context.Context, assessmentID, participantID string, outcome domain.SubmissionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(assessmentID, participantID)]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sess.Status == domain.SessionSubmitted {
		return domain.ErrAlreadySubmitted
	}
	sess.Status = domain.SessionSubmitted
	sess.Answers = cloneAnswers(outcome.Answers)
	sess.Score = outcome.Score
	sess.Stats = outcome.Stats
	sess.TimeTakenSec = outcome.TimeTakenSec
	sess.SubmittedAt = outcome.SubmittedAt
	return nil
}

func (s *SessionStore) AppendWarning(_ context.Context, assessmentID, participantID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(assessmentID, participantID)]
	if !ok {
		return domain.ErrSessionNotFound
	}
	// Warnings stay appendable after submission; they are audit data only.
	sess.WarningLabels = append(sess.WarningLabels, label)
	return nil
}

func (s *SessionStore) ListSubmitted(_ context.Context, assessmentID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.AssessmentID == assessmentID && sess.Status == domain.SessionSubmitted {
			out = append(out, cloneSession(sess))
		}
	}
	return out, nil
}

// cloneSession copies the record so callers never alias store-owned state.
func cloneSession(sess *domain.Session) domain.Session {
	out := *sess
	out.Answers = cloneAnswers(sess.Answers)
	if sess.WarningLabels != nil {
		out.WarningLabels = append([]string(nil), sess.WarningLabels...)
	}
	return out
}

func cloneAnswers(answers map[string]int) map[string]int {
	if answers == nil {
		return nil
	}
	out := make(map[string]int, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
