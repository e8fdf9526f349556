package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func newSession(assessmentID, participantID string) domain.Session {
	return domain.Session{
		ParticipantID: participantID,
		AssessmentID:  assessmentID,
		Status:        domain.SessionInProgress,
		StartTime:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCreateIsFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	first := newSession("a1", "u1")
	_, created, err := store.Create(ctx, first)
	if err != nil || !created {
		t.Fatalf("expected fresh create, got created=%v err=%v", created, err)
	}

	second := newSession("a1", "u1")
	second.StartTime = first.StartTime.Add(time.Hour)
	existing, created, err := store.Create(ctx, second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created {
		t.Fatalf("expected existing session returned")
	}
	if !existing.StartTime.Equal(first.StartTime) {
		t.Fatalf("start time must be write-once, got %v", existing.StartTime)
	}
}

func TestCreateConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.Create(ctx, newSession("a1", "u1"))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMarkSubmittedTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_, _, _ = store.Create(ctx, newSession("a1", "u1"))

	outcome := domain.SubmissionOutcome{
		Answers:      map[string]int{"q1": 1},
		Score:        4,
		Stats:        domain.Stats{Correct: 1, TotalQuestions: 1},
		TimeTakenSec: 120,
		SubmittedAt:  time.Date(2025, 3, 1, 10, 2, 0, 0, time.UTC),
	}
	if err := store.MarkSubmitted(ctx, "a1", "u1", outcome); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	err := store.MarkSubmitted(ctx, "a1", "u1", outcome)
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	sess, _ := store.Get(ctx, "a1", "u1")
	if sess.Status != domain.SessionSubmitted || sess.Score != 4 {
		t.Fatalf("unexpected stored session %+v", sess)
	}
}

func TestMarkSubmittedUnknownSession(t *testing.T) {
	store := NewSessionStore()
	err := store.MarkSubmitted(context.Background(), "a1", "ghost", domain.SubmissionOutcome{})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendWarningKeepsOrderAndIgnoresStatus(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_, _, _ = store.Create(ctx, newSession("a1", "u1"))

	if err := store.AppendWarning(ctx, "a1", "u1", "tab-switch"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = store.MarkSubmitted(ctx, "a1", "u1", domain.SubmissionOutcome{SubmittedAt: time.Now()})
	if err := store.AppendWarning(ctx, "a1", "u1", "window-blur"); err != nil {
		t.Fatalf("append after submit: %v", err)
	}

	sess, _ := store.Get(ctx, "a1", "u1")
	if len(sess.WarningLabels) != 2 || sess.WarningLabels[0] != "tab-switch" {
		t.Fatalf("expected ordered labels, got %v", sess.WarningLabels)
	}
}

func TestListSubmittedFiltersByAssessmentAndStatus(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_, _, _ = store.Create(ctx, newSession("a1", "u1"))
	_, _, _ = store.Create(ctx, newSession("a1", "u2"))
	_, _, _ = store.Create(ctx, newSession("a2", "u1"))
	_ = store.MarkSubmitted(ctx, "a1", "u1", domain.SubmissionOutcome{Score: 4, SubmittedAt: time.Now()})
	_ = store.MarkSubmitted(ctx, "a2", "u1", domain.SubmissionOutcome{Score: 8, SubmittedAt: time.Now()})

	submitted, err := store.ListSubmitted(ctx, "a1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(submitted) != 1 || submitted[0].ParticipantID != "u1" || submitted[0].Score != 4 {
		t.Fatalf("unexpected listing %+v", submitted)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	sess := newSession("a1", "u1")
	_, _, _ = store.Create(ctx, sess)
	_ = store.MarkSubmitted(ctx, "a1", "u1", domain.SubmissionOutcome{
		Answers: map[string]int{"q1": 1}, SubmittedAt: time.Now(),
	})

	got, _ := store.Get(ctx, "a1", "u1")
	got.Answers["q1"] = 99

	again, _ := store.Get(ctx, "a1", "u1")
	if again.Answers["q1"] != 1 {
		t.Fatalf("store state mutated through returned copy")
	}
}
