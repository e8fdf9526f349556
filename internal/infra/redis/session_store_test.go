package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-session-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionStore(client), mr
}

func inProgressSession(assessmentID, participantID string) domain.Session {
	return domain.Session{
		ParticipantID: participantID,
		AssessmentID:  assessmentID,
		Status:        domain.SessionInProgress,
		StartTime:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCreateSetsKeyOnce(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	_, created, err := store.Create(ctx, inProgressSession("a1", "u1"))
	if err != nil || !created {
		t.Fatalf("expected fresh create, got created=%v err=%v", created, err)
	}
	if !mr.Exists("exam:session:a1:u1") {
		t.Fatalf("expected session key in redis")
	}

	later := inProgressSession("a1", "u1")
	later.StartTime = later.StartTime.Add(time.Hour)
	existing, created, err := store.Create(ctx, later)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created {
		t.Fatalf("expected existing session returned")
	}
	if !existing.StartTime.Equal(inProgressSession("a1", "u1").StartTime) {
		t.Fatalf("start time must be write-once, got %v", existing.StartTime)
	}
}

func TestGetUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "a1", "ghost")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGetKeepsMissingStartTimeZero(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	// A record written without a start time must not decode to the Unix
	// epoch; the submission gate treats a zero start time as unverifiable.
	if err := mr.Set("exam:session:a1:u1", `{"participantId":"u1","assessmentId":"a1","status":"in_progress"}`); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	sess, err := store.Get(ctx, "a1", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sess.StartTime.IsZero() {
		t.Fatalf("expected zero start time, got %v", sess.StartTime)
	}

	zeroStart := inProgressSession("a1", "u2")
	zeroStart.StartTime = time.Time{}
	if _, _, err := store.Create(ctx, zeroStart); err != nil {
		t.Fatalf("create: %v", err)
	}
	sess, err = store.Get(ctx, "a1", "u2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sess.StartTime.IsZero() {
		t.Fatalf("expected zero start time to round-trip, got %v", sess.StartTime)
	}
}

func TestMarkSubmittedIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	_, _, _ = store.Create(ctx, inProgressSession("a1", "u1"))

	outcome := domain.SubmissionOutcome{
		Answers:      map[string]int{"q1": 1, "q2": 3},
		Score:        3,
		Stats:        domain.Stats{Correct: 1, Wrong: 1, Skipped: 1, TotalQuestions: 3},
		TimeTakenSec: 600,
		SubmittedAt:  time.Date(2025, 3, 1, 10, 10, 0, 0, time.UTC),
	}
	if err := store.MarkSubmitted(ctx, "a1", "u1", outcome); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	err := store.MarkSubmitted(ctx, "a1", "u1", outcome)
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	sess, err := store.Get(ctx, "a1", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Status != domain.SessionSubmitted || sess.Score != 3 || sess.TimeTakenSec != 600 {
		t.Fatalf("unexpected stored session %+v", sess)
	}
	members, err := mr.Members("exam:assessment:a1:submitted")
	if err != nil || len(members) != 1 || members[0] != "u1" {
		t.Fatalf("expected participant in submitted index, got %v (%v)", members, err)
	}
}

func TestMarkSubmittedUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.MarkSubmitted(context.Background(), "a1", "ghost", domain.SubmissionOutcome{})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendWarningUsesList(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.AppendWarning(ctx, "a1", "u1", "tab-switch"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound before create, got %v", err)
	}

	_, _, _ = store.Create(ctx, inProgressSession("a1", "u1"))
	if err := store.AppendWarning(ctx, "a1", "u1", "tab-switch"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendWarning(ctx, "a1", "u1", "window-blur"); err != nil {
		t.Fatalf("append: %v", err)
	}

	labels, err := mr.List("exam:session:a1:u1:warnings")
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(labels) != 2 || labels[0] != "tab-switch" || labels[1] != "window-blur" {
		t.Fatalf("unexpected labels %v", labels)
	}

	sess, _ := store.Get(ctx, "a1", "u1")
	if len(sess.WarningLabels) != 2 {
		t.Fatalf("expected warnings on session, got %v", sess.WarningLabels)
	}
}

func TestListSubmitted(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, _ = store.Create(ctx, inProgressSession("a1", "u1"))
	_, _, _ = store.Create(ctx, inProgressSession("a1", "u2"))
	_ = store.MarkSubmitted(ctx, "a1", "u1", domain.SubmissionOutcome{
		Score: 4, SubmittedAt: time.Date(2025, 3, 1, 10, 10, 0, 0, time.UTC),
	})

	submitted, err := store.ListSubmitted(ctx, "a1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(submitted) != 1 || submitted[0].ParticipantID != "u1" || submitted[0].Score != 4 {
		t.Fatalf("unexpected listing %+v", submitted)
	}

	none, err := store.ListSubmitted(ctx, "a2")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no submissions, got %+v", none)
	}
}
