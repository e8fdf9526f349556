package app

import (
	"context"
	"log"
	"time"

	"exam-session-service/internal/domain"
)

// DefaultLeaderboardLimit caps leaderboard size when the caller passes no limit.
const DefaultLeaderboardLimit = 100

// SessionStore abstracts how sessions are persisted (in-memory, Redis, etc).
// Create must be atomic per (assessment, participant): when the key already
// exists it returns the stored session and created=false instead of an error.
type SessionStore interface {
	Create(ctx context.Context, sess domain.Session) (domain.Session, bool, error)
	Get(ctx context.Context, assessmentID, participantID string) (domain.Session, error)
	// MarkSubmitted transitions InProgress -> Submitted exactly once; a second
	// call observes domain.ErrAlreadySubmitted and mutates nothing.
	MarkSubmitted(ctx context.Context, assessmentID, participantID string, outcome domain.SubmissionOutcome) error
	AppendWarning(ctx context.Context, assessmentID, participantID, label string) error
	ListSubmitted(ctx context.Context, assessmentID string) ([]domain.Session, error)
}

// AssessmentRepository loads assessment content (from cache/backing store).
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
	// AnswerKey returns correct option indexes for exactly the requested
	// question IDs; IDs unknown to the current content are simply absent.
	AnswerKey(ctx context.Context, assessmentID string, questionIDs []string) (map[string]int, error)
	QuestionIDs(ctx context.Context, assessmentID string) ([]string, error)
}

// Roster lists the participants registered for an assessment.
type Roster interface {
	Registered(ctx context.Context, assessmentID string) ([]domain.Participant, error)
}

// SessionService contains the core assessment session use cases.
type SessionService struct {
	store            SessionStore
	assessments      AssessmentRepository
	roster           Roster
	feed             *leaderboardFeed
	leaderboardLimit int
	now              func() time.Time
}

// Option configures a SessionService.
type Option func(*SessionService)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithLeaderboardLimit overrides the default leaderboard size cap.
func WithLeaderboardLimit(limit int) Option {
	return func(s *SessionService) {
		if limit > 0 {
			s.leaderboardLimit = limit
		}
	}
}

func NewSessionService(store SessionStore, assessments AssessmentRepository, roster Roster, opts ...Option) *SessionService {
	s := &SessionService{
		store:            store,
		assessments:      assessments,
		roster:           roster,
		feed:             newLeaderboardFeed(),
		leaderboardLimit: DefaultLeaderboardLimit,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rejoinCapPercent bounds the time budget granted on rejoin to a fraction of
// the original duration, so stepping away never restores a full-length window.
const rejoinCapPercent = 40

// Start creates the participant's session on first call and computes the
// remaining time budget on every call. Losing the creation race to a
// concurrent duplicate request is folded into the rejoin path, not an error.
func (s *SessionService) Start(ctx context.Context, assessmentID, participantID string) (timeLeftSec int64, isRejoin bool, err error) {
	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return 0, false, err
	}

	now := s.now()
	sess, created, err := s.store.Create(ctx, domain.Session{
		ParticipantID: participantID,
		AssessmentID:  assessmentID,
		Status:        domain.SessionInProgress,
		StartTime:     now,
	})
	if err != nil {
		return 0, false, err
	}

	if created {
		return clampToAssessmentEnd(assessment, now, assessment.DurationSec), false, nil
	}

	if sess.Status == domain.SessionSubmitted {
		return 0, false, domain.ErrAlreadySubmitted
	}

	elapsed := int64(now.Sub(sess.StartTime) / time.Second)
	remaining := assessment.DurationSec - elapsed
	if rejoinCap := assessment.DurationSec * rejoinCapPercent / 100; remaining > rejoinCap {
		remaining = rejoinCap
	}
	return clampToAssessmentEnd(assessment, now, remaining), true, nil
}

// clampToAssessmentEnd never grants time past the assessment's absolute end.
func clampToAssessmentEnd(a domain.Assessment, now time.Time, remaining int64) int64 {
	if untilEnd := int64(a.EndTime.Sub(now) / time.Second); remaining > untilEnd {
		remaining = untilEnd
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Submit grades the participant's answers and persists the terminal session
// state. The status transition is compare-and-set in the store, so exactly one
// of two concurrent submits commits a score; the other sees ErrAlreadySubmitted.
func (s *SessionService) Submit(ctx context.Context, assessmentID, participantID string, answers map[string]int, timeTakenSec int64) (float64, error) {
	assessment, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return 0, err
	}
	sess, err := s.store.Get(ctx, assessmentID, participantID)
	if err != nil {
		return 0, err
	}
	if sess.Status == domain.SessionSubmitted {
		return 0, domain.ErrAlreadySubmitted
	}

	now := s.now()
	if err := canSubmit(sess, assessment, now); err != nil {
		return 0, err
	}

	answered := answeredOnly(answers)
	key := map[string]int{}
	totalQuestions := assessment.TotalQuestions
	if len(answered) > 0 {
		// Fetch the key for exactly the answered questions so a concurrent
		// content edit cannot mis-grade questions the participant never saw.
		key, err = s.assessments.AnswerKey(ctx, assessmentID, questionIDs(answered))
		if err != nil {
			return 0, err
		}
	} else {
		// Empty submission: grade against the live question list, all skipped.
		ids, err := s.assessments.QuestionIDs(ctx, assessmentID)
		if err != nil {
			return 0, err
		}
		totalQuestions = len(ids)
	}

	result := grade(answered, key, totalQuestions, assessment.MarksPerCorrect, assessment.MarksPerWrong)

	err = s.store.MarkSubmitted(ctx, assessmentID, participantID, domain.SubmissionOutcome{
		Answers:      answered,
		Score:        result.Score,
		Stats:        result.Stats,
		TimeTakenSec: timeTakenSec,
		SubmittedAt:  now,
	})
	if err != nil {
		return 0, err
	}

	s.publishLeaderboard(ctx, assessmentID)
	return result.Score, nil
}

// AppendWarning records a proctoring violation label on the session. Appends
// are allowed at any time regardless of status and never gate submission.
func (s *SessionService) AppendWarning(ctx context.Context, assessmentID, participantID, label string) error {
	return s.store.AppendWarning(ctx, assessmentID, participantID, label)
}

// Subscribe returns a channel that receives a fresh leaderboard after every
// successful submit for the assessment. The caller must invoke the returned
// cancel function to avoid leaks.
func (s *SessionService) Subscribe(ctx context.Context, assessmentID string) (<-chan domain.Leaderboard, func(), error) {
	if _, err := s.assessments.GetAssessment(ctx, assessmentID); err != nil {
		return nil, nil, err
	}
	initial, err := s.BuildLeaderboard(ctx, assessmentID, 0)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.subscribe(assessmentID, initial)
	return ch, cancel, nil
}

func (s *SessionService) publishLeaderboard(ctx context.Context, assessmentID string) {
	if !s.feed.hasSubscribers(assessmentID) {
		return
	}
	lb, err := s.BuildLeaderboard(ctx, assessmentID, 0)
	if err != nil {
		log.Printf("leaderboard publish for %s failed: %v", assessmentID, err)
		return
	}
	s.feed.publish(assessmentID, lb)
}

// answeredOnly drops entries without a valid selected option.
func answeredOnly(answers map[string]int) map[string]int {
	out := make(map[string]int, len(answers))
	for questionID, option := range answers {
		if option >= 0 {
			out[questionID] = option
		}
	}
	return out
}

func questionIDs(answers map[string]int) []string {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	return ids
}
