package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment content from a backing store (e.g., Postgres).
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
}

// AssessmentRepository caches assessments with TTL to avoid repeated DB hits.
type AssessmentRepository struct {
	loader AssessmentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedAssessment
}

type cachedAssessment struct {
	assessment domain.Assessment
	expiresAt  time.Time
}

func NewAssessmentRepository(loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedAssessment),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[assessmentID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.assessment, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[assessmentID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.assessment, nil
		}
		r.mu.RUnlock()

		assessment, err := r.loader.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return domain.Assessment{}, err
		}

		r.mu.Lock()
		r.cache[assessmentID] = cachedAssessment{
			assessment: assessment,
			expiresAt:  now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return assessment, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

// AnswerKey returns correct indexes for exactly the requested question IDs;
// IDs the current content no longer carries are left out.
func (r *AssessmentRepository) AnswerKey(ctx context.Context, assessmentID string, questionIDs []string) (map[string]int, error) {
	assessment, err := r.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(assessment.Questions))
	for _, q := range assessment.Questions {
		byID[q.ID] = q.CorrectIndex
	}
	key := make(map[string]int, len(questionIDs))
	for _, id := range questionIDs {
		if correct, ok := byID[id]; ok {
			key[id] = correct
		}
	}
	return key, nil
}

func (r *AssessmentRepository) QuestionIDs(ctx context.Context, assessmentID string) ([]string, error) {
	assessment, err := r.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assessment.Questions))
	for _, q := range assessment.Questions {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticAssessmentLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticAssessmentLoader struct {
	assessments map[string]domain.Assessment
}

func NewStaticAssessmentLoader(assessments map[string]domain.Assessment) *StaticAssessmentLoader {
	return &StaticAssessmentLoader{assessments: assessments}
}

func (l *StaticAssessmentLoader) LoadAssessment(_ context.Context, assessmentID string) (domain.Assessment, error) {
	if assessment, ok := l.assessments[assessmentID]; ok {
		return assessment, nil
	}
	return domain.Assessment{}, domain.ErrAssessmentNotFound
}

// StaticRoster serves a fixed registration list per assessment (tests/demos).
type StaticRoster struct {
	registered map[string][]domain.Participant
}

func NewStaticRoster(registered map[string][]domain.Participant) *StaticRoster {
	return &StaticRoster{registered: registered}
}

func (r *StaticRoster) Registered(_ context.Context, assessmentID string) ([]domain.Participant, error) {
	return append([]domain.Participant(nil), r.registered[assessmentID]...), nil
}
