package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"exam-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment content from a backing store (e.g., Postgres).
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
}

// AssessmentRepository caches assessment content in Redis and falls back to a
// loader on cache miss.
// Content is stored as: SET  exam:assessment:{id}:meta    {assessment JSON}
// Answer key as:        HSET exam:assessment:{id}:answers {questionID} {correctIndex}
// The separate answers hash lets grading HMGET exactly the question IDs a
// participant answered.
type AssessmentRepository struct {
	client *redis.Client
	loader AssessmentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAssessmentRepository(client *redis.Client, loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	raw, err := r.client.Get(ctx, r.metaKey(assessmentID)).Bytes()
	if err == nil {
		var assessment domain.Assessment
		if err := json.Unmarshal(raw, &assessment); err == nil {
			return assessment, nil
		}
	}

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := r.client.Get(ctx, r.metaKey(assessmentID)).Bytes()
		if err == nil {
			var assessment domain.Assessment
			if err := json.Unmarshal(raw, &assessment); err == nil {
				return assessment, nil
			}
		}

		assessment, err := r.loader.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return domain.Assessment{}, err
		}
		r.fillCache(ctx, assessment)
		return assessment, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

func (r *AssessmentRepository) fillCache(ctx context.Context, assessment domain.Assessment) {
	raw, err := json.Marshal(assessment)
	if err != nil {
		return
	}
	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.metaKey(assessment.ID), raw, ttl)
	for _, q := range assessment.Questions {
		pipe.HSet(ctx, r.answersKey(assessment.ID), q.ID, q.CorrectIndex)
	}
	if ttl > 0 {
		pipe.Expire(ctx, r.answersKey(assessment.ID), ttl)
	}
	_, _ = pipe.Exec(ctx)
}

// AnswerKey fetches correct indexes for exactly the requested question IDs.
// Question IDs missing from the current content are left out of the result.
func (r *AssessmentRepository) AnswerKey(ctx context.Context, assessmentID string, questionIDs []string) (map[string]int, error) {
	key := make(map[string]int, len(questionIDs))
	if len(questionIDs) == 0 {
		return key, nil
	}
	values, err := r.client.HMGet(ctx, r.answersKey(assessmentID), questionIDs...).Result()
	if err == nil && anyPresent(values) {
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if idx, err := strconv.Atoi(s); err == nil {
				key[questionIDs[i]] = idx
			}
		}
		return key, nil
	}

	// Cold or expired hash: load content and compute the subset directly.
	assessment, err := r.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(assessment.Questions))
	for _, q := range assessment.Questions {
		byID[q.ID] = q.CorrectIndex
	}
	for _, id := range questionIDs {
		if correct, ok := byID[id]; ok {
			key[id] = correct
		}
	}
	return key, nil
}

func (r *AssessmentRepository) QuestionIDs(ctx context.Context, assessmentID string) ([]string, error) {
	ids, err := r.client.HKeys(ctx, r.answersKey(assessmentID)).Result()
	if err == nil && len(ids) > 0 {
		return ids, nil
	}
	assessment, err := r.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	ids = make([]string, 0, len(assessment.Questions))
	for _, q := range assessment.Questions {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func anyPresent(values []interface{}) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}

func (r *AssessmentRepository) metaKey(assessmentID string) string {
	return "exam:assessment:" + assessmentID + ":meta"
}

func (r *AssessmentRepository) answersKey(assessmentID string) string {
	return "exam:assessment:" + assessmentID + ":answers"
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
