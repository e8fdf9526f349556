package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore persists sessions in Redis.
// Layout:
//   - exam:session:{assessmentID}:{participantID}          JSON session record
//   - exam:session:{assessmentID}:{participantID}:warnings list of labels
//   - exam:assessment:{assessmentID}:submitted             set of participant IDs
//
// Create relies on SETNX for its create-if-absent guarantee; the submit
// transition runs as a Lua script so the status check and the overwrite are a
// single atomic step.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// markSubmittedScript performs the compare-and-set on status. Returns -1 when
// the session is missing, 0 when it is already submitted, 1 on success.
var markSubmittedScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local sess = cjson.decode(raw)
if sess.status ~= 'in_progress' then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`)

type sessionRecord struct {
	ParticipantID string         `json:"participantId"`
	AssessmentID  string         `json:"assessmentId"`
	Status        string         `json:"status"`
	StartTime     int64          `json:"startTime"`
	Answers       map[string]int `json:"answers,omitempty"`
	Score         float64        `json:"score"`
	Stats         domain.Stats   `json:"stats"`
	TimeTakenSec  int64          `json:"timeTakenSeconds"`
	SubmittedAt   int64          `json:"submittedAt,omitempty"`
}

func (s *SessionStore) Create(ctx context.Context, sess domain.Session) (domain.Session, bool, error) {
	raw, err := json.Marshal(toRecord(sess))
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("marshal session: %w", err)
	}
	key := s.sessionKey(sess.AssessmentID, sess.ParticipantID)
	created, err := s.client.SetNX(ctx, key, raw, 0).Result()
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("create session: %w", err)
	}
	if created {
		return sess, true, nil
	}
	existing, err := s.Get(ctx, sess.AssessmentID, sess.ParticipantID)
	if err != nil {
		return domain.Session{}, false, err
	}
	return existing, false, nil
}

func (s *SessionStore) Get(ctx context.Context, assessmentID, participantID string) (domain.Session, error) {
	key := s.sessionKey(assessmentID, participantID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	sess := fromRecord(rec)
	warnings, err := s.client.LRange(ctx, s.warningsKey(assessmentID, participantID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return domain.Session{}, fmt.Errorf("get warnings: %w", err)
	}
	sess.WarningLabels = warnings
	return sess, nil
}

func (s *SessionStore) MarkSubmitted(ctx context.Context, assessmentID, participantID string, outcome domain.SubmissionOutcome) error {
	current, err := s.Get(ctx, assessmentID, participantID)
	if err != nil {
		return err
	}
	current.Status = domain.SessionSubmitted
	current.Answers = outcome.Answers
	current.Score = outcome.Score
	current.Stats = outcome.Stats
	current.TimeTakenSec = outcome.TimeTakenSec
	current.SubmittedAt = outcome.SubmittedAt

	raw, err := json.Marshal(toRecord(current))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	keys := []string{
		s.sessionKey(assessmentID, participantID),
		s.submittedKey(assessmentID),
	}
	res, err := markSubmittedScript.Run(ctx, s.client, keys, raw, participantID).Int64()
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return domain.ErrAlreadySubmitted
	default:
		return domain.ErrSessionNotFound
	}
}

func (s *SessionStore) AppendWarning(ctx context.Context, assessmentID, participantID, label string) error {
	exists, err := s.client.Exists(ctx, s.sessionKey(assessmentID, participantID)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return domain.ErrSessionNotFound
	}
	if err := s.client.RPush(ctx, s.warningsKey(assessmentID, participantID), label).Err(); err != nil {
		return fmt.Errorf("append warning: %w", err)
	}
	return nil
}

func (s *SessionStore) ListSubmitted(ctx context.Context, assessmentID string) ([]domain.Session, error) {
	ids, err := s.client.SMembers(ctx, s.submittedKey(assessmentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list submitted: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, participantID := range ids {
		cmds[i] = pipe.Get(ctx, s.sessionKey(assessmentID, participantID))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("load submitted sessions: %w", err)
	}
	sessions := make([]domain.Session, 0, len(ids))
	for _, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load submitted session: %w", err)
		}
		var rec sessionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		sessions = append(sessions, fromRecord(rec))
	}
	return sessions, nil
}

func (s *SessionStore) sessionKey(assessmentID, participantID string) string {
	return "exam:session:" + assessmentID + ":" + participantID
}

func (s *SessionStore) warningsKey(assessmentID, participantID string) string {
	return s.sessionKey(assessmentID, participantID) + ":warnings"
}

func (s *SessionStore) submittedKey(assessmentID string) string {
	return "exam:assessment:" + assessmentID + ":submitted"
}

func toRecord(sess domain.Session) sessionRecord {
	rec := sessionRecord{
		ParticipantID: sess.ParticipantID,
		AssessmentID:  sess.AssessmentID,
		Status:        string(sess.Status),
		Answers:       sess.Answers,
		Score:         sess.Score,
		Stats:         sess.Stats,
		TimeTakenSec:  sess.TimeTakenSec,
	}
	// A zero start time must round-trip as zero, not as the Unix epoch,
	// so corrupted records still fail the start-time check on read.
	if !sess.StartTime.IsZero() {
		rec.StartTime = sess.StartTime.Unix()
	}
	if !sess.SubmittedAt.IsZero() {
		rec.SubmittedAt = sess.SubmittedAt.Unix()
	}
	return rec
}

func fromRecord(rec sessionRecord) domain.Session {
	sess := domain.Session{
		ParticipantID: rec.ParticipantID,
		AssessmentID:  rec.AssessmentID,
		Status:        domain.SessionStatus(rec.Status),
		Answers:       rec.Answers,
		Score:         rec.Score,
		Stats:         rec.Stats,
		TimeTakenSec:  rec.TimeTakenSec,
	}
	if rec.StartTime != 0 {
		sess.StartTime = time.Unix(rec.StartTime, 0).UTC()
	}
	if rec.SubmittedAt != 0 {
		sess.SubmittedAt = time.Unix(rec.SubmittedAt, 0).UTC()
	}
	return sess
}
