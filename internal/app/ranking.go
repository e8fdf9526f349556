package app

import (
	"context"
	"math"
	"sort"

	"exam-session-service/internal/domain"
)

// BuildLeaderboard merges submitted sessions with synthetic rows for
// registered participants who never submitted, sorted into a stable total
// order and truncated to limit (DefaultLeaderboardLimit when limit <= 0).
func (s *SessionService) BuildLeaderboard(ctx context.Context, assessmentID string, limit int) (domain.Leaderboard, error) {
	sessions, err := s.store.ListSubmitted(ctx, assessmentID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	registered, err := s.roster.Registered(ctx, assessmentID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	if limit <= 0 {
		limit = s.leaderboardLimit
	}
	return domain.Leaderboard{
		AssessmentID: assessmentID,
		Entries:      rankEntries(sessions, registered, limit),
		UpdatedAt:    s.now(),
	}, nil
}

// rankEntries builds and orders the leaderboard rows. Ordering: score
// descending, then time taken ascending where a zero time (absent or legacy
// record) sorts as the slowest possible value rather than the fastest, then
// display name, then participant ID so the order is total and repeatable.
func rankEntries(sessions []domain.Session, registered []domain.Participant, limit int) []domain.LeaderboardEntry {
	names := make(map[string]string, len(registered))
	for _, p := range registered {
		names[p.ID] = p.DisplayName
	}

	entries := make([]domain.LeaderboardEntry, 0, len(sessions)+len(registered))
	attended := make(map[string]struct{}, len(sessions))
	for _, sess := range sessions {
		displayName := names[sess.ParticipantID]
		if displayName == "" {
			displayName = sess.ParticipantID
		}
		entries = append(entries, domain.RealEntry(sess, displayName))
		attended[sess.ParticipantID] = struct{}{}
	}
	for _, p := range registered {
		if _, ok := attended[p.ID]; ok {
			continue
		}
		entries = append(entries, domain.AbsentEntry(p))
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ti, tj := effectiveTime(entries[i]), effectiveTime(entries[j])
		if ti != tj {
			return ti < tj
		}
		if entries[i].DisplayName != entries[j].DisplayName {
			return entries[i].DisplayName < entries[j].DisplayName
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// effectiveTime treats a zero time taken as the maximum value so that a
// participant with no recorded time never wins a tie on speed.
func effectiveTime(e domain.LeaderboardEntry) int64 {
	if e.TimeTakenSec == 0 {
		return math.MaxInt64
	}
	return e.TimeTakenSec
}
