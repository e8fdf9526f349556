package app

import (
	"testing"

	"exam-session-service/internal/domain"
)

func TestSubscribeDeliversInitialSnapshotFirst(t *testing.T) {
	feed := newLeaderboardFeed()
	update := domain.Leaderboard{Entries: []domain.LeaderboardEntry{{ParticipantID: "u1"}}}

	for i := 0; i < 200; i++ {
		done := make(chan struct{})
		go func() {
			feed.publish("a1", update)
			close(done)
		}()
		ch, cancel := feed.subscribe("a1", domain.Leaderboard{})
		if first := <-ch; len(first.Entries) != 0 {
			t.Fatalf("iteration %d: expected the initial snapshot before any update, got %+v", i, first)
		}
		<-done
		cancel()
	}
}

func TestPublishDropsStaleSnapshotForSlowSubscriber(t *testing.T) {
	feed := newLeaderboardFeed()
	ch, cancel := feed.subscribe("a1", domain.Leaderboard{})
	defer cancel()

	for n := 1; n <= 20; n++ {
		entries := make([]domain.LeaderboardEntry, n)
		feed.publish("a1", domain.Leaderboard{Entries: entries})
	}

	var last domain.Leaderboard
	for {
		select {
		case lb := <-ch:
			last = lb
			continue
		default:
		}
		break
	}
	if len(last.Entries) != 20 {
		t.Fatalf("expected the newest snapshot to survive, got %d entries", len(last.Entries))
	}
}
