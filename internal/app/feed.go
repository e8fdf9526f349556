package app

import (
	"sync"

	"exam-session-service/internal/domain"
)

// leaderboardFeed fans leaderboard snapshots out to per-assessment subscribers.
type leaderboardFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func newLeaderboardFeed() *leaderboardFeed {
	return &leaderboardFeed{subs: make(map[string]map[chan domain.Leaderboard]struct{})}
}

func (f *leaderboardFeed) subscribe(assessmentID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	if f.subs[assessmentID] == nil {
		f.subs[assessmentID] = make(map[chan domain.Leaderboard]struct{})
	}
	f.subs[assessmentID][ch] = struct{}{}
	// Enqueue the snapshot before releasing the lock so a concurrent publish
	// cannot land ahead of it.
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[assessmentID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, assessmentID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *leaderboardFeed) hasSubscribers(assessmentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[assessmentID]) > 0
}

func (f *leaderboardFeed) publish(assessmentID string, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[assessmentID] {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so a slow client never blocks publishing.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
