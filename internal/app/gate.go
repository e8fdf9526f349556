package app

import (
	"time"

	"exam-session-service/internal/domain"
)

// clockSkewBufferSec widens the submission window slightly so a client whose
// clock runs marginally ahead is not rejected at the window boundary.
const clockSkewBufferSec = 30

// canSubmit applies the strict-mode submission window: under strict mode a
// submit is accepted only inside the trailing window of the duration. The gate
// is monotonic, once open it stays open as time advances.
func canSubmit(sess domain.Session, a domain.Assessment, now time.Time) error {
	if !a.StrictMode {
		return nil
	}
	if sess.StartTime.IsZero() {
		return domain.ErrCannotVerifyStartTime
	}
	elapsed := int64(now.Sub(sess.StartTime) / time.Second)
	remaining := a.DurationSec - elapsed
	window := int64(a.SubmissionWindowMin)*60 + clockSkewBufferSec
	if remaining > window {
		return &domain.TooEarlyError{WindowMinutes: a.SubmissionWindowMin, RemainingSec: remaining}
	}
	return nil
}
