package domain

import "time"

// SessionStatus tracks where a session is in its lifecycle. Submitted is terminal.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
)

// Assessment is the timed contest definition. The core treats it as read-only;
// the question set may change between start and submit and grading tolerates that.
type Assessment struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             time.Time  `json:"endTime"`
	DurationSec         int64      `json:"durationSeconds"`
	StrictMode          bool       `json:"strictMode"`
	SubmissionWindowMin int        `json:"submissionWindowMinutes"`
	TotalQuestions      int        `json:"totalQuestions"`
	MarksPerCorrect     float64    `json:"marksPerCorrect"`
	MarksPerWrong       float64    `json:"marksPerWrong"` // deducted on a wrong answer
	Questions           []Question `json:"questions"`
}

// Question models an MCQ question with localized text and one correct option index.
type Question struct {
	ID           string          `json:"id"`
	Prompt       LocalizedText   `json:"prompt"`
	Options      []LocalizedText `json:"options"`
	CorrectIndex int             `json:"correctIndex"`
}

// Stats summarizes a graded submission against the assessment's live question count.
type Stats struct {
	Correct        int `json:"correct"`
	Wrong          int `json:"wrong"`
	Skipped        int `json:"skipped"`
	TotalQuestions int `json:"totalQuestions"`
}

// Session is the per-participant record of one attempt at one assessment.
// At most one exists per (participant, assessment); StartTime is write-once and
// everything except WarningLabels freezes after submission.
type Session struct {
	ParticipantID string         `json:"participantId"`
	AssessmentID  string         `json:"assessmentId"`
	Status        SessionStatus  `json:"status"`
	StartTime     time.Time      `json:"startTime"`
	Answers       map[string]int `json:"answers,omitempty"`
	Score         float64        `json:"score"`
	Stats         Stats          `json:"stats"`
	TimeTakenSec  int64          `json:"timeTakenSeconds"`
	SubmittedAt   time.Time      `json:"submittedAt"`
	WarningLabels []string       `json:"warningLabels,omitempty"`
}

// SubmissionOutcome carries the fields written onto a session by a successful submit.
type SubmissionOutcome struct {
	Answers      map[string]int
	Score        float64
	Stats        Stats
	TimeTakenSec int64
	SubmittedAt  time.Time
}

// Participant identifies a registered participant with display fields.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// LeaderboardEntry is one ranked row: either a projection of a submitted
// session, or a synthetic row for a registered participant who never submitted.
type LeaderboardEntry struct {
	ParticipantID string     `json:"participantId"`
	DisplayName   string     `json:"displayName"`
	Score         float64    `json:"score"`
	TimeTakenSec  int64      `json:"timeTakenSeconds"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	DidNotAttend  bool       `json:"didNotAttend"`
}

// RealEntry projects a submitted session onto the leaderboard.
func RealEntry(sess Session, displayName string) LeaderboardEntry {
	entry := LeaderboardEntry{
		ParticipantID: sess.ParticipantID,
		DisplayName:   displayName,
		Score:         sess.Score,
		TimeTakenSec:  sess.TimeTakenSec,
	}
	if !sess.SubmittedAt.IsZero() {
		submittedAt := sess.SubmittedAt
		entry.SubmittedAt = &submittedAt
	}
	return entry
}

// AbsentEntry synthesizes a row for a registered participant with no submission.
func AbsentEntry(p Participant) LeaderboardEntry {
	return LeaderboardEntry{
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		Score:         0,
		TimeTakenSec:  0,
		DidNotAttend:  true,
	}
}

// Leaderboard captures the ordered scoreboard for an assessment.
type Leaderboard struct {
	AssessmentID string             `json:"assessmentId"`
	Entries      []LeaderboardEntry `json:"entries"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}
