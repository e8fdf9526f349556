package app

import "exam-session-service/internal/domain"

// gradeResult is the outcome of grading one submission.
type gradeResult struct {
	Score float64
	Stats domain.Stats
}

// grade scores the submitted answers against the answer key. Only questions
// present in both maps count as correct or wrong; skipped is derived from the
// assessment's live question count, not from the submitted subset, so it
// reflects content edits made while the session was running. The score is
// signed and has no floor. grade is a pure function: identical inputs always
// produce identical output.
func grade(answers, answerKey map[string]int, totalQuestions int, marksPerCorrect, marksPerWrong float64) gradeResult {
	var result gradeResult
	for questionID, selected := range answers {
		correctIndex, ok := answerKey[questionID]
		if !ok {
			continue
		}
		if selected == correctIndex {
			result.Score += marksPerCorrect
			result.Stats.Correct++
		} else {
			result.Score -= marksPerWrong
			result.Stats.Wrong++
		}
	}
	result.Stats.TotalQuestions = totalQuestions
	result.Stats.Skipped = totalQuestions - result.Stats.Correct - result.Stats.Wrong
	if result.Stats.Skipped < 0 {
		result.Stats.Skipped = 0
	}
	return result
}
