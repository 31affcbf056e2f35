package app

import (
	"math"
	"strings"

	"quiz-attempt-service/internal/domain"
)

// Score grades a frozen answer map against the quiz and returns the review
// list in quiz question order. It is a pure function: unanswered questions
// score zero, they never fail grading.
func Score(quiz domain.Quiz, answers map[string]string) domain.ScoredResult {
	results := make([]domain.QuestionResult, 0, len(quiz.Questions))
	total := 0

	for _, question := range quiz.Questions {
		raw, answered := answers[question.ID]
		correct := answered && answerCorrect(question, raw)

		awarded := 0
		if correct {
			awarded = question.EffectivePoints()
			total += awarded
		}

		results = append(results, domain.QuestionResult{
			QuestionID:    question.ID,
			Correct:       correct,
			Answered:      answered,
			UserAnswer:    raw,
			CorrectAnswer: correctAnswerText(question),
			Explanation:   question.Explanation,
			Points:        question.EffectivePoints(),
			Awarded:       awarded,
		})
	}

	maxScore := quiz.MaxScore()
	percent := 0
	if maxScore > 0 {
		percent = int(math.Round(float64(total) / float64(maxScore) * 100))
	}

	return domain.ScoredResult{
		QuizID:     quiz.ID,
		TotalScore: total,
		MaxScore:   maxScore,
		Percent:    percent,
		Questions:  results,
	}
}

func answerCorrect(question domain.Question, raw string) bool {
	switch question.Type {
	case domain.MultipleChoice, domain.TrueFalse:
		// Choice ids are opaque tokens; exact match only.
		choice, ok := question.CorrectChoice()
		return ok && raw == choice.ID
	case domain.FillBlank:
		got := normalizeAnswer(raw)
		return got != "" && got == normalizeAnswer(question.Answer)
	default:
		return false
	}
}

func correctAnswerText(question domain.Question) string {
	if question.Type == domain.FillBlank {
		return question.Answer
	}
	if choice, ok := question.CorrectChoice(); ok {
		return choice.Text
	}
	return ""
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
