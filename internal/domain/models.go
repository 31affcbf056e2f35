package domain

import (
	"strings"
	"time"
)

// QuestionType is the closed set of supported question kinds.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple-choice"
	TrueFalse      QuestionType = "true-false"
	FillBlank      QuestionType = "fill-blank"
)

// Choice represents a selectable answer for a choice-type question.
type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models one assessable item. Choices is populated for
// multiple-choice and true-false; Answer only for fill-blank.
type Question struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Type        QuestionType `json:"type"`
	Choices     []Choice     `json:"choices,omitempty"`
	Answer      string       `json:"answer,omitempty"`
	Explanation string       `json:"explanation,omitempty"`
	Points      int          `json:"points"` // defaults to 1 if zero
}

// EffectivePoints returns the question weight, defaulting to 1.
func (q Question) EffectivePoints() int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// CorrectChoice returns the single correct choice for a choice-type
// question, or false if none is marked.
func (q Question) CorrectChoice() (Choice, bool) {
	for _, c := range q.Choices {
		if c.Correct {
			return c, true
		}
	}
	return Choice{}, false
}

// Quiz is an ordered collection of questions plus scheduling metadata.
// It is immutable for the duration of an attempt.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TimeLimit   int        `json:"timeLimit"` // minutes
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Questions   []Question `json:"questions"`
}

// MaxScore sums question weights over the whole quiz, independent of
// which questions were answered.
func (q Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.EffectivePoints()
	}
	return total
}

// Validate enforces the invariants an attempt relies on: at least one
// question, a positive time limit, and exactly one correct choice per
// choice-type question. Multi-correct questions are rejected here rather
// than silently mis-scored.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrQuizInvalid
	}
	if q.TimeLimit <= 0 {
		return ErrQuizInvalid
	}
	for _, question := range q.Questions {
		switch question.Type {
		case MultipleChoice, TrueFalse:
			correct := 0
			for _, c := range question.Choices {
				if c.Correct {
					correct++
				}
			}
			if correct != 1 {
				return ErrQuizInvalid
			}
		case FillBlank:
			if strings.TrimSpace(question.Answer) == "" {
				return ErrQuizInvalid
			}
		default:
			return ErrQuizInvalid
		}
	}
	return nil
}

// OpenAt reports whether the quiz availability window covers the given time.
func (q Quiz) OpenAt(now time.Time) error {
	if q.StartDate != nil && now.Before(*q.StartDate) {
		return ErrQuizNotOpen
	}
	if q.EndDate != nil && now.After(*q.EndDate) {
		return ErrQuizClosed
	}
	return nil
}

// AttemptStatus is the one-way attempt state: in-progress, then submitted.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// SubmitReason distinguishes a user-initiated submit from a deadline expiry.
type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitTimeout SubmitReason = "timeout"
)

// QuestionResult is one graded entry of the review list, in quiz order.
// CorrectAnswer and Explanation are revealed only after grading.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	Answered      bool   `json:"answered"`
	UserAnswer    string `json:"userAnswer,omitempty"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
	Points        int    `json:"points"`
	Awarded       int    `json:"awarded"`
}

// ScoredResult is the derived outcome of grading a finished attempt.
type ScoredResult struct {
	QuizID     string           `json:"quizId"`
	TotalScore int              `json:"totalScore"`
	MaxScore   int              `json:"maxScore"`
	Percent    int              `json:"percent"`
	Questions  []QuestionResult `json:"questions"`
}

// Submission is the fire-and-forget payload handed to the persistence sink
// once an attempt is graded.
type Submission struct {
	ID          string            `json:"id"`
	QuizID      string            `json:"quizId"`
	UserID      string            `json:"userId"`
	Answers     map[string]string `json:"answers"`
	TotalScore  int               `json:"totalScore"`
	MaxScore    int               `json:"maxScore"`
	Reason      SubmitReason      `json:"reason"`
	StartedAt   time.Time         `json:"startedAt"`
	SubmittedAt time.Time         `json:"submittedAt"`
}
