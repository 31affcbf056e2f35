package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-attempt-service/internal/domain"
)

// SubmissionRow maps a finished attempt onto the submissions table.
type SubmissionRow struct {
	bun.BaseModel `bun:"table:submissions"`

	ID          string    `bun:"id,pk"`
	QuizID      string    `bun:"quiz_id,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	Answers     string    `bun:"answers,type:jsonb"`
	TotalScore  int       `bun:"total_score,notnull"`
	MaxScore    int       `bun:"max_score,notnull"`
	Reason      string    `bun:"reason,notnull"`
	StartedAt   time.Time `bun:"started_at,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

// SubmissionStore writes finished attempts to Postgres via bun. It is used
// as a fire-and-forget sink: the caller logs failures and moves on.
type SubmissionStore struct {
	db *bun.DB
}

func NewSubmissionStore(db *bun.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) Record(ctx context.Context, submission domain.Submission) error {
	answers, err := json.Marshal(submission.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	row := &SubmissionRow{
		ID:          submission.ID,
		QuizID:      submission.QuizID,
		UserID:      submission.UserID,
		Answers:     string(answers),
		TotalScore:  submission.TotalScore,
		MaxScore:    submission.MaxScore,
		Reason:      string(submission.Reason),
		StartedAt:   submission.StartedAt,
		SubmittedAt: submission.SubmittedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}
