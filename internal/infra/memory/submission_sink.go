package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// SubmissionRecorder keeps submissions in memory; tests use it to observe
// the fire-and-forget persistence path.
type SubmissionRecorder struct {
	mu          sync.Mutex
	submissions []domain.Submission
}

func NewSubmissionRecorder() *SubmissionRecorder {
	return &SubmissionRecorder{}
}

func (r *SubmissionRecorder) Record(_ context.Context, submission domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, submission)
	return nil
}

// Submissions returns a copy of everything recorded so far.
func (r *SubmissionRecorder) Submissions() []domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Submission, len(r.submissions))
	copy(out, r.submissions)
	return out
}
