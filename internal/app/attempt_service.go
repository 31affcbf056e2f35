package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// AttemptRepository abstracts how live attempts are tracked (in-memory, Redis-marked, etc).
type AttemptRepository interface {
	Put(attempt *Attempt)
	Get(attemptID string) (*Attempt, bool)
	Delete(attemptID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SubmissionSink accepts finished attempts for storage. Calls are
// fire-and-forget: failures are logged, never surfaced to the taker.
type SubmissionSink interface {
	Record(ctx context.Context, submission domain.Submission) error
}

const persistTimeout = 5 * time.Second

// AttemptService contains the quiz-taking use cases.
type AttemptService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	sink     SubmissionSink
	clock    Clock
	log      *zap.Logger
	newID    func() string
}

func NewAttemptService(attempts AttemptRepository, quizzes QuizRepository, sink SubmissionSink, clock Clock, log *zap.Logger) *AttemptService {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		sink:     sink,
		clock:    clock,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Start loads and validates the quiz, creates a fresh attempt with the full
// time budget, and starts its countdown.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string) (Snapshot, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := quiz.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := quiz.OpenAt(s.clock.Now()); err != nil {
		return Snapshot{}, err
	}

	attempt := newAttempt(s.newID(), userID, quiz, s.clock, s.persist)
	s.attempts.Put(attempt)
	attempt.startTimer(time.Second)

	s.log.Info("attempt started",
		zap.String("attemptId", attempt.ID()),
		zap.String("quizId", quizID),
		zap.String("userId", userID),
	)
	return attempt.Snapshot(), nil
}

// Answer records a value for a question on an in-progress attempt.
func (s *AttemptService) Answer(attemptID, questionID, value string) (Snapshot, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return Snapshot{}, domain.ErrAttemptNotFound
	}
	if err := attempt.RecordAnswer(questionID, value); err != nil {
		return Snapshot{}, err
	}
	return attempt.Snapshot(), nil
}

// Next moves the question pointer forward; a boundary move is a no-op.
func (s *AttemptService) Next(attemptID string) (Snapshot, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return Snapshot{}, domain.ErrAttemptNotFound
	}
	attempt.Next()
	return attempt.Snapshot(), nil
}

// Previous moves the question pointer back; a boundary move is a no-op.
func (s *AttemptService) Previous(attemptID string) (Snapshot, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return Snapshot{}, domain.ErrAttemptNotFound
	}
	attempt.Previous()
	return attempt.Snapshot(), nil
}

// Submit finalizes the attempt manually. Submitting an already-submitted
// attempt returns the existing result, it is not an error.
func (s *AttemptService) Submit(attemptID string) (domain.ScoredResult, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.ScoredResult{}, domain.ErrAttemptNotFound
	}
	result, _ := attempt.Submit(domain.SubmitManual)
	return result, nil
}

// Result returns the review payload for a submitted attempt.
func (s *AttemptService) Result(attemptID string) (domain.ScoredResult, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return domain.ScoredResult{}, domain.ErrAttemptNotFound
	}
	return attempt.Result()
}

// Subscribe returns a channel of attempt snapshots. The caller must invoke
// the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(attemptID string) (<-chan Snapshot, func(), error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, nil, domain.ErrAttemptNotFound
	}
	ch, cancel := attempt.subscribe()
	return ch, cancel, nil
}

// Abandon tears the attempt down without scoring: the countdown stops and
// the attempt is dropped. There is no resume.
func (s *AttemptService) Abandon(attemptID string) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return
	}
	attempt.stop()
	s.attempts.Delete(attemptID)
	s.log.Info("attempt abandoned", zap.String("attemptId", attemptID))
}

// persist runs once per submitted attempt, detached from the caller: the
// score is already computed locally, so a slow or failing sink must never
// block the results view.
func (s *AttemptService) persist(attempt *Attempt, result domain.ScoredResult) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	submission := attempt.Submission(s.newID(), result)
	if err := s.sink.Record(ctx, submission); err != nil {
		s.log.Error("submission persist failed",
			zap.String("attemptId", attempt.ID()),
			zap.String("quizId", submission.QuizID),
			zap.Error(err),
		)
		return
	}
	s.log.Info("submission persisted",
		zap.String("attemptId", attempt.ID()),
		zap.String("quizId", submission.QuizID),
		zap.Int("totalScore", submission.TotalScore),
		zap.Int("maxScore", submission.MaxScore),
		zap.String("reason", string(submission.Reason)),
	)
}
