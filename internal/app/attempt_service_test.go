package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func newTestService(t *testing.T, quizzes map[string]domain.Quiz) (*app.AttemptService, *memory.SubmissionRecorder) {
	t.Helper()
	loader := memory.NewStaticQuizLoader(quizzes)
	repo := memory.NewQuizRepository(loader, time.Minute)
	sink := memory.NewSubmissionRecorder()
	service := app.NewAttemptService(memory.NewAttemptStore(), repo, sink, app.SystemClock(), nil)
	return service, sink
}

func TestStartUnknownQuiz(t *testing.T) {
	service, _ := newTestService(t, map[string]domain.Quiz{})

	_, err := service.Start(context.Background(), "missing", "u1")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestStartRejectsEmptyQuiz(t *testing.T) {
	service, _ := newTestService(t, map[string]domain.Quiz{
		"empty": {ID: "empty", TimeLimit: 10},
	})

	_, err := service.Start(context.Background(), "empty", "u1")
	if !errors.Is(err, domain.ErrQuizInvalid) {
		t.Fatalf("expected ErrQuizInvalid for a quiz with no questions, got %v", err)
	}
}

func TestStartRejectsMultiCorrectChoices(t *testing.T) {
	quiz := biologyQuiz()
	quiz.Questions[0].Choices[1].Correct = true
	service, _ := newTestService(t, map[string]domain.Quiz{quiz.ID: quiz})

	_, err := service.Start(context.Background(), quiz.ID, "u1")
	if !errors.Is(err, domain.ErrQuizInvalid) {
		t.Fatalf("expected ErrQuizInvalid for multi-correct question, got %v", err)
	}
}

func TestStartEnforcesAvailabilityWindow(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	notYet := biologyQuiz()
	notYet.ID = "not-yet"
	notYet.StartDate = &future

	over := biologyQuiz()
	over.ID = "over"
	over.EndDate = &past

	service, _ := newTestService(t, map[string]domain.Quiz{
		"not-yet": notYet,
		"over":    over,
	})

	if _, err := service.Start(context.Background(), "not-yet", "u1"); !errors.Is(err, domain.ErrQuizNotOpen) {
		t.Fatalf("expected ErrQuizNotOpen, got %v", err)
	}
	if _, err := service.Start(context.Background(), "over", "u1"); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected ErrQuizClosed, got %v", err)
	}
}

func TestFullManualFlow(t *testing.T) {
	quiz := biologyQuiz()
	service, sink := newTestService(t, map[string]domain.Quiz{quiz.ID: quiz})

	snap, err := service.Start(context.Background(), quiz.ID, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Status != domain.AttemptInProgress || snap.QuestionCount != 5 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	for questionID, value := range allCorrectAnswers() {
		if _, err := service.Answer(snap.AttemptID, questionID, value); err != nil {
			t.Fatalf("answer %s: %v", questionID, err)
		}
	}

	result, err := service.Submit(snap.AttemptID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.TotalScore != 6 || result.MaxScore != 6 || result.Percent != 100 {
		t.Fatalf("expected 6/6 100%%, got %+v", result)
	}

	// Submit is idempotent at the service boundary too.
	again, err := service.Submit(snap.AttemptID)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if again.TotalScore != result.TotalScore {
		t.Fatalf("expected identical result on re-submit")
	}

	waitForCondition(t, func() bool { return len(sink.Submissions()) == 1 })
	sub := sink.Submissions()[0]
	if sub.QuizID != quiz.ID || sub.UserID != "u1" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if sub.Reason != domain.SubmitManual {
		t.Fatalf("expected manual reason, got %s", sub.Reason)
	}
	if sub.TotalScore != 6 || sub.MaxScore != 6 {
		t.Fatalf("expected 6/6 persisted, got %d/%d", sub.TotalScore, sub.MaxScore)
	}
	if len(sub.Answers) != 5 {
		t.Fatalf("expected all answers persisted, got %v", sub.Answers)
	}
	if sub.SubmittedAt.Before(sub.StartedAt) {
		t.Fatalf("submittedAt before startedAt: %+v", sub)
	}

	// Persisting exactly once.
	time.Sleep(20 * time.Millisecond)
	if got := len(sink.Submissions()); got != 1 {
		t.Fatalf("expected one submission, got %d", got)
	}
}

func TestResultBeforeSubmit(t *testing.T) {
	quiz := biologyQuiz()
	service, _ := newTestService(t, map[string]domain.Quiz{quiz.ID: quiz})

	snap, err := service.Start(context.Background(), quiz.ID, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Result(snap.AttemptID); !errors.Is(err, domain.ErrAttemptNotSubmitted) {
		t.Fatalf("expected ErrAttemptNotSubmitted, got %v", err)
	}
}

func TestAbandonDropsAttempt(t *testing.T) {
	quiz := biologyQuiz()
	service, sink := newTestService(t, map[string]domain.Quiz{quiz.ID: quiz})

	snap, err := service.Start(context.Background(), quiz.ID, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	service.Abandon(snap.AttemptID)

	if _, err := service.Submit(snap.AttemptID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound after abandon, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := len(sink.Submissions()); got != 0 {
		t.Fatalf("abandoned attempt must not persist, got %d submissions", got)
	}
}

func TestSubscribeStreamsMutations(t *testing.T) {
	quiz := biologyQuiz()
	service, _ := newTestService(t, map[string]domain.Quiz{quiz.ID: quiz})

	snap, err := service.Start(context.Background(), quiz.ID, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	updates, cancel, err := service.Subscribe(snap.AttemptID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-updates // initial snapshot

	if _, err := service.Answer(snap.AttemptID, "q1", "a1"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	// Countdown ticks share the stream, so read until the answer shows up.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case update := <-updates:
			if update.AnsweredCount == 1 && update.Selected == "a1" {
				return
			}
		case <-deadline:
			t.Fatalf("answer never reflected in snapshot stream")
		}
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
