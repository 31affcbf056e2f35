package app

import (
	"fmt"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Attempt is one test-taker's single pass through one quiz. All mutation goes
// through its methods, which serialize the two asynchronous triggers — user
// commands and the countdown tick — behind one mutex. The status transition
// in-progress -> submitted happens exactly once no matter which trigger wins.
type Attempt struct {
	id        string
	userID    string
	quiz      domain.Quiz
	startedAt time.Time
	clock     Clock

	// onSubmitted fires once, from its own goroutine, after the status
	// transition; the service uses it for fire-and-forget persistence.
	onSubmitted func(*Attempt, domain.ScoredResult)

	mu          sync.Mutex
	status      domain.AttemptStatus
	current     int
	answers     map[string]string
	remaining   int
	result      *domain.ScoredResult
	reason      domain.SubmitReason
	submittedAt time.Time
	stopped     bool
	done        chan struct{}
	subscribers map[chan Snapshot]struct{}
}

func newAttempt(id, userID string, quiz domain.Quiz, clock Clock, onSubmitted func(*Attempt, domain.ScoredResult)) *Attempt {
	return &Attempt{
		id:          id,
		userID:      userID,
		quiz:        quiz,
		startedAt:   clock.Now(),
		clock:       clock,
		onSubmitted: onSubmitted,
		status:      domain.AttemptInProgress,
		answers:     make(map[string]string),
		remaining:   quiz.TimeLimit * 60,
		done:        make(chan struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// NewAttempt is exported for infrastructure layers and tests that need to
// seed attempts outside the service flow. The countdown is not started.
func NewAttempt(id, userID string, quiz domain.Quiz, clock Clock) *Attempt {
	return newAttempt(id, userID, quiz, clock, nil)
}

// ID returns the attempt identifier.
func (a *Attempt) ID() string { return a.id }

// UserID returns the test-taker this attempt belongs to.
func (a *Attempt) UserID() string { return a.userID }

// Quiz returns the immutable quiz being taken.
func (a *Attempt) Quiz() domain.Quiz { return a.quiz }

// startTimer launches the countdown goroutine. It stops on its own once the
// attempt leaves in-progress, and is also torn down by stop().
func (a *Attempt) startTimer(interval time.Duration) {
	ticker := a.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if a.tick() {
					return
				}
			case <-a.done:
				return
			}
		}
	}()
}

// tick decrements the countdown by one second, clamped at zero, and forces a
// timeout submission the moment it reaches zero. Returns true when ticking
// should cease.
func (a *Attempt) tick() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != domain.AttemptInProgress {
		return true
	}
	if a.remaining > 0 {
		a.remaining--
	}
	if a.remaining > 0 {
		a.broadcastLocked()
		return false
	}
	a.submitLocked(domain.SubmitTimeout)
	return true
}

// RecordAnswer stores the value for a question, overwriting any prior value.
// The caller is responsible for offering only valid input per question type.
func (a *Attempt) RecordAnswer(questionID, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != domain.AttemptInProgress {
		return domain.ErrAttemptSubmitted
	}
	a.answers[questionID] = value
	a.broadcastLocked()
	return nil
}

// Next advances the question pointer, clamped at the last question.
func (a *Attempt) Next() {
	a.move(1)
}

// Previous moves the question pointer back, clamped at the first question.
func (a *Attempt) Previous() {
	a.move(-1)
}

func (a *Attempt) move(delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.current + delta
	if next < 0 || next >= len(a.quiz.Questions) {
		return // boundary no-op
	}
	a.current = next
	a.broadcastLocked()
}

// Submit finalizes the attempt. The first caller — manual click or timer
// expiry — performs the transition and scoring; any later caller gets the
// already-computed result with first=false.
func (a *Attempt) Submit(reason domain.SubmitReason) (domain.ScoredResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	first := a.status == domain.AttemptInProgress
	if first {
		a.submitLocked(reason)
	}
	return *a.result, first
}

// submitLocked holds the status CAS: it must only run while in-progress.
func (a *Attempt) submitLocked(reason domain.SubmitReason) {
	a.status = domain.AttemptSubmitted
	a.reason = reason
	a.submittedAt = a.clock.Now()
	result := Score(a.quiz, a.answers)
	a.result = &result
	a.stopLocked()
	a.broadcastLocked()
	if a.onSubmitted != nil {
		go a.onSubmitted(a, result)
	}
}

// Result returns the scored outcome once the attempt has been submitted.
func (a *Attempt) Result() (domain.ScoredResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.result == nil {
		return domain.ScoredResult{}, domain.ErrAttemptNotSubmitted
	}
	return *a.result, nil
}

// Submission builds the persistence payload for a graded attempt.
func (a *Attempt) Submission(id string, result domain.ScoredResult) domain.Submission {
	a.mu.Lock()
	defer a.mu.Unlock()

	answers := make(map[string]string, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}
	return domain.Submission{
		ID:          id,
		QuizID:      a.quiz.ID,
		UserID:      a.userID,
		Answers:     answers,
		TotalScore:  result.TotalScore,
		MaxScore:    result.MaxScore,
		Reason:      a.reason,
		StartedAt:   a.startedAt,
		SubmittedAt: a.submittedAt,
	}
}

// stop tears the countdown down without scoring; used when the client
// abandons the attempt.
func (a *Attempt) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Attempt) stopLocked() {
	if !a.stopped {
		a.stopped = true
		close(a.done)
	}
}

// subscribe registers a snapshot channel; the cancel function must be called
// to avoid leaks. The current snapshot is delivered immediately.
func (a *Attempt) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	initial := a.snapshotLocked()
	a.mu.Unlock()

	ch <- initial

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) broadcastLocked() {
	snap := a.snapshotLocked()
	for ch := range a.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so a slow reader never blocks a tick
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Snapshot returns the current read-only view of the attempt.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Attempt) snapshotLocked() Snapshot {
	question := a.quiz.Questions[a.current]
	return Snapshot{
		AttemptID:        a.id,
		QuizID:           a.quiz.ID,
		QuizTitle:        a.quiz.Title,
		Status:           a.status,
		CurrentIndex:     a.current,
		QuestionCount:    len(a.quiz.Questions),
		Question:         presentQuestion(question),
		Selected:         a.answers[question.ID],
		AnsweredCount:    len(a.answers),
		RemainingSeconds: a.remaining,
		RemainingDisplay: FormatRemaining(a.remaining),
	}
}

// FormatRemaining renders seconds as minutes:seconds with zero-padded
// seconds, e.g. "4:05".
func FormatRemaining(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ChoiceView is a choice stripped of its correctness flag.
type ChoiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the taker-facing question: no correct flags, no expected
// answer, no explanation until grading.
type QuestionView struct {
	ID      string              `json:"id"`
	Text    string              `json:"text"`
	Type    domain.QuestionType `json:"type"`
	Choices []ChoiceView        `json:"choices,omitempty"`
	Points  int                 `json:"points"`
}

// Snapshot is the read-only attempt view streamed to the client.
type Snapshot struct {
	AttemptID        string               `json:"attemptId"`
	QuizID           string               `json:"quizId"`
	QuizTitle        string               `json:"quizTitle"`
	Status           domain.AttemptStatus `json:"status"`
	CurrentIndex     int                  `json:"currentIndex"`
	QuestionCount    int                  `json:"questionCount"`
	Question         QuestionView         `json:"question"`
	Selected         string               `json:"selected,omitempty"`
	AnsweredCount    int                  `json:"answeredCount"`
	RemainingSeconds int                  `json:"remainingSeconds"`
	RemainingDisplay string               `json:"remainingDisplay"`
}

func presentQuestion(q domain.Question) QuestionView {
	view := QuestionView{
		ID:     q.ID,
		Text:   q.Text,
		Type:   q.Type,
		Points: q.EffectivePoints(),
	}
	for _, c := range q.Choices {
		view.Choices = append(view.Choices, ChoiceView{ID: c.ID, Text: c.Text})
	}
	return view
}
