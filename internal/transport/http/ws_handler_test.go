package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.SubmissionRecorder) {
	t.Helper()
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": sampleQuiz(),
	})
	quizRepo := memory.NewQuizRepository(loader, time.Minute)
	sink := memory.NewSubmissionRecorder()
	service := app.NewAttemptService(memory.NewAttemptStore(), quizRepo, sink, app.SystemClock(), nil)
	handler := NewWSHandler(service, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, sink
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAttemptFlowOverWebSocket(t *testing.T) {
	server, sink := newTestServer(t)
	conn := dial(t, server, "?quizId=quiz-1&userId=u1")

	// First message is the initial attempt state.
	msgType, payload := readNext(t, conn)
	if msgType != "state" {
		t.Fatalf("expected state, got %s", msgType)
	}
	var initial app.Snapshot
	mustDecode(t, payload, &initial)
	if initial.Status != domain.AttemptInProgress || initial.QuestionCount != 2 {
		t.Fatalf("unexpected initial state: %+v", initial)
	}
	if initial.RemainingSeconds > 5*60 || initial.RemainingSeconds < 5*60-5 {
		t.Fatalf("expected roughly the full time budget, got %d", initial.RemainingSeconds)
	}

	writeCommand(t, conn, "answer", map[string]any{"questionId": "q1", "value": "o2"})

	// Answer shows up in a state update.
	waitForState(t, conn, func(s app.Snapshot) bool {
		return s.AnsweredCount == 1
	})

	writeCommand(t, conn, "submit", nil)

	result := waitForResult(t, conn)
	if result.TotalScore != 1 || result.MaxScore != 2 {
		t.Fatalf("expected 1/2, got %d/%d", result.TotalScore, result.MaxScore)
	}
	if !result.Questions[0].Correct || result.Questions[1].Correct {
		t.Fatalf("unexpected review: %+v", result.Questions)
	}
	if result.Questions[1].CorrectAnswer != "four" {
		t.Fatalf("expected fill-blank reveal, got %+v", result.Questions[1])
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.Submissions()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	subs := sink.Submissions()
	if len(subs) != 1 || subs[0].Reason != domain.SubmitManual {
		t.Fatalf("expected one manual submission, got %+v", subs)
	}
}

func TestUnknownQuizReportsError(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "?quizId=nope&userId=u1")

	msgType, payload := readNext(t, conn)
	if msgType != "error" {
		t.Fatalf("expected error, got %s", msgType)
	}
	var errPayload struct {
		Message string `json:"message"`
	}
	mustDecode(t, payload, &errPayload)
	if errPayload.Message == "" {
		t.Fatalf("expected error message")
	}
}

func TestMissingQueryParamsRejected(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUnsupportedMessageType(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "?quizId=quiz-1&userId=u1")

	readNext(t, conn) // initial state
	writeCommand(t, conn, "bogus", nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgType, _ := readNext(t, conn)
		if msgType == "error" {
			return
		}
	}
	t.Fatalf("expected error for unsupported message type")
}

func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}

func mustDecode(t *testing.T, payload json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(payload, v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}

func writeCommand(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func waitForState(t *testing.T, conn *websocket.Conn, cond func(app.Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msgType, payload := readNext(t, conn)
		if msgType != "state" {
			continue
		}
		var snap app.Snapshot
		mustDecode(t, payload, &snap)
		if cond(snap) {
			return
		}
	}
	t.Fatalf("expected state condition never met")
}

func waitForResult(t *testing.T, conn *websocket.Conn) domain.ScoredResult {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msgType, payload := readNext(t, conn)
		if msgType != "result" {
			continue
		}
		var result domain.ScoredResult
		mustDecode(t, payload, &result)
		return result
	}
	t.Fatalf("result never arrived")
	return domain.ScoredResult{}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Title:     "Arithmetic",
		TimeLimit: 5,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Type: domain.MultipleChoice,
				Choices: []domain.Choice{
					{ID: "o1", Text: "3", Correct: false},
					{ID: "o2", Text: "4", Correct: true},
				},
				Points: 1,
			},
			{
				ID:     "q2",
				Text:   "Two plus two equals ________.",
				Type:   domain.FillBlank,
				Answer: "four",
				Points: 1,
			},
		},
	}
}
