package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// WSHandler runs one quiz attempt per websocket connection. The client sends
// answer/navigation/submit commands; the server streams attempt snapshots
// (including every countdown tick) and the scored result after submission.
type WSHandler struct {
	service  *app.AttemptService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives the attempt until the client
// disconnects. Disconnecting before submission abandons the attempt; there
// is no resume.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	started, err := h.service.Start(r.Context(), quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	attemptID := started.AttemptID

	updates, cancel, err := h.service.Subscribe(attemptID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Abandon(attemptID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	// Forward snapshots; the submitted snapshot additionally carries the
	// scored review payload, exactly once.
	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				if !h.forward(send, closeSignals, outboundMessage[any]{Type: "state", Payload: snapshot}) {
					return
				}
				if snapshot.Status == domain.AttemptSubmitted && !resultSent {
					resultSent = true
					if result, err := h.service.Result(attemptID); err == nil {
						if !h.forward(send, closeSignals, outboundMessage[any]{Type: "result", Payload: result}) {
							return
						}
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg := h.handle(attemptID, inbound); msg != nil {
			select {
			case send <- *msg:
			default:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle executes one inbound command. It returns an error message to send
// back, or nil when the outcome is already covered by the snapshot stream.
func (h *WSHandler) handle(attemptID string, inbound inboundMessage) *outboundMessage[any] {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
			return errorMessage("invalid answer payload")
		}
		if _, err := h.service.Answer(attemptID, payload.QuestionID, payload.Value); err != nil {
			return errorMessage(err.Error())
		}
		return nil
	case "next":
		if _, err := h.service.Next(attemptID); err != nil {
			return errorMessage(err.Error())
		}
		return nil
	case "prev":
		if _, err := h.service.Previous(attemptID); err != nil {
			return errorMessage(err.Error())
		}
		return nil
	case "submit":
		if _, err := h.service.Submit(attemptID); err != nil {
			return errorMessage(err.Error())
		}
		return nil
	default:
		return errorMessage("unsupported message type")
	}
}

func (h *WSHandler) forward(send chan outboundMessage[any], closeSignals chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-closeSignals:
		return false
	}
}

func errorMessage(message string) *outboundMessage[any] {
	return &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
