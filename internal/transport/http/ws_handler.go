package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/engine"
)

// WSHandler drives live quiz play over a websocket: one connection is one
// play-through. The server owns the countdown and elapsed-time measurement;
// the client only submits answer text.
type WSHandler struct {
	store    engine.Store
	upgrader websocket.Upgrader
}

func NewWSHandler(store engine.Store) *WSHandler {
	return &WSHandler{
		store: store,
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
	Answer string `json:"answer"`
}

type questionPayload struct {
	Index            int      `json:"index"`
	Total            int      `json:"total"`
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options,omitempty"`
	Points           int      `json:"points"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

type answerResult struct {
	Index            int     `json:"index"`
	QuestionID       string  `json:"questionId"`
	Correct          bool    `json:"correct"`
	PointsEarned     int     `json:"pointsEarned"`
	TotalScore       int     `json:"totalScore"`
	TimeTakenSeconds float64 `json:"timeTakenSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one session to completion.
// Query parameters: quizId, playerId, mode (solo|duel|training), duelId,
// limit (training question cap).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	playerID := r.URL.Query().Get("playerId")
	if quizID == "" || playerID == "" {
		http.Error(w, "missing quizId or playerId", http.StatusBadRequest)
		return
	}
	modeParam := r.URL.Query().Get("mode")
	duelID := r.URL.Query().Get("duelId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	training := modeParam == "training"
	mode := domain.ModeSolo
	if modeParam == "duel" && duelID != "" {
		mode = domain.ModeDuel
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 64)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
			if msg.Type == "completed" {
				// Unblocks the read loop so the handler can wind down.
				conn.Close()
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	var total int
	ctrl := engine.NewSessionController(h.store, engine.SessionOptions{
		QuizID:        quizID,
		PlayerID:      playerID,
		Mode:          mode,
		DuelID:        duelID,
		Training:      training,
		TrainingLimit: limit,
		Events: engine.SessionEvents{
			OnQuestion: func(index int, q domain.Question, timeLimitSeconds int) {
				push(outboundMessage[any]{Type: "question", Payload: questionPayload{
					Index:            index,
					Total:            total,
					Prompt:           q.Prompt,
					Options:          q.Options,
					Points:           q.Points,
					TimeLimitSeconds: timeLimitSeconds,
				}})
			},
			OnAnswered: func(index int, rec domain.AnswerRecord, totalScore int) {
				push(outboundMessage[any]{Type: "answerResult", Payload: answerResult{
					Index:            index,
					QuestionID:       rec.QuestionID,
					Correct:          rec.Correct,
					PointsEarned:     rec.PointsEarned,
					TotalScore:       totalScore,
					TimeTakenSeconds: rec.TimeTakenSeconds,
				}})
			},
			OnCompleted: func(summary domain.QuizSession) {
				push(outboundMessage[any]{Type: "completed", Payload: summary})
			},
		},
	})
	defer ctrl.Close()

	// The first question event fires inside Start, so the question count is
	// resolved ahead of it. Load failures surface as a retry-capable error.
	questions, err := h.store.LoadQuestions(r.Context(), quizID)
	if err == nil {
		total = len(questions)
		if training && limit > 0 && limit < total {
			total = limit
		}
		err = ctrl.Start(r.Context())
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		ctrl.Close()
		close(send)
		<-writerDone
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			// A submission landing after a timeout or completion is
			// silently dropped; the events stream already told the client
			// what happened.
			ctrl.Submit(r.Context(), payload.Answer)
		case "quit":
			// Abandoning first makes the session terminal, so no countdown
			// callback can reach push once the send channel is closed.
			ctrl.Close()
			close(send)
			<-writerDone
			return
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	// Same ordering as quit: the controller must be terminal before send
	// closes, or a late countdown callback could write to a closed channel.
	ctrl.Close()
	close(send)
	<-writerDone
}
