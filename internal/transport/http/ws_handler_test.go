package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/infra/memory"
)

func playableStore() *memory.Store {
	store := memory.NewStore()
	store.SeedQuiz(domain.QuizConfig{ID: "geo", Title: "World Geography", TimeLimitSeconds: 30, IsPublic: true}, []domain.Question{
		{ID: "q1", Type: domain.QuestionFreeText, Prompt: "Capital of Peru?", Answer: "Lima", Points: 100, Position: 0},
		{ID: "q2", Type: domain.QuestionFreeText, Prompt: "Capital of Norway?", Answer: "Oslo", Points: 100, Position: 1},
	})
	return store
}

func dialPlay(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/play?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestWebSocketPlayThrough(t *testing.T) {
	store := playableStore()
	wsHandler := NewWSHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/play", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dialPlay(t, server, "quizId=geo&playerId=alice")
	defer conn.Close()

	msgType, payload := readNext(conn, t, "question")
	if payload["prompt"] != "Capital of Peru?" {
		t.Fatalf("unexpected first question: %v", payload)
	}
	if payload["total"].(float64) != 2 {
		t.Fatalf("expected total 2, got %v", payload["total"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"answer": "Lima"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	msgType, payload = readNext(conn, t, "answerResult")
	if payload["correct"] != true {
		t.Fatalf("expected correct answer, got %v", payload)
	}

	readNext(conn, t, "question")
	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"answer": "wrong"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readNext(conn, t, "answerResult")

	msgType, payload = readNext(conn, t, "completed")
	if msgType != "completed" {
		t.Fatalf("expected completed, got %s", msgType)
	}
	if payload["correctCount"].(float64) != 1 {
		t.Fatalf("expected 1 correct, got %v", payload["correctCount"])
	}
	if payload["completed"] != true {
		t.Fatalf("summary not marked completed: %v", payload)
	}
}

func TestWebSocketQuitAbandonsSession(t *testing.T) {
	store := playableStore()
	wsHandler := NewWSHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/play", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dialPlay(t, server, "quizId=geo&playerId=alice")
	defer conn.Close()

	readNext(conn, t, "question")
	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"answer": "Lima"}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readNext(conn, t, "answerResult")
	readNext(conn, t, "question")

	if err := conn.WriteJSON(map[string]any{"type": "quit"}); err != nil {
		t.Fatalf("write quit: %v", err)
	}

	// The handler winds down and closes the connection without a completed
	// message.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var discard map[string]any
	if err := conn.ReadJSON(&discard); err == nil {
		t.Fatalf("expected connection close after quit, got %v", discard)
	}

	// An abandoned play-through leaves no completion effects behind.
	ctx := context.Background()
	quiz, err := store.LoadQuiz(ctx, "geo")
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if quiz.TotalPlays != 0 {
		t.Fatalf("quit play counted in play stats: %+v", quiz)
	}
	progress, err := store.ReadPlayerProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if progress.MonthlyGames != 0 || progress.XP != 0 {
		t.Fatalf("quit play fed progression: %+v", progress)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	wsHandler := NewWSHandler(playableStore())

	mux := http.NewServeMux()
	mux.HandleFunc("/play", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dialPlay(t, server, "quizId=nope&playerId=alice")
	defer conn.Close()

	msgType, payload := readNext(conn, t, "error")
	if msgType != "error" || payload["message"] == "" {
		t.Fatalf("expected load error, got %s %v", msgType, payload)
	}
}

func TestWebSocketMissingParams(t *testing.T) {
	wsHandler := NewWSHandler(playableStore())

	mux := http.NewServeMux()
	mux.HandleFunc("/play", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/play?quizId=geo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
