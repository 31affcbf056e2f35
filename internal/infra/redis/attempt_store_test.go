package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-service/internal/app"
)

func TestAttemptStoreSetsAndClearsLivenessKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAttemptStore(newClient(mr), time.Minute)
	attempt := app.NewAttempt("attempt-1", "u1", sampleQuiz(), app.SystemClock())

	store.Put(attempt)
	if !mr.Exists("attempt:live:attempt-1") {
		t.Fatalf("expected liveness key to be set")
	}
	if got, ok := store.Get("attempt-1"); !ok || got.ID() != "attempt-1" {
		t.Fatalf("expected attempt retrievable, ok=%v", ok)
	}

	store.Delete("attempt-1")
	if mr.Exists("attempt:live:attempt-1") {
		t.Fatalf("expected liveness key to be removed")
	}
	if _, ok := store.Get("attempt-1"); ok {
		t.Fatalf("expected attempt removed from local map")
	}
}
