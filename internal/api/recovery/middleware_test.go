package recovery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/rs/zerolog"
)

func TestMiddleware_PanicWritesEnvelope(t *testing.T) {
	var logs bytes.Buffer
	h := Middleware(zerolog.New(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/narrative/ending", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var env respond.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if env.Success || env.Error != "Internal Server Error" || env.Code != http.StatusInternalServerError {
		t.Errorf("unexpected envelope: %+v", env)
	}
	for _, want := range []string{`"panic":"boom"`, `"path":"/api/narrative/ending"`, `"component":"recovery"`} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %s: %s", want, logs.String())
		}
	}
}

func TestMiddleware_PanicAfterWriteKeepsResponse(t *testing.T) {
	h := Middleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 to stand, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected no envelope after the response started, got %q", rr.Body.String())
	}
}

func TestMiddleware_PassThrough(t *testing.T) {
	h := Middleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}
