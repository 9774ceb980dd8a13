package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ricardo-yos/rag-petmarket-reviews/internal/config"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/engine"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/llm"
)

type stubRetriever struct {
	passages []index.Passage
	err      error
}

func (s *stubRetriever) Retrieve(context.Context, string, float64, int) ([]index.Passage, error) {
	return s.passages, s.err
}

func newTestServer(t *testing.T, r engine.Retriever, client llm.Client) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.MaxAttempts = 1
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	eng := engine.New(cfg, config.DefaultPrompt(), r, client, nil, nil, nil)
	return New(eng, nil, nil)
}

func postAsk(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAskEndpoint_NewSession(t *testing.T) {
	r := &stubRetriever{passages: []index.Passage{{Text: "Great groomer", Score: 0.9, BusinessName: "Happy Paws"}}}
	srv := newTestServer(t, r, llm.NewMockClient("Happy Paws is well reviewed."))
	router := srv.Router()

	rec := postAsk(t, router, askRequest{Question: "Best groomer?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Happy Paws is well reviewed." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}

	// The returned id resumes the same conversation.
	rec = postAsk(t, router, askRequest{SessionID: resp.SessionID, Question: "And for cats?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("second ask status = %d", rec.Code)
	}
	var second askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if second.SessionID != resp.SessionID {
		t.Errorf("session id changed: %q -> %q", resp.SessionID, second.SessionID)
	}
}

func TestAskEndpoint_EmptyQuestion(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, llm.NewMockClient())
	rec := postAsk(t, srv.Router(), askRequest{Question: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAskEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		retriever  engine.Retriever
		clientErr  error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "retrieval unavailable",
			retriever:  &stubRetriever{err: fmt.Errorf("%w: offline", index.ErrRetrievalUnavailable)},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "retrieval_unavailable",
		},
		{
			name:       "generation failed",
			retriever:  &stubRetriever{passages: []index.Passage{{Text: "some review", Score: 0.9}}},
			clientErr:  errors.New("provider down"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "generation_failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockClient("unused")
			if tt.clientErr != nil {
				client.Fail(tt.clientErr)
			}
			srv := newTestServer(t, tt.retriever, client)

			rec := postAsk(t, srv.Router(), askRequest{Question: "Any good vets?"})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestAskEndpoint_DeclineFlowsThrough(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, llm.NewMockClient("unused"))
	rec := postAsk(t, srv.Router(), askRequest{Question: "What is the capital of France?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != config.DefaultDeclineAnswer {
		t.Errorf("answer = %q, want canonical decline", resp.Answer)
	}
}

func TestAskEndpoint_IdleSessionsEvicted(t *testing.T) {
	r := &stubRetriever{passages: []index.Passage{{Text: "fine shop", Score: 0.9}}}
	srv := newTestServer(t, r, llm.NewMockClient("Sure."))
	router := srv.Router()

	clock := time.Now()
	srv.now = func() time.Time { return clock }

	rec := postAsk(t, router, askRequest{Question: "Best groomer?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var first askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}

	// A second session inside the TTL leaves the first registered.
	clock = clock.Add(srv.sessionTTL / 2)
	postAsk(t, router, askRequest{Question: "Any vets?"})
	srv.mu.Lock()
	if len(srv.sessions) != 2 {
		srv.mu.Unlock()
		t.Fatalf("sessions = %d, want 2", len(srv.sessions))
	}
	srv.mu.Unlock()

	// Both go idle past the TTL; the next ask sweeps them out.
	clock = clock.Add(srv.sessionTTL + time.Minute)
	rec = postAsk(t, router, askRequest{Question: "Boarding nearby?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	srv.mu.Lock()
	_, stale := srv.sessions[first.SessionID]
	count := len(srv.sessions)
	srv.mu.Unlock()
	if stale {
		t.Error("idle session still registered")
	}
	if count != 1 {
		t.Errorf("sessions = %d, want 1", count)
	}

	// An evicted id is still usable; it just starts a fresh conversation.
	rec = postAsk(t, router, askRequest{SessionID: first.SessionID, Question: "Best groomer?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var again askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatal(err)
	}
	if again.SessionID != first.SessionID {
		t.Errorf("session id changed on reuse: %q -> %q", first.SessionID, again.SessionID)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubRetriever{}, llm.NewMockClient())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}
