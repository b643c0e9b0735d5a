package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewHTTPGeneratorValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPGenerator(Config{}, PathAugmented, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected validation error, got nil")
	}

	if _, err := NewHTTPGenerator(Config{BaseURL: "http://x", APIKey: "k"}, "streaming", zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected unknown path error, got nil")
	}
}

func TestInvokeSuccess(t *testing.T) {
	t.Parallel()

	var gotReq providerInvokeRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agents/augmented/invoke" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}

		resp := providerInvokeResponse{
			Output: "answer",
			IntermediateSteps: []Step{
				{
					Tool:      "search_docs",
					ToolInput: "ping",
					Result: &ToolResult{
						Documents: []Document{
							{PageContent: "doc body", Metadata: map[string]string{"title": "Doc"}},
						},
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	gen, err := NewHTTPGenerator(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, PathAugmented, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewHTTPGenerator: %v", err)
	}

	result, err := gen.Invoke(context.Background(), Input{
		Query: "ping",
		History: []Message{
			{Role: "user", Content: "earlier"},
			{Role: "assistant", Content: "reply"},
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected Authorization header: %s", gotAuth)
	}
	if gotReq.Input != "ping" || len(gotReq.History) != 2 {
		t.Fatalf("unexpected request: %#v", gotReq)
	}
	if result.Output != "answer" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
	if len(result.IntermediateSteps) != 1 || result.IntermediateSteps[0].Tool != "search_docs" {
		t.Fatalf("unexpected steps: %#v", result.IntermediateSteps)
	}
}

func TestInvokeRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(providerInvokeResponse{Output: "recovered"})
	}))
	defer srv.Close()

	gen, err := NewHTTPGenerator(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	}, PathPlain, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewHTTPGenerator: %v", err)
	}

	result, err := gen.Invoke(context.Background(), Input{Query: "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Output != "recovered" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestInvokeTimeoutIsGenerationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	gen, err := NewHTTPGenerator(Config{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		InvokeTimeout: 20 * time.Millisecond,
		BaseBackoff:   time.Millisecond,
	}, PathAugmented, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewHTTPGenerator: %v", err)
	}

	_, err = gen.Invoke(context.Background(), Input{Query: "slow"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T: %v", err, err)
	}
	if !genErr.Timeout {
		t.Fatalf("expected Timeout=true: %v", genErr)
	}
	if genErr.Path != PathAugmented {
		t.Fatalf("unexpected path: %s", genErr.Path)
	}
}
