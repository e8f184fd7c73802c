package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"server/internal/providers"
)

func newQueueServer(t *testing.T, statusSequence []string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Key fal-key" {
			t.Errorf("missing authorization header")
		}
		switch r.URL.Path {
		case "/fal-ai/flux/dev":
			json.NewEncoder(w).Encode(submitResponse{
				RequestID:   "req-1",
				StatusURL:   server.URL + "/status",
				ResponseURL: server.URL + "/result",
			})
		case "/status":
			i := int(polls.Add(1)) - 1
			if i >= len(statusSequence) {
				i = len(statusSequence) - 1
			}
			json.NewEncoder(w).Encode(statusResponse{Status: statusSequence[i]})
		case "/result":
			json.NewEncoder(w).Encode(map[string]any{
				"images": []map[string]string{{"url": "https://cdn.fal.example/out.png"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	return server, &polls
}

func TestGenerateFromTextPollsUntilCompleted(t *testing.T) {
	server, polls := newQueueServer(t, []string{"IN_QUEUE", "IN_PROGRESS", "COMPLETED"})
	defer server.Close()

	client, err := NewClient(Options{
		APIKey:       "fal-key",
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	images, err := client.GenerateFromText(context.Background(), "prompt", providers.Sizing{Width: 1280, Height: 720})
	if err != nil {
		t.Fatalf("GenerateFromText: %v", err)
	}
	if len(images) != 1 || images[0].URL != "https://cdn.fal.example/out.png" {
		t.Fatalf("unexpected images %+v", images)
	}
	if polls.Load() < 3 {
		t.Fatalf("polls = %d, want at least 3", polls.Load())
	}
}

func TestUpstreamFailureSurfacesAsGenerationError(t *testing.T) {
	server, _ := newQueueServer(t, []string{"FAILED"})
	defer server.Close()

	client, err := NewClient(Options{
		APIKey:       "fal-key",
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GenerateFromText(context.Background(), "prompt", providers.Sizing{})
	var genErr *providers.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Provider != "fal" {
		t.Fatalf("provider = %q", genErr.Provider)
	}
}

func TestReferencesAreUnsupported(t *testing.T) {
	client, err := NewClient(Options{APIKey: "fal-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GenerateFromTextAndReferences(context.Background(), "prompt", [][]byte{[]byte("ref")}, providers.Sizing{})
	if !errors.Is(err, providers.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	var genErr *providers.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError wrapper, got %v", err)
	}
}

func TestCancelledContextStopsPolling(t *testing.T) {
	server, _ := newQueueServer(t, []string{"IN_QUEUE"})
	defer server.Close()

	client, err := NewClient(Options{
		APIKey:       "fal-key",
		BaseURL:      server.URL,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = client.GenerateFromText(ctx, "prompt", providers.Sizing{})
	var genErr *providers.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}
