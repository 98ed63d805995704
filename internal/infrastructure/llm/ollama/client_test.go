package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/llm"
)

func TestCompleteSendsJSONFormatAndImage(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"ok\":true}  "}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llava", 0)
	got, err := client.Complete(context.Background(), llm.Request{
		System:    "sys",
		Prompt:    "describe",
		JSON:      true,
		MaxTokens: 100,
		Image:     &llm.Image{MediaType: "image/png", Data: []byte("png")},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("unexpected response %q", got)
	}
	if payload["format"] != "json" || payload["system"] != "sys" || payload["model"] != "llava" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	images, _ := payload["images"].([]any)
	if len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Fatalf("expected base64 image, got %v", payload["images"])
	}
	options, _ := payload["options"].(map[string]any)
	if options["num_predict"] != float64(100) {
		t.Fatalf("expected num_predict option, got %v", payload["options"])
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := New(server.URL, "gen", 0).Complete(context.Background(), llm.Request{Operation: "llm.classify", Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Fatalf("expected HTTPStatusError with 429, got %v", err)
	}
	if !llm.IsRateLimit(err) {
		t.Fatalf("expected rate limit classification")
	}
}
