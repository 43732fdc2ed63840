package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
)

func TestExtractScores(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"players\":[]}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: time.Second}, nil)
	text, err := c.ExtractScores(context.Background(), llm.ExtractRequest{Image: []byte{0xFF, 0xD8, 0xFF}, MediaType: "image/jpeg"})
	if err != nil {
		t.Fatalf("ExtractScores: %v", err)
	}
	if text != `{"players":[]}` {
		t.Errorf("text = %q", text)
	}
	if req.Model != "gpt-4o" || len(req.Messages) != 3 {
		t.Fatalf("unexpected request: model=%s messages=%d", req.Model, len(req.Messages))
	}
	if !strings.Contains(string(req.Messages[1].Content), `"url":"data:image/jpeg;base64,/9j/"`) {
		t.Errorf("user message lacks the image data URL: %s", req.Messages[1].Content)
	}
	if !strings.Contains(string(req.Messages[2].Content), "scoringBreakdown") {
		t.Errorf("schema message missing: %s", req.Messages[2].Content)
	}
}

func TestExtractScores_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil).ExtractScores(context.Background(), llm.ExtractRequest{})
		if !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("err = %v, want configuration error", err)
		}
	})

	t.Run("model not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"message":"The model gpt-x does not exist","code":"model_not_found"}}`)
		}))
		defer srv.Close()

		_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).ExtractScores(context.Background(), llm.ExtractRequest{})
		if !errors.Is(err, common.ErrServiceUnavailable) {
			t.Errorf("err = %v, want service unavailable", err)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).ExtractScores(context.Background(), llm.ExtractRequest{})
		if !errors.Is(err, common.ErrExternalService) {
			t.Errorf("err = %v, want external service error", err)
		}
	})
}
