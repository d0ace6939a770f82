package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Costbook/internal/config"
)

func judgeServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}

		var req struct {
			Model          string            `json:"model"`
			ResponseFormat map[string]string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("response_format = %v, want json_object", req.ResponseFormat)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func newTestJudge(url string) *Judge {
	return NewJudge(config.JudgeConfig{
		Endpoint: url,
		Model:    "test-model",
		APIKey:   "key",
	})
}

func TestJudgeEquivalentVerdict(t *testing.T) {
	t.Parallel()

	server := judgeServer(t, `{"equivalent": true, "reason": "same item, wording differs"}`)
	defer server.Close()

	equivalent, reason, err := newTestJudge(server.URL).Judge(context.Background(), "Tubo PVC 100", "Tubazione in PVC diam. 100")
	if err != nil {
		t.Fatalf("Judge error: %v", err)
	}
	if !equivalent {
		t.Fatal("verdict = false, want true")
	}
	if reason != "same item, wording differs" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestJudgeNonEquivalentVerdict(t *testing.T) {
	t.Parallel()

	server := judgeServer(t, `{"equivalent": false, "reason": "different diameters"}`)
	defer server.Close()

	equivalent, _, err := newTestJudge(server.URL).Judge(context.Background(), "Tubo PVC 100", "Tubo PVC 125")
	if err != nil {
		t.Fatalf("Judge error: %v", err)
	}
	if equivalent {
		t.Fatal("verdict = true, want false")
	}
}

func TestJudgeMalformedVerdict(t *testing.T) {
	t.Parallel()

	server := judgeServer(t, "maybe?")
	defer server.Close()

	if _, _, err := newTestJudge(server.URL).Judge(context.Background(), "a", "b"); err == nil {
		t.Fatal("non-JSON verdict must be an error")
	}
}

func TestJudgeProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, _, err := newTestJudge(server.URL).Judge(context.Background(), "a", "b"); err == nil {
		t.Fatal("provider error status must be an error")
	}
}

func TestJudgeMisconfigured(t *testing.T) {
	t.Parallel()

	j := NewJudge(config.JudgeConfig{})
	if _, _, err := j.Judge(context.Background(), "a", "b"); err == nil {
		t.Fatal("missing credentials must be an error")
	}
}
