package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Costbook/internal/config"
	"Costbook/internal/ports"
)

// Judge implements EquivalenceJudge backed by OpenAI-compatible chat APIs.
// It asks for a structured verdict at temperature 0 so repeated runs over
// the same pair stay stable.
type Judge struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.EquivalenceJudge = (*Judge)(nil)

// NewJudge builds a client from configuration.
func NewJudge(cfg config.JudgeConfig) *Judge {
	return &Judge{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Judge asks whether the two descriptions name the same priceable item.
func (j *Judge) Judge(ctx context.Context, candidate, existing string) (bool, string, error) {
	if j == nil {
		return false, "", fmt.Errorf("judge client is nil")
	}
	if j.apiKey == "" || j.endpoint == "" || j.model == "" {
		return false, "", fmt.Errorf("judge client misconfigured")
	}

	prompt := fmt.Sprintf(`Two line descriptions from historical bills of materials follow.
Decide whether they describe the same priceable item. Differences in
measures, power ratings, sections or materials make them different items.

Candidate: %q
Existing: %q

Answer JSON: {"equivalent": true/false, "reason": "..."}`, candidate, existing)

	body, err := json.Marshal(map[string]any{
		"model": j.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(j.systemPrompt)},
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0,
	})
	if err != nil {
		return false, "", fmt.Errorf("marshal judge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+j.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("judge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, "", fmt.Errorf("judge error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return false, "", fmt.Errorf("decode judge response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return false, "", fmt.Errorf("judge returned no choices")
	}

	var verdict struct {
		Equivalent bool   `json:"equivalent"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &verdict); err != nil {
		return false, "", fmt.Errorf("parse judge verdict: %w", err)
	}

	return verdict.Equivalent, verdict.Reason, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You compare technical line descriptions and decide equivalence."
	}
	return prompt
}
