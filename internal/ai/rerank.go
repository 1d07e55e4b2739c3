package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// RerankConfig holds API settings for the cross-encoder rerank service.
type RerankConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Score returns the scalar relevance of a passage to a question via the
// /rerank endpoint (Jina/Cohere-compatible request shape).
func (c *Client) Score(ctx context.Context, cfg RerankConfig, question, passage string) (float64, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return 0, fmt.Errorf("rerank query is empty")
	}

	reqBody := map[string]interface{}{
		"model":     cfg.Model,
		"query":     question,
		"documents": []string{passage},
	}
	raw, err := c.postJSON(ctx, cfg.BaseURL, "/rerank", cfg.APIKey, reqBody)
	if err != nil {
		return 0, fmt.Errorf("rerank request failed: %w", err)
	}

	var parsed struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("parse rerank json failed: %w", err)
	}
	if len(parsed.Results) == 0 {
		return 0, fmt.Errorf("empty rerank results")
	}
	return parsed.Results[0].RelevanceScore, nil
}
