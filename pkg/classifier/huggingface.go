package classifier

import (
	"biblo-chat-be/pkg/store"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel        = "vanguard-huggingface/biblo-model"
	defaultInferenceURL = "https://router.huggingface.co/hf-inference/models"
)

// HuggingFaceClassifier calls the text-classification pipeline of the Inference API.
type HuggingFaceClassifier struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ Classifier = &HuggingFaceClassifier{}

func NewHuggingFaceClassifier(apiKey, baseURL, model string) *HuggingFaceClassifier {
	if baseURL == "" {
		baseURL = defaultInferenceURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &HuggingFaceClassifier{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type classificationRequest struct {
	Inputs  string         `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HuggingFaceClassifier) Classify(ctx context.Context, prompt string) (store.Domain, error) {
	if strings.TrimSpace(prompt) == "" {
		return 0, ErrEmptyPrompt
	}

	body, err := json.Marshal(classificationRequest{
		Inputs:  prompt,
		Options: map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("classification api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	scores, err := parseScores(bodyBytes)
	if err != nil {
		return 0, err
	}
	return pickDomain(scores)
}

// parseScores accepts both [[{label,score}...]] and [{label,score}...].
func parseScores(body []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("failed to decode classification response: %w", err)
	}
	return flat, nil
}

func pickDomain(scores []labelScore) (store.Domain, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("classification api returned no labels")
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	domain, ok := LabelDomains[best.Label]
	if !ok {
		return 0, fmt.Errorf("unknown classification label %q", best.Label)
	}
	return domain, nil
}
