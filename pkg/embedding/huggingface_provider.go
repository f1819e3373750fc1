package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultHuggingFaceEmbeddingModel = "jhgan/ko-sroberta-multitask"
	huggingFaceInferenceURL          = "https://router.huggingface.co/hf-inference/models"
)

// HuggingFaceProvider calls the feature-extraction pipeline of the Inference API.
type HuggingFaceProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewHuggingFaceProvider(apiKey, model string) EmbeddingProvider {
	if model == "" {
		model = DefaultHuggingFaceEmbeddingModel
	}
	return &HuggingFaceProvider{
		apiKey:  apiKey,
		baseURL: huggingFaceInferenceURL,
		model:   model,
		client:  &http.Client{},
	}
}

type featureExtractionRequest struct {
	Inputs  string         `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	body, err := json.Marshal(featureExtractionRequest{
		Inputs:  text,
		Options: map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/pipeline/feature-extraction", strings.TrimRight(p.baseURL, "/"), p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface embedding error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	values, err := parseFeatureExtraction(bodyBytes)
	if err != nil {
		return nil, err
	}
	return newResponse(NormalizeVector(values)), nil
}

// parseFeatureExtraction accepts a sentence vector ([]float) or token vectors
// ([][]float, mean-pooled). Sentence-transformer models return the former.
func parseFeatureExtraction(body []byte) ([]float32, error) {
	var sentence []float32
	if err := json.Unmarshal(body, &sentence); err == nil && len(sentence) > 0 {
		return sentence, nil
	}

	var tokens [][]float32
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode feature-extraction response: %w", err)
	}
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, errors.New("empty embeddings from huggingface")
	}

	pooled := make([]float32, len(tokens[0]))
	for _, tok := range tokens {
		for i := range pooled {
			if i < len(tok) {
				pooled[i] += tok[i]
			}
		}
	}
	for i := range pooled {
		pooled[i] /= float32(len(tokens))
	}
	return pooled, nil
}
