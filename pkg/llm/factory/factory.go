package factory

import (
	"biblo-chat-be/pkg/llm"
	"biblo-chat-be/pkg/llm/huggingface"
	"biblo-chat-be/pkg/llm/ollama"
	"fmt"
	"strings"
)

type Settings struct {
	Provider    string // "ollama", "huggingface" or "openai"
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

func NewLLMProvider(s Settings) (llm.StreamingProvider, error) {
	switch strings.ToLower(s.Provider) {
	case "ollama":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, s.Model, s.Temperature), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(s.APIKey, s.BaseURL, s.Model, s.Temperature), nil
	case "openai":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = huggingface.OpenAIBaseURL
		}
		if s.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		return huggingface.NewHuggingFaceProvider(s.APIKey, baseURL, s.Model, s.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
