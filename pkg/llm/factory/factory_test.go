package factory

import (
	"testing"

	"biblo-chat-be/pkg/llm/huggingface"
	"biblo-chat-be/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
		check    func(t *testing.T, p interface{})
	}{
		{
			name:     "ollama defaults base url",
			settings: Settings{Provider: "ollama", Model: "llama3", Temperature: 0.3},
			check: func(t *testing.T, p interface{}) {
				op, ok := p.(*ollama.OllamaProvider)
				require.True(t, ok)
				assert.Equal(t, "http://localhost:11434", op.BaseURL)
				assert.Equal(t, "llama3", op.ModelName)
				assert.InDelta(t, 0.3, op.Temperature, 1e-9)
			},
		},
		{
			name:     "openai is an openai-compatible client",
			settings: Settings{Provider: "OpenAI", Model: "gpt-4-turbo", APIKey: "sk-test"},
			check: func(t *testing.T, p interface{}) {
				_, ok := p.(*huggingface.HuggingFaceProvider)
				assert.True(t, ok)
			},
		},
		{
			name:     "openai without key",
			settings: Settings{Provider: "openai"},
			wantErr:  true,
		},
		{
			name:     "huggingface",
			settings: Settings{Provider: "huggingface", Model: "meta-llama/Llama-3.1-8B-Instruct"},
			check: func(t *testing.T, p interface{}) {
				_, ok := p.(*huggingface.HuggingFaceProvider)
				assert.True(t, ok)
			},
		},
		{
			name:     "unknown",
			settings: Settings{Provider: "bard"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMProvider(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}
