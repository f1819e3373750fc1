package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"biblo-chat-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceClassifier_Classify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDomain store.Domain
		wantErr    bool
	}{
		{
			name:       "nested response picks highest score",
			status:     http.StatusOK,
			body:       `[[{"label":"LABEL_0","score":0.12},{"label":"LABEL_1","score":0.88}]]`,
			wantDomain: store.DomainLibrary,
		},
		{
			name:       "flat response",
			status:     http.StatusOK,
			body:       `[{"label":"LABEL_0","score":0.91},{"label":"LABEL_1","score":0.09}]`,
			wantDomain: store.DomainCompany,
		},
		{
			name:    "unknown label",
			status:  http.StatusOK,
			body:    `[[{"label":"LABEL_7","score":1}]]`,
			wantErr: true,
		},
		{
			name:    "empty labels",
			status:  http.StatusOK,
			body:    `[]`,
			wantErr: true,
		},
		{
			name:    "model loading",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":"Model is currently loading"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/"+DefaultModel, r.URL.Path)
				assert.Equal(t, "Bearer hf", r.Header.Get("Authorization"))

				var req classificationRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "도서관 운영시간?", req.Inputs)

				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewHuggingFaceClassifier("hf", srv.URL, "")
			domain, err := c.Classify(context.Background(), "도서관 운영시간?")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDomain, domain)
		})
	}
}

func TestHuggingFaceClassifier_EmptyPrompt(t *testing.T) {
	c := NewHuggingFaceClassifier("", "http://127.0.0.1:1", "")
	_, err := c.Classify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestKeywordClassifier_Classify(t *testing.T) {
	k := NewKeywordClassifier("syllabus")

	tests := []struct {
		prompt string
		want   store.Domain
	}{
		{"도서관 운영시간?", store.DomainLibrary},
		{"How do I BORROW a book?", store.DomainLibrary},
		{"Where is the syllabus?", store.DomainLibrary},
		{"Ten Softworks는 어떤 회사인가요?", store.DomainCompany},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			got, err := k.Classify(context.Background(), tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := k.Classify(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
