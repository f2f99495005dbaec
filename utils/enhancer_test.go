package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEnhancer(t *testing.T) {
	req := EnhanceRequest{Subject: "Om städning", Body: "Hej Anna"}

	tests := []struct {
		name    string
		status  int
		content string
		want    EnhanceResult
		wantErr bool
	}{
		{
			name:    "rewritten subject and body",
			status:  http.StatusOK,
			content: `{"subject":"Angående städning","body":"Hej Anna, hoppas allt är bra"}`,
			want:    EnhanceResult{Subject: "Angående städning", Body: "Hej Anna, hoppas allt är bra"},
		},
		{
			name:    "empty fields keep the original",
			status:  http.StatusOK,
			content: `{"subject":"","body":"Ny text"}`,
			want:    EnhanceResult{Subject: "Om städning", Body: "Ny text"},
		},
		{
			name:    "content that is not json",
			status:  http.StatusOK,
			content: "Här är din text",
			wantErr: true,
		},
		{
			name:    "upstream error",
			status:  http.StatusTooManyRequests,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.content)
			enhancer := NewOpenAIEnhancer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})

			got, err := enhancer.Enhance(context.Background(), req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEnhancerWithoutKey(t *testing.T) {
	enhancer := NewEnhancer(OpenAIConfig{APIKey: " "})
	_, err := enhancer.Enhance(context.Background(), EnhanceRequest{})
	assert.ErrorIs(t, err, ErrEnhancementDisabled)
}

func TestBuildEnhancePromptDefaults(t *testing.T) {
	prompt := buildEnhancePrompt(EnhanceRequest{Subject: "Ämne", Body: "Text"})
	assert.Contains(t, prompt, "- Företag: Städfirma")
	assert.Contains(t, prompt, "- Tjänst: städtjänster")
	assert.Contains(t, prompt, "Original ämnesrad: Ämne")
}
