package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func geminiReply(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"groundingMetadata": map[string]any{
					"groundingChunks": []any{
						map[string]any{"web": map[string]any{"uri": "https://www.weather.uz/tashkent", "title": "weather.uz"}},
						map[string]any{"web": map[string]any{"uri": "", "title": "empty"}},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestGeminiGenerate(t *testing.T) {
	var requestBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		requestBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(geminiReply(t, `{"location":"Tashkent"}`))
	}))
	defer srv.Close()

	g := NewGeminiGenerator(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL}, zaptest.NewLogger(t))
	gen, err := g.Generate(context.Background(), "weather in Tashkent")
	require.NoError(t, err)

	assert.Equal(t, `{"location":"Tashkent"}`, gen.Text)
	require.Len(t, gen.Sources, 1)
	assert.Equal(t, "https://www.weather.uz/tashkent", gen.Sources[0].URI)
	assert.Contains(t, requestBody, "weather in Tashkent")
	assert.Contains(t, requestBody, "googleSearch")
	assert.NotContains(t, requestBody, "responseMimeType")
}

func TestGeminiMissingKey(t *testing.T) {
	g := NewGeminiGenerator(GeminiConfig{}, zaptest.NewLogger(t))
	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGeminiBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	g := NewGeminiGenerator(GeminiConfig{
		APIKey:          "bad-key",
		BaseURL:         srv.URL,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, zaptest.NewLogger(t))

	for range 2 {
		_, err := g.Generate(context.Background(), "prompt")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrModelUnavailable)
	}
	before := hits.Load()

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the API")
}
