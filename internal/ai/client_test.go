package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applypilot/applypilot/internal/config"
)

func TestGenerateWithOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, false, req["stream"])
		assert.NotEmpty(t, req["prompt"])

		json.NewEncoder(w).Encode(map[string]string{"response": "  Dear team, hello.  "})
	}))
	defer srv.Close()

	c := NewClient(&config.Config{
		AIProvider:             "ollama",
		OllamaURL:              srv.URL,
		GenerateTimeoutSeconds: 5,
	})

	text, err := c.Generate(context.Background(), "write a letter")
	require.NoError(t, err)
	assert.Equal(t, "Dear team, hello.", text)
}

func TestGenerateOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(&config.Config{
		AIProvider:             "ollama",
		OllamaURL:              srv.URL,
		GenerateTimeoutSeconds: 5,
	})

	_, err := c.Generate(context.Background(), "write a letter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGenerateUnknownProvider(t *testing.T) {
	c := NewClient(&config.Config{AIProvider: "carrier-pigeon"})

	_, err := c.Generate(context.Background(), "write a letter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported AI provider")
}

func TestGenerateOpenAIRequiresKey(t *testing.T) {
	c := NewClient(&config.Config{AIProvider: "openai"})

	_, err := c.Generate(context.Background(), "write a letter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
