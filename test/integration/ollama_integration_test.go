package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"ai-bookchat-be/pkg/embedding"
	"ai-bookchat-be/pkg/llm"
	ollamaLLM "ai-bookchat-be/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a local Ollama daemon with the configured models pulled.
// They are skipped automatically when the daemon is not reachable.

func ollamaBaseURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:11434"
}

func requireOllama(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(ollamaBaseURL() + "/api/tags")
	if err != nil {
		t.Skipf("Skipping: Ollama not reachable at %s", ollamaBaseURL())
	}
	resp.Body.Close()
}

func TestOllamaEmbedding(t *testing.T) {
	requireOllama(t)

	model := os.Getenv("OLLAMA_EMBED_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}
	provider := embedding.NewOllamaProvider(ollamaBaseURL(), model)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	vec, err := provider.EmbedQuery(ctx, "The ship left the harbor at first light.")
	require.NoError(t, err)
	require.NotEmpty(t, vec)

	vectors, err := provider.EmbedDocuments(ctx, []string{
		"The ship left the harbor at first light.",
		"The recipe calls for two cups of flour.",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, len(vectors[0]), len(vectors[1]), "dimensions should be stable")
}

func TestOllamaChat(t *testing.T) {
	requireOllama(t)

	model := os.Getenv("OLLAMA_LLM_MODEL")
	if model == "" {
		model = "gemma:2b"
	}
	provider := ollamaLLM.NewOllamaProvider(ollamaBaseURL(), model)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	reply, err := provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You answer questions about a book using only the provided excerpts."},
		{Role: "user", Content: "In one short sentence, what is an excerpt?"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	t.Logf("Reply: %s", reply)
}
