package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiDefaultModel = "text-embedding-004"

var geminiModelDimensions = map[string]int{
	"text-embedding-004": 768,
	"embedding-001":      768,
}

// GeminiProvider embeds text through the Gemini API. Document batches go
// through batchEmbedContents in one request; queries use the single
// embedContent endpoint with the retrieval task hint.
type GeminiProvider struct {
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
}

func NewGeminiProvider(apiKey string, model string) *GeminiProvider {
	if model == "" {
		model = geminiDefaultModel
	}
	dimensions, ok := geminiModelDimensions[model]
	if !ok {
		dimensions = 768
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batch := geminiBatchRequest{Requests: make([]geminiEmbedRequest, 0, len(texts))}
	for _, text := range texts {
		batch.Requests = append(batch.Requests, geminiEmbedRequest{
			Model:    "models/" + p.model,
			Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
			TaskType: TaskDocument,
		})
	}

	endpoint := fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:batchEmbedContents", p.model)
	body, err := p.post(ctx, endpoint, batch)
	if err != nil {
		return nil, err
	}

	var batchResp geminiBatchResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(batchResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d inputs", len(batchResp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range batchResp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (p *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	reqBody := geminiEmbedRequest{
		Model:    "models/" + p.model,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: TaskQuery,
	}

	endpoint := fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:embedContent", p.model)
	body, err := p.post(ctx, endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	var resp geminiSingleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	return resp.Embedding.Values, nil
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: send request: %w", err)
	}
	defer res.Body.Close()

	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("gemini: %w: %s", ErrRateLimited, string(resBytes))
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: status %d: %s", res.StatusCode, string(resBytes))
	}
	return resBytes, nil
}

func (p *GeminiProvider) Dimensions() int {
	return p.dimensions
}

func (p *GeminiProvider) ModelName() string {
	return p.model
}
