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

const jinaDefaultModel = "jina-embeddings-v2-base-en"

var jinaModelDimensions = map[string]int{
	"jina-embeddings-v2-base-en": 768,
	"jina-embeddings-v3":         1024,
}

// JinaProvider embeds text through the Jina AI API. The wire format follows
// the OpenAI convention, so batches ride in one request and results are
// reassembled by index.
type JinaProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

func NewJinaProvider(apiKey string, model string) *JinaProvider {
	if model == "" {
		model = jinaDefaultModel
	}
	dimensions, ok := jinaModelDimensions[model]
	if !ok {
		dimensions = 768
	}
	return &JinaProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.jina.ai/v1/embeddings",
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type jinaEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type jinaEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *JinaProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := jinaEmbeddingRequest{Model: p.model, Input: texts}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("jina: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("jina: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina: send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jina: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("jina: %w: %s", ErrRateLimited, string(bodyBytes))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina: status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var jinaResp jinaEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, fmt.Errorf("jina: decode response: %w", err)
	}
	if jinaResp.Error != nil {
		return nil, fmt.Errorf("jina: api error: %s", jinaResp.Error.Message)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range jinaResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("jina: response index %d out of range for %d inputs", data.Index, len(texts))
		}
		vectors[data.Index] = data.Embedding
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("jina: response missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

func (p *JinaProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *JinaProvider) Dimensions() int {
	return p.dimensions
}

func (p *JinaProvider) ModelName() string {
	return p.model
}
