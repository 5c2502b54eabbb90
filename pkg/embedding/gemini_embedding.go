package embedding

// Wire types for the Gemini embedContent family of endpoints.

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"task_type,omitempty"`
}

// geminiBatchRequest wraps per-text requests for batchEmbedContents. The
// response embeddings come back in request order.
type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

type geminiBatchResponse struct {
	Embeddings []geminiEmbedding `json:"embeddings"`
}

type geminiSingleResponse struct {
	Embedding geminiEmbedding `json:"embedding"`
}
