package embedding

import (
	"context"
	"fmt"

	"ai-bookchat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Provider names accepted by the factory and configuration.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderJina   = "jina"
)

// CredentialSource looks up a caller's stored API key for a provider. An
// empty key with a nil error means the caller has none stored; errors are
// reserved for lookup failures.
type CredentialSource interface {
	ApiKeyFor(ctx context.Context, userID uuid.UUID, provider string) (string, error)
}

// ResolverConfig carries the process-level embedding defaults.
type ResolverConfig struct {
	Provider      string
	Model         string
	DefaultApiKey string
	OllamaBaseURL string
}

// Resolver builds the embedding provider for a request. Keys resolve in two
// steps: the caller's stored credential first, then the process default.
// Hosted providers with no key at either level cannot embed anything, so
// resolution fails with ErrMissingCredential rather than letting a doomed
// run start.
type Resolver struct {
	cfg   ResolverConfig
	creds CredentialSource
	log   logger.ILogger
}

func NewResolver(cfg ResolverConfig, creds CredentialSource, log logger.ILogger) *Resolver {
	return &Resolver{cfg: cfg, creds: creds, log: log}
}

// ProviderFor resolves the provider for one caller. Pass uuid.Nil to skip
// the per-caller lookup and use process defaults only.
func (r *Resolver) ProviderFor(ctx context.Context, userID uuid.UUID) (EmbeddingProvider, error) {
	if r.cfg.Provider == ProviderOllama {
		return NewOllamaProvider(r.cfg.OllamaBaseURL, r.cfg.Model), nil
	}

	apiKey := ""
	if r.creds != nil && userID != uuid.Nil {
		key, err := r.creds.ApiKeyFor(ctx, userID, r.cfg.Provider)
		if err != nil {
			if r.log != nil {
				r.log.Warn("EmbeddingResolver", "Credential lookup failed, using process default", map[string]interface{}{
					"user_id":  userID,
					"provider": r.cfg.Provider,
					"error":    err.Error(),
				})
			}
		} else {
			apiKey = key
		}
	}
	if apiKey == "" {
		apiKey = r.cfg.DefaultApiKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w for provider %s", ErrMissingCredential, r.cfg.Provider)
	}

	return NewProvider(r.cfg.Provider, apiKey, r.cfg.Model, r.cfg.OllamaBaseURL)
}

// NewProvider constructs a provider by name.
func NewProvider(name, apiKey, model, ollamaBaseURL string) (EmbeddingProvider, error) {
	switch name {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model), nil
	case ProviderJina:
		return NewJinaProvider(apiKey, model), nil
	case ProviderOllama:
		return NewOllamaProvider(ollamaBaseURL, model), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", name)
	}
}
