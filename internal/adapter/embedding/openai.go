package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"virtualta/internal/domain"
)

// Config configures an OpenAI-compatible embeddings client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// Timeout bounds each request. Zero means no client-side bound.
	Timeout time.Duration

	// MaxRetries is passed to the client; 0 disables retries.
	MaxRetries int

	// RequestsPerSecond throttles requests; 0 means unlimited.
	RequestsPerSecond float64

	HTTPClient *http.Client
}

type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: embedding API key is empty", domain.ErrConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model is empty", domain.ErrConfiguration)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	e := &OpenAIEmbedder{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e, nil
}

// Embed sends texts in a single request. Callers are responsible for batching.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, domain.UpstreamFailure(ctx, "embeddings rate limit", err)
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, domain.UpstreamFailure(ctx, "embeddings request", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embeddings response has %d vectors for %d inputs", domain.ErrUpstream, len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		i := int(data.Index)
		if i < 0 || i >= len(embeddings) || embeddings[i] != nil {
			return nil, fmt.Errorf("%w: embeddings response has invalid index %d", domain.ErrUpstream, data.Index)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
