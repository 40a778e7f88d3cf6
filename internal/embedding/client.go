// Package embedding converts text to vectors via OpenAI's embedding API,
// with input validation, batching limits, and retry with exponential backoff
// on transient failures.
package embedding

import (
	"context"
	"errors"
	"net"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/docuchat/docuchat/internal/domain"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector dimension for text-embedding-3-small. This
	// matches storage.DefaultVectorDimension.
	Dimension = 1536
)

// Client wraps the OpenAI client behind the transport interface the Embedder
// retries against.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI-backed embedding client. Missing credentials
// are a permanent error: retrying cannot fix them.
func NewClient(apiKey string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, domain.NewError(domain.KindPermanent, "embedding API key not configured")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for reuse by the generation
// collaborator.
func (c *Client) Client() *openai.Client {
	return c.client
}

// createEmbeddings issues one embedding request and classifies any failure
// into the transient/permanent taxonomy.
func (c *Client) createEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: Model,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = toFloat32(data.Embedding)
	}
	return embeddings, nil
}

// classifyError maps transport failures into the retry taxonomy: rate limits,
// 5xx and network timeouts are transient; auth and request errors are
// permanent.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return domain.WrapError(domain.KindTransient, "embedding service unavailable", err)
		default:
			return domain.WrapError(domain.KindPermanent, "embedding request rejected", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.WrapError(domain.KindTransient, "embedding service timeout", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.KindTransient, "embedding service timeout", err)
	}

	return domain.WrapError(domain.KindTransient, "embedding call failed", err)
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
