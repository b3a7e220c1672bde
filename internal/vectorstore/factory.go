package vectorstore

import (
	"fmt"
	"net/http"
	"time"
)

// Option configures a vector store implementation.
type Option func(*options)

type options struct {
	Collection         string
	EmbeddingDimension int
	APIKey             string
	HTTPClient         *http.Client
}

func defaultOptions() options {
	return options{
		Collection:         "conclave",
		EmbeddingDimension: 1536,
		HTTPClient:         &http.Client{Timeout: 30 * time.Second},
	}
}

// WithCollection sets the collection/index name.
func WithCollection(name string) Option {
	return func(o *options) { o.Collection = name }
}

// WithEmbeddingDimension sets the vector dimension.
func WithEmbeddingDimension(dim int) Option {
	return func(o *options) { o.EmbeddingDimension = dim }
}

// WithAPIKey sets the key sent to hosted providers.
func WithAPIKey(key string) Option {
	return func(o *options) { o.APIKey = key }
}

// WithHTTPClient overrides the HTTP client used by REST backends.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.HTTPClient = c }
}

// New creates a Store for the given provider. The memory provider ignores endpoint.
func New(provider string, endpoint string, opts ...Option) (Store, error) {
	switch provider {
	case "qdrant":
		return NewQdrant(endpoint, opts...)
	case "pinecone":
		return NewPinecone(endpoint, opts...)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown vector store provider: %s", provider)
	}
}
