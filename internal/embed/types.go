// Package embed adapts embedding providers behind a single Embedder
// interface. All adapters are plain HTTP JSON clients; an LRU cache
// wrapper avoids repeat round trips for identical texts.
package embed

import "context"

const (
	// DefaultBatchSize caps how many inputs go into one provider request.
	DefaultBatchSize = 100

	// DefaultCacheSize is the number of vectors the cache wrapper keeps.
	DefaultCacheSize = 2048
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// Name returns the model identifier.
	Name() string

	// Close releases resources.
	Close() error
}
