package embed

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/memmcp/memmcp/internal/errors"
)

const (
	defaultOllamaHost = "http://localhost:11434"

	// ollamaConcurrency bounds the fan-out for batch embedding; Ollama
	// has no batch endpoint.
	ollamaConcurrency = 4
)

// OllamaEmbedder calls a local Ollama server. The embeddings endpoint
// takes one prompt per request, so EmbedBatch fans out with bounded
// concurrency while preserving input order.
type OllamaEmbedder struct {
	client *http.Client
	host   string
	model  string
	dims   int
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllama builds the Ollama adapter.
func NewOllama(host, model string, dims int) *OllamaEmbedder {
	if host == "" {
		host = defaultOllamaHost
	}
	return &OllamaEmbedder{
		client: newHTTPClient(),
		host:   strings.TrimRight(host, "/"),
		model:  model,
		dims:   dims,
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return errors.RetryWithResult(ctx, providerRetry(), func() ([]float32, error) {
		return e.request(ctx, text)
	})
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ollamaConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gctx, text)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *OllamaEmbedder) request(ctx context.Context, text string) ([]float32, error) {
	req := ollamaEmbedRequest{Model: e.model, Prompt: text}

	var resp ollamaEmbedResponse
	if err := postJSON(ctx, e.client, "ollama", e.host+"/api/embeddings", nil, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) != e.dims {
		return nil, errors.Newf(errors.KindProviderInvalid,
			"ollama: embedding has dimension %d, want %d", len(resp.Embedding), e.dims)
	}
	return resp.Embedding, nil
}

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) Name() string { return e.model }

func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
