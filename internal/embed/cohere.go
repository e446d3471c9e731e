package embed

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/memmcp/memmcp/internal/errors"
)

const cohereEmbedURL = "https://api.cohere.ai/v1/embed"

// CohereEmbedder calls the Cohere embed API.
type CohereEmbedder struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	model     string
	inputType string
	dims      int
	batchSize int
}

var _ Embedder = (*CohereEmbedder)(nil)

type cohereEmbedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewCohere builds the Cohere adapter.
func NewCohere(apiKey, model string, dims, batchSize int) *CohereEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CohereEmbedder{
		client:    newHTTPClient(),
		endpoint:  cohereEmbedURL,
		apiKey:    apiKey,
		model:     model,
		inputType: "search_document",
		dims:      dims,
		batchSize: batchSize,
	}
}

func (e *CohereEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *CohereEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vecs, err := errors.RetryWithResult(ctx, providerRetry(), func() ([][]float32, error) {
			return e.request(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	slog.Debug("embeddings_generated",
		"provider", "cohere", "model", e.model, "count", len(results))
	return results, nil
}

func (e *CohereEmbedder) request(ctx context.Context, batch []string) ([][]float32, error) {
	req := cohereEmbedRequest{Model: e.model, Texts: batch, InputType: e.inputType}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}

	var resp cohereEmbedResponse
	if err := postJSON(ctx, e.client, "cohere", e.endpoint, headers, req, &resp); err != nil {
		return nil, err
	}
	if err := checkVectors("cohere", resp.Embeddings, len(batch), e.dims); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (e *CohereEmbedder) Dimensions() int { return e.dims }

func (e *CohereEmbedder) Name() string { return e.model }

func (e *CohereEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
