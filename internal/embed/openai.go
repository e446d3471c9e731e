package embed

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/memmcp/memmcp/internal/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedder calls the OpenAI embeddings API, or any service that
// speaks the same wire format.
type OpenAIEmbedder struct {
	client    *http.Client
	provider  string
	baseURL   string
	apiKey    string
	model     string
	dims      int
	batchSize int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

type openaiEmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAI builds the OpenAI adapter.
func NewOpenAI(apiKey, baseURL, model string, dims, batchSize int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &OpenAIEmbedder{
		client:    newHTTPClient(),
		provider:  "openai",
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		dims:      dims,
		batchSize: batchSize,
	}
}

// NewLiteLLM builds an adapter for a LiteLLM proxy, which speaks the
// OpenAI embeddings wire format.
func NewLiteLLM(baseURL, apiKey, model string, dims, batchSize int) *OpenAIEmbedder {
	e := NewOpenAI(apiKey, baseURL, model, dims, batchSize)
	e.provider = "litellm"
	return e
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
		"provider", e.provider, "model", e.model, "count", len(results))
	return results, nil
}

// request performs one embeddings call, restoring input order by the
// index field of each response item.
func (e *OpenAIEmbedder) request(ctx context.Context, batch []string) ([][]float32, error) {
	req := openaiEmbedRequest{Model: e.model, Input: batch, EncodingFormat: "float"}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}

	var resp openaiEmbedResponse
	if err := postJSON(ctx, e.client, e.provider, e.baseURL+"/embeddings", headers, req, &resp); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(batch))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(batch) {
			return nil, errors.Newf(errors.KindProviderInvalid,
				"%s: embedding index %d out of range", e.provider, item.Index)
		}
		vecs[item.Index] = item.Embedding
	}
	if err := checkVectors(e.provider, vecs, len(batch), e.dims); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

func (e *OpenAIEmbedder) Name() string { return e.model }

func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
