package embed

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/memmcp/memmcp/internal/errors"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceEmbedder calls the HuggingFace inference API through the
// feature-extraction pipeline.
type HuggingFaceEmbedder struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	dims      int
	batchSize int
}

var _ Embedder = (*HuggingFaceEmbedder)(nil)

type hfEmbedRequest struct {
	Inputs  []string  `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	// WaitForModel blocks instead of erroring while the hosted model
	// spins up.
	WaitForModel bool `json:"wait_for_model"`
}

// NewHuggingFace builds the HuggingFace adapter.
func NewHuggingFace(apiKey, baseURL, model string, dims, batchSize int) *HuggingFaceEmbedder {
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &HuggingFaceEmbedder{
		client:    newHTTPClient(),
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		dims:      dims,
		batchSize: batchSize,
	}
}

func (e *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HuggingFaceEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
		"provider", "huggingface", "model", e.model, "count", len(results))
	return results, nil
}

func (e *HuggingFaceEmbedder) request(ctx context.Context, batch []string) ([][]float32, error) {
	req := hfEmbedRequest{Inputs: batch, Options: hfOptions{WaitForModel: true}}
	url := e.baseURL + "/pipeline/feature-extraction/" + e.model
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}

	var vecs [][]float32
	if err := postJSON(ctx, e.client, "huggingface", url, headers, req, &vecs); err != nil {
		return nil, err
	}
	if err := checkVectors("huggingface", vecs, len(batch), e.dims); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *HuggingFaceEmbedder) Dimensions() int { return e.dims }

func (e *HuggingFaceEmbedder) Name() string { return e.model }

func (e *HuggingFaceEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
