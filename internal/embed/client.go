package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/memmcp/memmcp/internal/errors"
)

const requestTimeout = 60 * time.Second

// newHTTPClient builds the pooled client shared by the HTTP adapters.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// providerRetry is the backoff applied to transient provider failures:
// two retries with exponential wait between 2s and 10s.
func providerRetry() errors.RetryConfig {
	return errors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// postJSON sends in to url and decodes the JSON response into out.
// Transport errors, 429 and 5xx map to ProviderUnavailable (retryable);
// auth and request errors map to ProviderInvalid.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(errors.KindInternal, err, "%s: marshal request", provider)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(errors.KindInternal, err, "%s: build request", provider)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.KindProviderUnavailable, err, "%s: request failed", provider)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(provider, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(errors.KindProviderInvalid, err, "%s: decode response", provider)
	}
	return nil
}

// classifyStatus maps a non-200 HTTP status to a provider error kind.
func classifyStatus(provider string, status int, body string) error {
	kind := errors.KindProviderInvalid
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = errors.KindProviderUnavailable
	}
	return errors.Newf(kind, "%s: status %d: %s", provider, status, strings.TrimSpace(body))
}

// checkVectors verifies count and per-vector dimension of a provider
// response.
func checkVectors(provider string, vecs [][]float32, wantCount, wantDims int) error {
	if len(vecs) != wantCount {
		return errors.Newf(errors.KindProviderInvalid,
			"%s: got %d embeddings for %d inputs", provider, len(vecs), wantCount)
	}
	for i, v := range vecs {
		if len(v) != wantDims {
			return errors.Newf(errors.KindProviderInvalid,
				"%s: embedding %d has dimension %d, want %d", provider, i, len(v), wantDims)
		}
	}
	return nil
}
