package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/internal/similarity"
	"go.uber.org/zap"
)

// HTTPEmbedder posts text to an embedding endpoint and reads back a vector.
// Request body is {"input": text}; the response is {"embedding": [...]}.
type HTTPEmbedder struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ similarity.Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewHTTPEmbedder(cfg config.EmbeddingCfg, logger *zap.Logger) *HTTPEmbedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &HTTPEmbedder{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Available reports whether an endpoint is configured.
func (e *HTTPEmbedder) Available() bool { return e != nil && e.url != "" }

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.Available() {
		return nil, similarity.ErrEmbedderUnavailable
	}
	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed request: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed response: empty vector")
	}
	return out.Embedding, nil
}
