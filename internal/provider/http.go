package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProvider calls a hosted enrichment service. Each capability maps
// to a function endpoint under the service base URL.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider client. A nil logger discards logs.
func NewHTTPProvider(baseURL, apiKey string, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Enrich posts the input to the capability's function endpoint and
// decodes the structured result.
func (p *HTTPProvider) Enrich(ctx context.Context, kind Kind, input string) (map[string]any, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid provider kind %d", int(kind))
	}

	payload, err := json.Marshal(map[string]string{"input": input})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/functions/%s", p.baseURL, kind.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", kind, err)
	}

	p.logger.Debug("enrichment call",
		"function", kind.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: status %d: %s", kind, resp.StatusCode, truncate(string(body), 200))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", kind, err)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Provider = (*HTTPProvider)(nil)
