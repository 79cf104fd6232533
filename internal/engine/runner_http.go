package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	retry "github.com/avast/retry-go/v4"

	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// httpRequestTimeout bounds one HTTP column call.
const httpRequestTimeout = 30 * time.Second

const httpRetryAttempts = 3

// httpClient is shared across runs; the per-request context carries the
// timeout.
var httpClient = &http.Client{}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("endpoint returned %d: %s", e.code, e.body)
}

func isHTTPRateLimited(err error) bool {
	var se *httpStatusError
	return errors.As(err, &se) && se.code == http.StatusTooManyRequests
}

// runHTTP substitutes the row's values into the URL, headers, and body,
// performs the request, and stores the response: JSON objects as
// structured values, HTML converted to markdown, anything else as text.
func (e *Engine) runHTTP(ctx context.Context, snap *Snapshot, row *core.Row, col *core.Column) (cellOutcome, error) {
	cfg := col.Config
	url := strings.TrimSpace(snap.SubstituteRow(row, cfg.URL))
	if url == "" {
		return cellOutcome{}, fmt.Errorf("no URL configured")
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	body := snap.SubstituteRow(row, cfg.Body)

	attempts := 0
	value, err := retry.DoWithData(func() (*core.CellValue, error) {
		attempts++
		return e.doHTTPRequest(ctx, snap, row, col, method, url, body)
	},
		retry.Attempts(httpRetryAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(isHTTPRateLimited),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("Request timed out (%ds)", int(httpRequestTimeout.Seconds()))
		}
		return cellOutcome{attempts: attempts}, err
	}
	return cellOutcome{value: value, attempts: attempts}, nil
}

func (e *Engine) doHTTPRequest(ctx context.Context, snap *Snapshot, row *core.Row, col *core.Column, method, url, body string) (*core.CellValue, error) {
	cfg := col.Config
	reqCtx, cancel := context.WithTimeout(ctx, httpRequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, snap.SubstituteRow(row, v))
	}
	switch cfg.AuthType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	case "basic":
		req.SetBasicAuth(cfg.AuthUser, cfg.AuthPass)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{code: resp.StatusCode, body: truncate(string(raw), 512)}
	}

	return shapeHTTPResponse(raw, resp.Header.Get("Content-Type")), nil
}

// shapeHTTPResponse converts a response body into a cell value.
func shapeHTTPResponse(raw []byte, contentType string) *core.CellValue {
	text := strings.TrimSpace(string(raw))
	switch {
	case strings.Contains(contentType, "application/json"):
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err == nil {
			return core.ObjectValue(fields)
		}
		return core.ScalarValue(text)
	case strings.Contains(contentType, "text/html"):
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return core.ScalarValue(text)
		}
		return core.ScalarValue(strings.TrimSpace(md))
	default:
		return core.ScalarValue(text)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
