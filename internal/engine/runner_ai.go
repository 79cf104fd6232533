package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// aiRetryAttempts bounds rate-limit retries per cell.
const aiRetryAttempts = 3

// runAI substitutes the row's values into the prompt, calls the
// completion endpoint, and shapes the response per the configured
// output format. Rate-limited calls retry with a fixed delay.
func (e *Engine) runAI(ctx context.Context, snap *Snapshot, row *core.Row, col *core.Column) (cellOutcome, error) {
	if e.chat == nil {
		return cellOutcome{}, fmt.Errorf("no completion endpoint configured")
	}
	cfg := col.Config

	prompt := snap.SubstituteRow(row, cfg.Prompt)
	req := chat.Request{
		Messages:    []chat.Message{{Role: "user", Content: prompt}},
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	attempts := 0
	text, err := retry.DoWithData(func() (string, error) {
		attempts++
		// Tokens accumulate into the returned text; per-token delivery
		// is only surfaced in the chat collaborator, not here.
		return e.chat.Stream(ctx, req, nil)
	},
		retry.Attempts(aiRetryAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(chat.IsRateLimited),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return cellOutcome{attempts: attempts}, err
	}

	return cellOutcome{value: shapeAIOutput(text, cfg.OutputFormat), attempts: attempts}, nil
}

// shapeAIOutput converts completion text into a cell value: "json"
// parses into a structured object (falling back to the raw text when
// the model did not return valid JSON), "list" normalizes one item per
// line, anything else stores the trimmed text.
func shapeAIOutput(text, outputFormat string) *core.CellValue {
	trimmed := strings.TrimSpace(text)
	switch outputFormat {
	case "json":
		var fields map[string]any
		cleaned := stripCodeFence(trimmed)
		if err := json.Unmarshal([]byte(cleaned), &fields); err == nil {
			return core.ObjectValue(fields)
		}
		return core.ScalarValue(trimmed)
	case "list":
		var items []string
		for _, line := range strings.Split(trimmed, "\n") {
			if item := stripListMarker(line); item != "" {
				items = append(items, item)
			}
		}
		return core.ScalarValue(strings.Join(items, "\n"))
	default:
		return core.ScalarValue(trimmed)
	}
}

// stripCodeFence unwraps a ```json ... ``` fenced block.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// stripListMarker removes a leading bullet or "1." style numbering.
func stripListMarker(line string) string {
	s := strings.TrimSpace(line)
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(s, marker) {
			return strings.TrimSpace(s[len(marker):])
		}
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
