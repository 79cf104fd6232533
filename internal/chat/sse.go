package chat

import (
	"bufio"
	"io"
	"strings"
)

// readEventStream consumes "data: {...}" lines until "data: [DONE]" or
// EOF, invoking onToken per token and accumulating the full text.
func readEventStream(r io.Reader, onToken func(string)) (string, error) {
	var full strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		tok := extractToken([]byte(data))
		if tok == "" {
			continue
		}
		full.WriteString(tok)
		if onToken != nil {
			onToken(tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), err
	}
	return full.String(), nil
}
