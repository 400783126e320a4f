// Package reasoning is the HTTP client for the external reasoning service:
// it streams phase events for conversation turns and generates resolution
// flows for intents, with a canned local fallback when the service is down.
package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finchat-engine/internal/common/config"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

var (
	ErrReasoningFailed  = errors.New("REASONING_FAILED")
	ErrReasoningTimeout = errors.New("REASONING_TIMEOUT")
)

// TurnRequest asks the service to understand and resolve one user query.
// MatchedIntent carries a fast-path or cached routing hit so the service can
// skip its classification and detection phases.
type TurnRequest struct {
	ConversationID string                 `json:"conversationId"`
	Query          string                 `json:"query"`
	Category       models.RouteCategory   `json:"category,omitempty"`
	MatchedIntent  *models.IntentRef      `json:"matchedIntent,omitempty"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

type Client struct {
	config *config.ReasoningConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg *config.ReasoningConfig, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{
			// Stream lifetimes are bounded by the per-call context, not the
			// transport timeout.
			Timeout: 0,
		},
		logger: log.With(map[string]interface{}{"component": "reasoning-client"}),
	}
}

// Timeout returns the configured per-call ceiling.
func (c *Client) Timeout() time.Duration {
	return config.GetDuration(c.config.Timeout)
}

// Stream opens the phase-event stream for one turn. Events arrive on the
// returned channel in server order; the channel closes when the stream ends
// or ctx is cancelled. Callers own the context deadline (2 minutes by
// default) and must drain the channel.
func (c *Client) Stream(ctx context.Context, req TurnRequest) (<-chan models.PhaseEvent, error) {
	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/chat/stream", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReasoningFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrReasoningTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrReasoningFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrReasoningFailed, resp.StatusCode)
	}

	events := make(chan models.PhaseEvent)
	go c.readStream(ctx, resp, events)
	return events, nil
}

// readStream parses text/event-stream frames into phase events. Malformed
// frames are logged and skipped; the stream as a whole stays alive.
func (c *Client) readStream(ctx context.Context, resp *http.Response, events chan<- models.PhaseEvent) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data strings.Builder
	flush := func() {
		if data.Len() == 0 {
			return
		}
		payload := data.String()
		data.Reset()

		var event models.PhaseEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil || event.Type == "" {
			c.logger.Warn("dropping malformed stream frame", map[string]interface{}{
				"payload": truncate(payload, 200),
			})
			return
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		select {
		case events <- event:
		case <-ctx.Done():
		}
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(line[len("data:"):]))
		case strings.HasPrefix(line, ":"):
			// comment/keep-alive
		}
	}
	flush()

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("stream read error", map[string]interface{}{"error": err.Error()})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
