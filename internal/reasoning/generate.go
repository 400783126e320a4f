// internal/reasoning/generate.go
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finchat-engine/internal/common/config"
	"finchat-engine/internal/models"
)

var ErrGenerationFailed = errors.New("GENERATION_FAILED")

// IntentContext is what the service needs to author a resolution flow.
type IntentContext struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ModuleID        string          `json:"moduleId"`
	TrainingPhrases []string        `json:"trainingPhrases,omitempty"`
	Entities        []models.Entity `json:"entities,omitempty"`
	BusinessContext string          `json:"businessContext,omitempty"`
}

// GeneratedFlow is the service's (partial) authoring result; absent fields
// leave the intent's current values untouched.
type GeneratedFlow struct {
	TrainingPhrases []string               `json:"trainingPhrases,omitempty"`
	Entities        []models.Entity        `json:"entities,omitempty"`
	DataPipeline    []models.PipelineNode  `json:"dataPipeline,omitempty"`
	Enrichments     []models.Enrichment    `json:"enrichments,omitempty"`
	ResponseConfig  *models.ResponseConfig `json:"responseConfig,omitempty"`
	AIConfidence    float64                `json:"aiConfidence,omitempty"`
}

// Generate asks the reasoning service to author a resolution flow. The call
// is bounded by the configured timeout and retried with exponential backoff;
// a timeout or cancellation is reported, never left silently pending.
func (c *Client) Generate(ctx context.Context, intent IntentContext) (*GeneratedFlow, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(c.config.Timeout))
	defer cancel()

	body, _ := json.Marshal(intent)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrReasoningTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/flows/generate", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrReasoningTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrReasoningTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrGenerationFailed)
	}
	defer resp.Body.Close()

	var flow GeneratedFlow
	if err := json.NewDecoder(resp.Body).Decode(&flow); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrGenerationFailed, err)
	}

	c.logger.Info("resolution flow generated", map[string]interface{}{
		"intent":       intent.Name,
		"nodeCount":    len(flow.DataPipeline),
		"aiConfidence": flow.AIConfidence,
	})

	return &flow, nil
}
