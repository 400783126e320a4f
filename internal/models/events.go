// internal/models/events.go
package models

import (
	"encoding/json"
	"time"
)

// EventType enumerates the phase-event protocol (server -> orchestrator).
type EventType string

const (
	EventConnected          EventType = "connected"
	EventRouteClassified    EventType = "route_classified"
	EventToolsFiltered      EventType = "tools_filtered"
	EventIntentDetected     EventType = "intent_detected"
	EventEntitiesExtracted  EventType = "entities_extracted"
	EventPipelinePlanned    EventType = "pipeline_planned"
	EventEnrichmentsPlanned EventType = "enrichments_planned"
	EventToolResult         EventType = "tool_result"
	EventMCQPrompt          EventType = "mcq_prompt"
	EventResponseChunk      EventType = "response_chunk"
	EventComplete           EventType = "complete"
	EventError              EventType = "error"
)

// PhaseEvent is one frame of the directional phase-event stream. Events for
// a turn must be applied in arrival order.
type PhaseEvent struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the event payload into v.
func (e *PhaseEvent) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// --- Typed payloads, minimum fields per event type ---

type ToolsFilteredData struct {
	Category      RouteCategory `json:"category"`
	ToolCount     int           `json:"toolCount"`
	TotalMCPTools int           `json:"totalMcpTools,omitempty"`
}

type IntentDetectedData struct {
	Intent    IntentRef `json:"intent"`
	Reasoning string    `json:"reasoning"`
}

type EntitiesExtractedData struct {
	Entities map[string]interface{} `json:"entities"`
}

type PipelinePlannedData struct {
	Steps []PipelineNode `json:"steps"`
}

type EnrichmentsPlannedData struct {
	Enrichments    []Enrichment `json:"enrichments"`
	ResponseFormat string       `json:"responseFormat"`
}

// ToolResult is one attempted external call. Duplicates are never deduplicated;
// the ordered list is an audit trail of every attempt.
type ToolResult struct {
	Tool        string `json:"tool"`
	Success     bool   `json:"success"`
	RecordCount int    `json:"recordCount,omitempty"`
	Error       string `json:"error,omitempty"`
}

type MCQPromptData struct {
	MCQType  MCQType     `json:"mcqType"`
	Question string      `json:"question"`
	Options  []MCQOption `json:"options"`
}

type ResponseChunkData struct {
	Text string `json:"text"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type CompleteData struct {
	Response          string                 `json:"response"`
	MatchedIntent     string                 `json:"matchedIntent"`
	ExtractedEntities map[string]interface{} `json:"extractedEntities"`
	Reasoning         string                 `json:"reasoning"`
	PipelineSteps     []PipelineNode         `json:"pipelineSteps"`
	Enrichments       []Enrichment           `json:"enrichments"`
	ResponseFormat    string                 `json:"responseFormat"`
	MCPToolResults    []ToolResult           `json:"mcpToolResults"`
	Usage             Usage                  `json:"usage"`
	LLMModel          string                 `json:"llmModel"`
	Path              RoutePath              `json:"path,omitempty"`
	Category          RouteCategory          `json:"category,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}
