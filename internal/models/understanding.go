// internal/models/understanding.go
package models

import "time"

// TurnPhase tracks where a turn currently sits in the phase sequence.
type TurnPhase string

const (
	PhaseRouting     TurnPhase = "routing"
	PhaseDetecting   TurnPhase = "detecting"
	PhaseTools       TurnPhase = "tools"
	PhaseEntities    TurnPhase = "entities"
	PhasePipeline    TurnPhase = "pipeline"
	PhaseExecuting   TurnPhase = "executing"
	PhaseEnrichments TurnPhase = "enrichments"
	PhaseResponse    TurnPhase = "response"
	PhaseComplete    TurnPhase = "complete"
)

// AgentUnderstanding is the per-turn state record built up by the phase
// reducer. It is owned by exactly one conversation for the session lifetime
// and serializable for inspection/testing without any rendering layer.
type AgentUnderstanding struct {
	Route             *RouteClassification   `json:"route,omitempty"`
	Phase             TurnPhase              `json:"phase"`
	MatchedIntent     *IntentRef             `json:"matchedIntent,omitempty"`
	Reasoning         string                 `json:"reasoning,omitempty"`
	ExtractedEntities map[string]interface{} `json:"extractedEntities,omitempty"`
	PipelineSteps     []PipelineNode         `json:"pipelineSteps,omitempty"`
	Enrichments       []Enrichment           `json:"enrichments,omitempty"`
	ResponseFormat    string                 `json:"responseFormat,omitempty"`
	ToolsFiltered     *ToolsFilteredData     `json:"toolsFiltered,omitempty"`
	// ToolResults accumulates every attempted call in arrival order,
	// duplicates included.
	ToolResults []ToolResult `json:"toolResults"`
	Response    string       `json:"response,omitempty"`
	Usage       *Usage       `json:"usage,omitempty"`
	LLMModel    string       `json:"llmModel,omitempty"`
	IsComplete  bool         `json:"isComplete"`
	Error       string       `json:"error,omitempty"`
}

// TurnOutcome is the terminal disposition of a turn. A turn reaches exactly
// one outcome.
type TurnOutcome string

const (
	OutcomeComplete  TurnOutcome = "complete"
	OutcomeSuspended TurnOutcome = "suspended_for_clarification"
	OutcomeError     TurnOutcome = "error"
	OutcomeCancelled TurnOutcome = "cancelled"
)

// MessageRole distinguishes conversation participants.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a conversation transcript.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	MCQ       *MCQData    `json:"mcq,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
