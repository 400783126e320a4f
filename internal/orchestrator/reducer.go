// internal/orchestrator/reducer.go
package orchestrator

import (
	"finchat-engine/internal/models"
)

// applyResult signals what the turn loop must do after one event.
type applyResult struct {
	// raisedMCQ is non-nil when the service asked for clarification.
	raisedMCQ *models.MCQPromptData
	// done is true on a complete event.
	done bool
	// failed is non-empty on an error event.
	failed string
}

// applyEvent folds one phase event into the understanding record. It is a
// pure state update: no I/O, no time, no channel reads, so the whole phase
// protocol is unit-testable as data in, data out. Events are applied in
// arrival order; unknown event types are ignored without disturbing state.
func applyEvent(u *models.AgentUnderstanding, prevCategory models.RouteCategory, ev models.PhaseEvent) applyResult {
	switch ev.Type {
	case models.EventConnected:
		// Handshake only; no state.

	case models.EventRouteClassified:
		var route models.RouteClassification
		if err := ev.Decode(&route); err != nil {
			return applyResult{}
		}
		// A category flip mid-conversation marks the turn as a cross-over
		// even when the classifier itself didn't flag it.
		if prevCategory != "" && route.Category != prevCategory {
			route.CrossOver = true
		}
		u.Route = &route
		u.Phase = models.PhaseRouting

	case models.EventToolsFiltered:
		var data models.ToolsFilteredData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		u.ToolsFiltered = &data
		u.Phase = models.PhaseTools

	case models.EventIntentDetected:
		var data models.IntentDetectedData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		intent := data.Intent
		u.MatchedIntent = &intent
		u.Reasoning = data.Reasoning
		u.Phase = models.PhaseDetecting

	case models.EventEntitiesExtracted:
		var data models.EntitiesExtractedData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		u.ExtractedEntities = data.Entities
		u.Phase = models.PhaseEntities

	case models.EventPipelinePlanned:
		var data models.PipelinePlannedData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		u.PipelineSteps = data.Steps
		u.Phase = models.PhasePipeline

	case models.EventEnrichmentsPlanned:
		var data models.EnrichmentsPlannedData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		u.Enrichments = data.Enrichments
		u.ResponseFormat = data.ResponseFormat
		u.Phase = models.PhaseEnrichments

	case models.EventToolResult:
		var data models.ToolResult
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		// Every attempt is appended, duplicates included: the list is an
		// audit trail, not a set.
		u.ToolResults = append(u.ToolResults, data)
		u.Phase = models.PhaseExecuting

	case models.EventResponseChunk:
		var data models.ResponseChunkData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		u.Response += data.Text
		u.Phase = models.PhaseResponse

	case models.EventMCQPrompt:
		var data models.MCQPromptData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		return applyResult{raisedMCQ: &data}

	case models.EventComplete:
		var data models.CompleteData
		if err := ev.Decode(&data); err != nil {
			return applyResult{}
		}
		if data.Response != "" {
			u.Response = data.Response
		}
		if data.MatchedIntent != "" && u.MatchedIntent == nil {
			u.MatchedIntent = &models.IntentRef{Name: data.MatchedIntent}
		}
		if data.Reasoning != "" {
			u.Reasoning = data.Reasoning
		}
		if len(data.ExtractedEntities) > 0 {
			u.ExtractedEntities = data.ExtractedEntities
		}
		if len(data.PipelineSteps) > 0 {
			u.PipelineSteps = data.PipelineSteps
		}
		if len(data.Enrichments) > 0 {
			u.Enrichments = data.Enrichments
		}
		if data.ResponseFormat != "" {
			u.ResponseFormat = data.ResponseFormat
		}
		u.ToolResults = append(u.ToolResults, data.MCPToolResults...)
		usage := data.Usage
		u.Usage = &usage
		u.LLMModel = data.LLMModel
		if u.Route != nil {
			if data.Path != "" {
				u.Route.Path = data.Path
			}
			if data.Category != "" && !u.Route.CrossOver {
				u.Route.Category = data.Category
			}
		}
		u.Phase = models.PhaseComplete
		u.IsComplete = true
		return applyResult{done: true}

	case models.EventError:
		var data models.ErrorData
		if err := ev.Decode(&data); err != nil || data.Message == "" {
			data.Message = "reasoning service reported an error"
		}
		u.Error = data.Message
		return applyResult{failed: data.Message}
	}

	return applyResult{}
}
