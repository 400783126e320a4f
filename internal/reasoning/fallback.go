// internal/reasoning/fallback.go
package reasoning

import (
	"fmt"
	"strings"

	"finchat-engine/internal/models"
)

// FallbackFlow builds a degraded local resolution flow from canned phrase
// templates when the reasoning service is unavailable. It marks the intent
// as pending so a later regeneration can replace it.
func FallbackFlow(intent IntentContext) *GeneratedFlow {
	phrases := intent.TrainingPhrases
	if len(phrases) == 0 {
		name := strings.ReplaceAll(intent.Name, "_", " ")
		phrases = []string{
			name,
			"show me " + name,
			"what is my " + name,
		}
	}

	return &GeneratedFlow{
		TrainingPhrases: phrases,
		Entities:        intent.Entities,
		ResponseConfig: &models.ResponseConfig{
			Type:     "metric",
			Template: fmt.Sprintf("Here is what I found for %s: {result}", strings.ReplaceAll(intent.Name, "_", " ")),
			FollowUpQuestions: []string{
				"Would you like a breakdown by period?",
			},
		},
		AIConfidence: 0,
	}
}

// FallbackResponse is the best-effort direct answer used when the
// chain-fatigue policy suppresses a further clarification prompt.
func FallbackResponse(understanding *models.AgentUnderstanding) string {
	if understanding == nil || understanding.MatchedIntent == nil {
		return "I wasn't able to narrow that down further, so here is my best answer based on what I understood. Could you rephrase with a bit more detail if this misses the mark?"
	}
	return fmt.Sprintf(
		"I'll go with my best interpretation (%s) rather than asking again. Let me know if you meant something else.",
		strings.ReplaceAll(understanding.MatchedIntent.Name, "_", " "),
	)
}
