// internal/models/routing.go
package models

// RoutePath is the per-turn routing decision.
type RoutePath string

const (
	PathFast   RoutePath = "fast"
	PathLLM    RoutePath = "llm"
	PathCached RoutePath = "cached"
)

// RouteCategory is the per-turn domain category.
type RouteCategory string

const (
	CategoryBookkeeper  RouteCategory = "bookkeeper"
	CategoryCFO         RouteCategory = "cfo"
	CategoryGeneralChat RouteCategory = "general_chat"
)

// IntentRef is a lightweight reference to a matched (or attempted) intent.
type IntentRef struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// RouteClassification is the per-turn routing record. It is not persisted;
// the route cache stores serialized copies keyed by normalized query.
type RouteClassification struct {
	Path       RoutePath     `json:"path"`
	Category   RouteCategory `json:"category"`
	Confidence float64       `json:"confidence,omitempty"`
	// CrossOver is true when the turn switched category mid-conversation.
	CrossOver       bool       `json:"crossOver,omitempty"`
	IntentAttempted *IntentRef `json:"intentAttempted,omitempty"`
	Intent          *IntentRef `json:"intent,omitempty"`
}
