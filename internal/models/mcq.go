// internal/models/mcq.go
package models

import "time"

// MCQType enumerates clarification-card kinds.
type MCQType string

const (
	MCQEntityResolution    MCQType = "entity_resolution"
	MCQParameterResolution MCQType = "parameter_resolution"
	MCQWriteConfirmation   MCQType = "write_confirmation"
	MCQDisambiguation      MCQType = "disambiguation"
)

// MCQStatus is the lifecycle state of a clarification card. All states
// except active are terminal; a card is never resurrected.
type MCQStatus string

const (
	MCQActive     MCQStatus = "active"
	MCQResolved   MCQStatus = "resolved"
	MCQExpired    MCQStatus = "expired"
	MCQOverridden MCQStatus = "overridden"
	MCQCancelled  MCQStatus = "cancelled"
)

// CancelOptionValue is the reserved option value offered only on
// write_confirmation cards.
const CancelOptionValue = "__cancel__"

// MCQOption is one selectable answer on a clarification card.
type MCQOption struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// MCQData is a clarification card raised when the orchestrator cannot
// proceed deterministically. Mutated only by the MCQ state machine.
type MCQData struct {
	MCQType       MCQType     `json:"mcqType"`
	Question      string      `json:"question"`
	Options       []MCQOption `json:"options"`
	SelectedValue string      `json:"selectedValue,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	Status        MCQStatus   `json:"status"`
}

// HasOption reports whether value is one of the card's options.
func (m *MCQData) HasOption(value string) bool {
	for _, o := range m.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
