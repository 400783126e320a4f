// internal/models/intent.go
package models

import "time"

// GeneratedBy records the provenance of an intent's resolution flow.
type GeneratedBy string

const (
	GeneratedByAI      GeneratedBy = "ai"
	GeneratedByManual  GeneratedBy = "manual"
	GeneratedByPending GeneratedBy = "pending"
)

// EntityType enumerates the extraction parameter kinds an intent can declare.
type EntityType string

const (
	EntityTypeProject    EntityType = "project"
	EntityTypeVendor     EntityType = "vendor"
	EntityTypeCustomer   EntityType = "customer"
	EntityTypeDate       EntityType = "date"
	EntityTypeDateRange  EntityType = "date_range"
	EntityTypeNumber     EntityType = "number"
	EntityTypeAmount     EntityType = "amount"
	EntityTypePercentage EntityType = "percentage"
	EntityTypePeriod     EntityType = "period"
	EntityTypeEnum       EntityType = "enum"
	EntityTypeString     EntityType = "string"
)

// Entity is an extraction parameter spec attached to an intent.
type Entity struct {
	Name         string      `json:"name" db:"name"`
	Type         EntityType  `json:"type" db:"type"`
	Required     bool        `json:"required" db:"required"`
	DefaultValue string      `json:"defaultValue,omitempty" db:"default_value"`
	Prompt       string      `json:"prompt,omitempty" db:"prompt"`
	// EnumValues is required iff Type is EntityTypeEnum.
	EnumValues []string `json:"enumValues,omitempty" db:"enum_values"`
}

// Intent is a named query category with training phrases and an optional
// resolution flow. TrainingPhrases order is significant only for display;
// matching treats them as a set. Phrases may contain {{entityName}}
// placeholders.
type Intent struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	ModuleID        string          `json:"moduleId" db:"module_id"`
	SubModuleID     string          `json:"subModuleId" db:"sub_module_id"`
	Description     string          `json:"description,omitempty" db:"description"`
	IsActive        bool            `json:"isActive" db:"is_active"`
	TrainingPhrases []string        `json:"trainingPhrases" db:"training_phrases"`
	Entities        []Entity        `json:"entities" db:"entities"`
	ResolutionFlow  *ResolutionFlow `json:"resolutionFlow,omitempty" db:"resolution_flow"`
	GeneratedBy     GeneratedBy     `json:"generatedBy" db:"generated_by"`
	AIConfidence    float64         `json:"aiConfidence,omitempty" db:"ai_confidence"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// EntityByName returns the declared entity with the given name.
func (i *Intent) EntityByName(name string) (Entity, bool) {
	for _, e := range i.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}
