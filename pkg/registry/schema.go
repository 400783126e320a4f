// pkg/registry/schema.go
package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ToolCatalogSchema validates tool catalog files consumed by the file
// provider.
const ToolCatalogSchema = `{
	"type": "object",
	"required": ["version", "tools"],
	"properties": {
		"version": {"type": "string"},
		"tools": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"category": {"type": "string"}
				}
			}
		}
	}
}`

// IntentDocumentSchema validates intent JSON documents on import and in the
// flow-simulator CLI. The resolution flow's deeper semantics (sequence
// contiguity, reference resolution) are checked by the pipeline validator,
// not here.
const IntentDocumentSchema = `{
	"type": "object",
	"required": ["id", "name", "moduleId", "trainingPhrases"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"moduleId": {"type": "string"},
		"subModuleId": {"type": "string"},
		"description": {"type": "string"},
		"isActive": {"type": "boolean"},
		"trainingPhrases": {
			"type": "array",
			"items": {"type": "string"}
		},
		"entities": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "type"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {
						"type": "string",
						"enum": ["project", "vendor", "customer", "date", "date_range",
							"number", "amount", "percentage", "period", "enum", "string"]
					},
					"required": {"type": "boolean"},
					"defaultValue": {"type": "string"},
					"prompt": {"type": "string"},
					"enumValues": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"resolutionFlow": {
			"type": "object",
			"required": ["dataPipeline", "responseConfig"],
			"properties": {
				"dataPipeline": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["nodeId", "nodeType", "sequence", "outputVariable"],
						"properties": {
							"nodeId": {"type": "string", "minLength": 1},
							"nodeType": {"type": "string", "enum": ["api_call", "computation", "conditional"]},
							"sequence": {"type": "integer", "minimum": 1},
							"outputVariable": {"type": "string", "minLength": 1}
						}
					}
				},
				"enrichments": {"type": "array"},
				"responseConfig": {
					"type": "object",
					"required": ["type", "template"],
					"properties": {
						"type": {"type": "string"},
						"template": {"type": "string"},
						"followUpQuestions": {"type": "array", "items": {"type": "string"}}
					}
				}
			}
		},
		"generatedBy": {"type": "string", "enum": ["ai", "manual", "pending"]},
		"aiConfidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

// ValidateDocument checks a JSON document against one of the registry
// schemas and returns a flat list of finding strings.
func ValidateDocument(schemaJSON string, document []byte) ([]string, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	findings := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		findings = append(findings, strings.TrimSpace(fmt.Sprintf("%s: %s", e.Field(), e.Description())))
	}
	return findings, nil
}
