// internal/pipeline/validate.go
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"finchat-engine/internal/common/metrics"
	"finchat-engine/internal/models"
)

// Finding is one structured validation problem. Findings are reported, never
// thrown; an invalid pipeline stays editable.
type Finding struct {
	NodeID  string `json:"nodeId,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeDuplicateSequence       = "DUPLICATE_SEQUENCE"
	CodeSequenceGap             = "SEQUENCE_GAP"
	CodeSequenceOrderMismatch   = "SEQUENCE_ORDER_MISMATCH"
	CodeDuplicateOutputVariable = "DUPLICATE_OUTPUT_VARIABLE"
	CodeDuplicateNodeID         = "DUPLICATE_NODE_ID"
	CodeUndefinedReference      = "UNDEFINED_REFERENCE"
	CodeMissingTool             = "MISSING_TOOL"
	CodeMissingFormula          = "MISSING_FORMULA"
	CodeMissingCondition        = "MISSING_CONDITION"
	CodeUnknownNodeType         = "UNKNOWN_NODE_TYPE"
	CodeEnumValuesRequired      = "ENUM_VALUES_REQUIRED"
)

// ValidationResult is the structured outcome of a validation pass.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Findings []Finding `json:"findings,omitempty"`
}

func (r *ValidationResult) add(f Finding) {
	r.Findings = append(r.Findings, f)
	metrics.PipelineFindings.WithLabelValues(f.Code).Inc()
}

// Validate checks a resolution flow's pipeline: sequence numbers form a
// contiguous 1..N range matching array order, outputVariables are unique,
// and every reference in formulas, conditions, and previous_node parameters
// resolves to an earlier node's outputVariable or a declared entity name.
// Unresolved references are reported, not silently dropped.
func Validate(flow *models.ResolutionFlow, entities []models.Entity) *ValidationResult {
	result := &ValidationResult{}
	if flow == nil {
		result.Valid = true
		return result
	}

	nodes := flow.DataPipeline
	validateSequences(nodes, result)
	validateUniqueness(nodes, result)
	validateEntities(entities, result)

	entityNames := make(map[string]bool, len(entities))
	for _, e := range entities {
		entityNames[e.Name] = true
	}

	// Known outputs accumulate in pipeline order: a node may only reference
	// variables produced strictly before it.
	known := make(map[string]bool)
	ordered := make([]models.PipelineNode, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	for _, node := range ordered {
		validateNodeShape(node, result)
		validateReferences(node, known, entityNames, result)
		if node.OutputVariable != "" {
			known[node.OutputVariable] = true
		}
	}

	result.Valid = len(result.Findings) == 0
	return result
}

func validateSequences(nodes []models.PipelineNode, result *ValidationResult) {
	seen := make(map[int]string, len(nodes))
	for i, node := range nodes {
		if prev, dup := seen[node.Sequence]; dup {
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "sequence",
				Code:    CodeDuplicateSequence,
				Message: fmt.Sprintf("sequence %d already used by node %q", node.Sequence, prev),
			})
			continue
		}
		seen[node.Sequence] = node.NodeID

		if node.Sequence != i+1 {
			code := CodeSequenceOrderMismatch
			if node.Sequence > len(nodes) || node.Sequence < 1 {
				code = CodeSequenceGap
			}
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "sequence",
				Code:    code,
				Message: fmt.Sprintf("sequence %d at array position %d; expected contiguous 1..%d matching array order", node.Sequence, i, len(nodes)),
			})
		}
	}
}

func validateUniqueness(nodes []models.PipelineNode, result *ValidationResult) {
	outputs := make(map[string]string, len(nodes))
	ids := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if ids[node.NodeID] {
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "nodeId",
				Code:    CodeDuplicateNodeID,
				Message: fmt.Sprintf("nodeId %q is not unique within the pipeline", node.NodeID),
			})
		}
		ids[node.NodeID] = true

		if node.OutputVariable == "" {
			continue
		}
		if prev, dup := outputs[node.OutputVariable]; dup {
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "outputVariable",
				Code:    CodeDuplicateOutputVariable,
				Message: fmt.Sprintf("outputVariable %q already produced by node %q", node.OutputVariable, prev),
			})
		}
		outputs[node.OutputVariable] = node.NodeID
	}
}

func validateEntities(entities []models.Entity, result *ValidationResult) {
	for _, e := range entities {
		if e.Type == models.EntityTypeEnum && len(e.EnumValues) == 0 {
			result.add(Finding{
				Field:   "entities." + e.Name,
				Code:    CodeEnumValuesRequired,
				Message: fmt.Sprintf("entity %q has type enum but no enumValues", e.Name),
			})
		}
	}
}

func validateNodeShape(node models.PipelineNode, result *ValidationResult) {
	switch node.NodeType {
	case models.NodeTypeAPICall:
		if node.MCPTool == "" {
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "mcpTool",
				Code:    CodeMissingTool,
				Message: "api_call node has no tool reference",
			})
		}
	case models.NodeTypeComputation:
		if node.Formula == "" {
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "formula",
				Code:    CodeMissingFormula,
				Message: "computation node has no formula",
			})
		}
	case models.NodeTypeConditional:
		if node.Condition == "" {
			result.add(Finding{
				NodeID:  node.NodeID,
				Field:   "condition",
				Code:    CodeMissingCondition,
				Message: "conditional node has no condition",
			})
		}
	default:
		result.add(Finding{
			NodeID:  node.NodeID,
			Field:   "nodeType",
			Code:    CodeUnknownNodeType,
			Message: fmt.Sprintf("unknown node type %q", node.NodeType),
		})
	}
}

func validateReferences(node models.PipelineNode, known, entityNames map[string]bool, result *ValidationResult) {
	check := func(field, ident string) {
		if known[ident] || entityNames[ident] {
			return
		}
		result.add(Finding{
			NodeID:  node.NodeID,
			Field:   field,
			Code:    CodeUndefinedReference,
			Message: fmt.Sprintf("%q does not resolve to an earlier node's outputVariable or a declared entity", ident),
		})
	}

	switch node.NodeType {
	case models.NodeTypeAPICall:
		for _, p := range node.Parameters {
			if p.Source != models.SourcePreviousNode {
				continue
			}
			base := p.Value
			if idx := strings.IndexByte(base, '.'); idx >= 0 {
				base = base[:idx]
			}
			check("parameters."+p.Name, base)
		}
	case models.NodeTypeComputation:
		for _, ident := range referencedIdentifiers(node.Formula) {
			check("formula", ident)
		}
	case models.NodeTypeConditional:
		for _, ident := range referencedIdentifiers(node.Condition) {
			check("condition", ident)
		}
	}
}
