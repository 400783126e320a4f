// internal/pipeline/validate_test.go
package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"finchat-engine/internal/models"
)

// ==========================
// Test Fixtures
// ==========================

func cashBalanceFlow() *models.ResolutionFlow {
	return &models.ResolutionFlow{
		DataPipeline: []models.PipelineNode{
			{
				NodeID:         "node-1",
				NodeType:       models.NodeTypeAPICall,
				Sequence:       1,
				OutputVariable: "cashData",
				MCPTool:        "get_cash_balance",
			},
			{
				NodeID:         "node-2",
				NodeType:       models.NodeTypeComputation,
				Sequence:       2,
				OutputVariable: "runway",
				Formula:        "cashData.totalBalance / monthlyBurn",
			},
			{
				NodeID:         "node-3",
				NodeType:       models.NodeTypeConditional,
				Sequence:       3,
				OutputVariable: "lowCash",
				Condition:      "runway < 6",
			},
		},
		ResponseConfig: models.ResponseConfig{
			Type:     "metric",
			Template: "Your runway is {runway|number:1} months.",
		},
	}
}

func burnEntity() []models.Entity {
	return []models.Entity{
		{Name: "monthlyBurn", Type: models.EntityTypeAmount, Required: true},
	}
}

func findingCodes(result *ValidationResult) []string {
	codes := make([]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		codes = append(codes, f.Code)
	}
	return codes
}

// ==========================
// Happy Path
// ==========================

func TestValidate_ValidFlow(t *testing.T) {
	result := Validate(cashBalanceFlow(), burnEntity())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Findings)
}

func TestValidate_NilFlow(t *testing.T) {
	result := Validate(nil, nil)
	assert.True(t, result.Valid)
}

// ==========================
// Sequence Checks
// ==========================

func TestValidate_DuplicateSequence(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline[1].Sequence = 1

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeDuplicateSequence)
}

func TestValidate_SequenceGap(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline[2].Sequence = 7

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeSequenceGap)
}

func TestValidate_SequenceOrderMismatch(t *testing.T) {
	// Sequences 1..3 all present but not matching array order.
	flow := cashBalanceFlow()
	flow.DataPipeline[0].Sequence = 2
	flow.DataPipeline[1].Sequence = 1

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeSequenceOrderMismatch)
}

// ==========================
// Uniqueness Checks
// ==========================

func TestValidate_DuplicateOutputVariable(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline[2].OutputVariable = "runway"

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeDuplicateOutputVariable)
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline[2].NodeID = "node-1"

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeDuplicateNodeID)
}

// ==========================
// Reference Checks
// ==========================

func TestValidate_UndefinedReference_Formula(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline[1].Formula = "mysteryVar * 2"

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)

	var found bool
	for _, f := range result.Findings {
		if f.Code == CodeUndefinedReference {
			found = true
			assert.Equal(t, "node-2", f.NodeID)
			assert.Equal(t, "formula", f.Field)
		}
	}
	assert.True(t, found)
}

func TestValidate_ForwardReferenceRejected(t *testing.T) {
	// node-2 references node-3's output; later outputs are never in scope.
	flow := cashBalanceFlow()
	flow.DataPipeline[1].Formula = "lowCash ? 1 : 0"

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeUndefinedReference)
}

func TestValidate_EntityReferenceAllowed(t *testing.T) {
	// monthlyBurn is satisfied by the declared entity, not a pipeline node.
	result := Validate(cashBalanceFlow(), burnEntity())
	assert.True(t, result.Valid)

	// Without the entity declaration the same formula fails.
	result = Validate(cashBalanceFlow(), nil)
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeUndefinedReference)
}

func TestValidate_PreviousNodeParameter(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline = append(flow.DataPipeline, models.PipelineNode{
		NodeID:         "node-4",
		NodeType:       models.NodeTypeAPICall,
		Sequence:       4,
		OutputVariable: "detail",
		MCPTool:        "get_profit_loss",
		Parameters: []models.Parameter{
			{Name: "threshold", Value: "runway", Source: models.SourcePreviousNode},
			{Name: "missing", Value: "ghostVar.field", Source: models.SourcePreviousNode},
		},
	})

	result := Validate(flow, burnEntity())
	assert.False(t, result.Valid)

	codes := findingCodes(result)
	assert.Contains(t, codes, CodeUndefinedReference)
	// Only the ghost reference is flagged, not the valid runway one.
	count := 0
	for _, c := range codes {
		if c == CodeUndefinedReference {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

// ==========================
// Shape Checks
// ==========================

func TestValidate_NodeShape(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.ResolutionFlow)
		expected string
	}{
		{
			"api_call without tool",
			func(f *models.ResolutionFlow) { f.DataPipeline[0].MCPTool = "" },
			CodeMissingTool,
		},
		{
			"computation without formula",
			func(f *models.ResolutionFlow) { f.DataPipeline[1].Formula = "" },
			CodeMissingFormula,
		},
		{
			"conditional without condition",
			func(f *models.ResolutionFlow) { f.DataPipeline[2].Condition = "" },
			CodeMissingCondition,
		},
		{
			"unknown node type",
			func(f *models.ResolutionFlow) { f.DataPipeline[0].NodeType = "webhook" },
			CodeUnknownNodeType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := cashBalanceFlow()
			tt.mutate(flow)
			result := Validate(flow, burnEntity())
			assert.False(t, result.Valid)
			assert.Contains(t, findingCodes(result), tt.expected)
		})
	}
}

func TestValidate_EnumEntityRequiresValues(t *testing.T) {
	entities := append(burnEntity(), models.Entity{
		Name: "period", Type: models.EntityTypeEnum,
	})
	result := Validate(cashBalanceFlow(), entities)
	assert.False(t, result.Valid)
	assert.Contains(t, findingCodes(result), CodeEnumValuesRequired)

	entities[1].EnumValues = []string{"monthly", "quarterly"}
	result = Validate(cashBalanceFlow(), entities)
	assert.True(t, result.Valid)
}
