// internal/pipeline/simulate_test.go
package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
	"finchat-engine/internal/template"
)

func simCatalog() []models.ToolCatalogEntry {
	return []models.ToolCatalogEntry{
		{ID: "get_cash_balance"},
		{ID: "get_all_bills"},
	}
}

// ==========================
// End-to-End Dry Run
// ==========================

func TestSimulate_CashRunwayFlow(t *testing.T) {
	flow := cashBalanceFlow()
	entities := map[string]interface{}{"monthlyBurn": 500.0}

	sim := NewSimulator(simCatalog(), logger.NewTestLogger(t))
	results := sim.Simulate(flow, entities)

	assert.Len(t, results, 3)

	cash := results["cashData"]
	assert.Equal(t, StatusSimulated, cash.Status)
	assert.Equal(t, "get_cash_balance", cash.Tool)
	// totalBalance is read by node-2's formula, so the stand-in data carries it.
	assert.Equal(t, sampleValue, cash.Data["totalBalance"])

	runway := results["runway"]
	assert.Equal(t, models.NodeTypeComputation, runway.NodeType)
	// 1000 / 500
	assert.InDelta(t, 2.0, toF(t, runway.Result), 0.0001)

	lowCash := results["lowCash"]
	assert.Equal(t, true, lowCash.Result)
}

func TestSimulate_RenderedTemplateCarriesValues(t *testing.T) {
	// The full dry-run property: simulate then render, and the template's
	// filtered variable substitutes to a concrete formatted number.
	flow := &models.ResolutionFlow{
		DataPipeline: []models.PipelineNode{
			{
				NodeID:         "node-1",
				NodeType:       models.NodeTypeAPICall,
				Sequence:       1,
				OutputVariable: "cashData",
				MCPTool:        "get_cash_balance",
			},
		},
		ResponseConfig: models.ResponseConfig{
			Type:     "metric",
			Template: "Your balance is {cashData.totalBalance|currency}.",
		},
	}

	sim := NewSimulator(simCatalog(), logger.NewTestLogger(t))
	results := sim.Simulate(flow, nil)
	bag := DataBag(results, nil)

	rendered := template.Render(flow.ResponseConfig.Template, bag)
	assert.Equal(t, "Your balance is $1,000.00.", rendered)
	assert.NotContains(t, rendered, "{")
}

// ==========================
// Unresolved Tools
// ==========================

func TestSimulate_UnresolvedToolKeepsNode(t *testing.T) {
	flow := cashBalanceFlow()
	flow.DataPipeline[0].MCPTool = "@Totally_Unknown_Tool"

	sim := NewSimulator(simCatalog(), logger.NewTestLogger(t))
	results := sim.Simulate(flow, map[string]interface{}{"monthlyBurn": 500.0})

	cash := results["cashData"]
	assert.Equal(t, StatusUnresolved, cash.Status)
	assert.Equal(t, "totally_unknown_tool", cash.Tool)
	// Downstream nodes still run against the stand-in data.
	assert.Contains(t, results, "runway")
}

// ==========================
// Parameter Sources
// ==========================

func TestSimulate_ParameterSources(t *testing.T) {
	flow := &models.ResolutionFlow{
		DataPipeline: []models.PipelineNode{
			{
				NodeID:         "node-1",
				NodeType:       models.NodeTypeAPICall,
				Sequence:       1,
				OutputVariable: "bills",
				MCPTool:        "get_all_bills",
				Parameters: []models.Parameter{
					{Name: "status", Value: "unpaid", Source: models.SourceStatic},
					{Name: "vendor", Value: "vendorName", Source: models.SourceEntity},
					{Name: "company", Value: "companyId", Source: models.SourceContext},
				},
			},
			{
				NodeID:         "node-2",
				NodeType:       models.NodeTypeAPICall,
				Sequence:       2,
				OutputVariable: "detail",
				MCPTool:        "get_cash_balance",
				Parameters: []models.Parameter{
					{Name: "count", Value: "bills.recordCount", Source: models.SourcePreviousNode},
				},
			},
		},
		ResponseConfig: models.ResponseConfig{Type: "metric", Template: "ok"},
	}

	sim := NewSimulator(simCatalog(), logger.NewTestLogger(t)).
		WithContext(map[string]interface{}{"companyId": "co-42"})
	results := sim.Simulate(flow, map[string]interface{}{"vendorName": "Acme"})

	bills := results["bills"]
	assert.Equal(t, "unpaid", bills.Params["status"])
	assert.Equal(t, "Acme", bills.Params["vendor"])
	assert.Equal(t, "co-42", bills.Params["company"])

	detail := results["detail"]
	// recordCount is seeded as 0 in the stand-in payload.
	assert.EqualValues(t, 0, toF(t, detail.Params["count"]))
}

// ==========================
// Determinism & Bag
// ==========================

func TestSimulate_Deterministic(t *testing.T) {
	flow := cashBalanceFlow()
	entities := map[string]interface{}{"monthlyBurn": 500.0}
	sim := NewSimulator(simCatalog(), logger.NewNoOpLogger())

	first, _ := json.Marshal(sim.Simulate(flow, entities))
	second, _ := json.Marshal(sim.Simulate(flow, entities))
	assert.Equal(t, string(first), string(second))
}

func TestDataBag_PipelineVariableShadowsEntity(t *testing.T) {
	results := map[string]SimResult{
		"total": {NodeID: "n1", NodeType: models.NodeTypeComputation, Result: 42.0},
	}
	bag := DataBag(results, map[string]interface{}{"total": 1.0, "other": "x"})
	assert.Equal(t, 42.0, bag["total"])
	assert.Equal(t, "x", bag["other"])
}

func toF(t *testing.T, v interface{}) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		assert.NoError(t, err)
		return f
	default:
		t.Fatalf("not numeric: %T %v", v, v)
		return 0
	}
}
