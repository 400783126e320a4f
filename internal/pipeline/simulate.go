// internal/pipeline/simulate.go
package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"

	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
	"finchat-engine/internal/resolver"

	"github.com/tidwall/gjson"
)

const (
	StatusSimulated  = "simulated"
	StatusUnresolved = "unresolved"
)

// SimResult is the stand-in output of one simulated node. Exactly one shape
// is populated per node type: api_call carries Status/Tool/Params/Data,
// computation carries Formula/Result, conditional carries Condition/Result.
type SimResult struct {
	NodeID   string          `json:"nodeId"`
	NodeType models.NodeType `json:"nodeType"`

	Status string                 `json:"status,omitempty"`
	Tool   string                 `json:"tool,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`

	Formula string      `json:"formula,omitempty"`
	Result  interface{} `json:"result,omitempty"`

	Condition string `json:"condition,omitempty"`
}

// Simulator dry-runs a resolution flow and produces the variable bag the
// renderer consumes. It is not a live executor; the output schema stays
// compatible with the external executor's.
type Simulator struct {
	catalog []models.ToolCatalogEntry
	context map[string]interface{}
	logger  logger.Logger
}

// sampleValue seeds stand-in fields. Fixed so repeated simulations of the
// same flow are byte-identical.
const sampleValue = float64(1000)

func NewSimulator(catalog []models.ToolCatalogEntry, log logger.Logger) *Simulator {
	return &Simulator{
		catalog: catalog,
		context: map[string]interface{}{},
		logger:  log.With(map[string]interface{}{"component": "pipeline-simulator"}),
	}
}

// WithContext supplies values for context-sourced parameters.
func (s *Simulator) WithContext(ctx map[string]interface{}) *Simulator {
	s.context = ctx
	return s
}

// Simulate executes nodes strictly in ascending sequence order and returns
// one SimResult per outputVariable. Unresolvable tools flag the node but do
// not remove it; formula failures yield nil results.
func (s *Simulator) Simulate(flow *models.ResolutionFlow, entityValues map[string]interface{}) map[string]SimResult {
	results := make(map[string]SimResult)
	if flow == nil {
		return results
	}

	nodes := make([]models.PipelineNode, len(flow.DataPipeline))
	copy(nodes, flow.DataPipeline)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Sequence < nodes[j].Sequence })

	// bag holds the renderable value of every variable produced so far,
	// seeded with the extracted entity values.
	bag := make(map[string]interface{}, len(entityValues))
	for k, v := range entityValues {
		bag[k] = v
	}

	for _, node := range nodes {
		var res SimResult
		switch node.NodeType {
		case models.NodeTypeAPICall:
			res = s.simulateAPICall(flow, node, bag, entityValues)
		case models.NodeTypeComputation:
			value, ok := evalExpression(node.Formula, bag)
			if !ok {
				s.logger.Warn("formula evaluation failed", map[string]interface{}{
					"nodeId":  node.NodeID,
					"formula": node.Formula,
				})
			}
			res = SimResult{
				NodeID:   node.NodeID,
				NodeType: node.NodeType,
				Formula:  node.Formula,
				Result:   value,
			}
		case models.NodeTypeConditional:
			value, _ := evalCondition(node.Condition, bag)
			res = SimResult{
				NodeID:    node.NodeID,
				NodeType:  node.NodeType,
				Condition: node.Condition,
				Result:    value,
			}
		default:
			continue
		}

		results[node.OutputVariable] = res
		bag[node.OutputVariable] = renderableValue(res)
	}

	return results
}

func (s *Simulator) simulateAPICall(flow *models.ResolutionFlow, node models.PipelineNode, bag map[string]interface{}, entityValues map[string]interface{}) SimResult {
	resolved := resolver.Resolve(node.MCPTool, s.catalog)

	status := StatusSimulated
	tool := resolved
	if resolved == "" {
		// Ambiguity is a first-class value: the node stays in place and the
		// editor surfaces it.
		status = StatusUnresolved
		tool = resolver.Normalize(node.MCPTool)
		s.logger.Warn("tool reference unresolved", map[string]interface{}{
			"nodeId":  node.NodeID,
			"mcpTool": node.MCPTool,
		})
	}

	params := make(map[string]interface{}, len(node.Parameters))
	for _, p := range node.Parameters {
		params[p.Name] = s.parameterValue(p, bag, entityValues)
	}

	data := map[string]interface{}{
		"records":     []interface{}{},
		"recordCount": 0,
	}
	// Seed the fields that downstream formulas, conditions, parameters, and
	// the response template read off this variable, so the dry run carries
	// enough shape for the renderer.
	for _, field := range downstreamFields(flow, node) {
		if _, exists := data[field]; !exists {
			data[field] = sampleValue
		}
	}

	return SimResult{
		NodeID:   node.NodeID,
		NodeType: node.NodeType,
		Status:   status,
		Tool:     tool,
		Params:   params,
		Data:     data,
	}
}

func (s *Simulator) parameterValue(p models.Parameter, bag map[string]interface{}, entityValues map[string]interface{}) interface{} {
	switch p.Source {
	case models.SourceStatic:
		return p.Value
	case models.SourceEntity:
		if v, ok := entityValues[p.Value]; ok {
			return v
		}
		return nil
	case models.SourceContext:
		if v, ok := s.context[p.Value]; ok {
			return v
		}
		return nil
	case models.SourcePreviousNode:
		return lookupPath(bag, p.Value)
	default:
		return nil
	}
}

// downstreamFields collects every `<outputVariable>.<field>` read of the
// given node appearing later in the pipeline or in the response template.
func downstreamFields(flow *models.ResolutionFlow, node models.PipelineNode) []string {
	seen := make(map[string]bool)
	var fields []string
	collect := func(expr string) {
		for _, f := range referencedFields(expr, node.OutputVariable) {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}

	for _, other := range flow.DataPipeline {
		if other.Sequence <= node.Sequence {
			continue
		}
		collect(other.Formula)
		collect(other.Condition)
		for _, p := range other.Parameters {
			if p.Source == models.SourcePreviousNode {
				collect(p.Value)
			}
		}
	}
	collect(flow.ResponseConfig.Template)
	return fields
}

// renderableValue flattens a SimResult to the value exposed under its
// outputVariable in the data bag.
func renderableValue(res SimResult) interface{} {
	switch res.NodeType {
	case models.NodeTypeAPICall:
		return res.Data
	default:
		return res.Result
	}
}

// DataBag builds the renderer's flat variable bag from simulation results
// plus entity values. Entity values lose on collision: a pipeline variable
// shadows an entity of the same name, matching execution-order semantics.
func DataBag(results map[string]SimResult, entityValues map[string]interface{}) map[string]interface{} {
	bag := make(map[string]interface{}, len(results)+len(entityValues))
	for k, v := range entityValues {
		bag[k] = v
	}
	for name, res := range results {
		bag[name] = renderableValue(res)
	}
	return bag
}

// lookupPath resolves a dotted path like "cashData.totalBalance" against
// the bag.
func lookupPath(bag map[string]interface{}, path string) interface{} {
	raw, err := json.Marshal(bag)
	if err != nil {
		return nil
	}
	value := gjson.GetBytes(raw, path)
	if !value.Exists() {
		return nil
	}
	return value.Value()
}

// Describe renders a one-line human summary of a SimResult, used by the
// flow-simulator CLI.
func (r SimResult) Describe() string {
	switch r.NodeType {
	case models.NodeTypeAPICall:
		return fmt.Sprintf("api_call %s tool=%s status=%s", r.NodeID, r.Tool, r.Status)
	case models.NodeTypeComputation:
		return fmt.Sprintf("computation %s %s => %v", r.NodeID, r.Formula, r.Result)
	case models.NodeTypeConditional:
		return fmt.Sprintf("conditional %s %s => %v", r.NodeID, r.Condition, r.Result)
	default:
		return r.NodeID
	}
}
