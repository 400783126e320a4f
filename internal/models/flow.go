// internal/models/flow.go
package models

// NodeType enumerates pipeline step kinds.
type NodeType string

const (
	NodeTypeAPICall     NodeType = "api_call"
	NodeTypeComputation NodeType = "computation"
	NodeTypeConditional NodeType = "conditional"
)

// ParameterSource says where an api_call parameter value comes from.
type ParameterSource string

const (
	SourceStatic       ParameterSource = "static"
	SourceEntity       ParameterSource = "entity"
	SourceContext      ParameterSource = "context"
	SourcePreviousNode ParameterSource = "previous_node"
)

// Parameter is one named input of an api_call node.
type Parameter struct {
	Name   string          `json:"name"`
	Value  string          `json:"value"`
	Source ParameterSource `json:"source"`
}

// PipelineNode is one step in an intent's data-fetch plan. Sequence is
// 1-based and must be contiguous and unique across the pipeline; execution
// is strictly in ascending sequence order, so authors must place
// dependencies earlier.
type PipelineNode struct {
	NodeID         string   `json:"nodeId"`
	NodeType       NodeType `json:"nodeType"`
	Sequence       int      `json:"sequence"`
	OutputVariable string   `json:"outputVariable"`
	Description    string   `json:"description"`

	// api_call: MCPTool is a reference, not guaranteed canonical; it is
	// passed through the tool resolver before execution.
	MCPTool    string      `json:"mcpTool,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`

	// computation: an expression over earlier outputVariables and entities.
	Formula string `json:"formula,omitempty"`

	// conditional: a boolean expression over prior outputs.
	Condition string `json:"condition,omitempty"`
}

// Enrichment is a named post-processing/insight step applied to pipeline
// output. Type keys into an external enrichment-type catalog; Config is an
// open map validated only at the consumption point.
type Enrichment struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Config      map[string]interface{} `json:"config,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// ResponseConfig shapes the final rendered message.
type ResponseConfig struct {
	Type              string   `json:"type"` // metric, ranked_list, table, ...
	Template          string   `json:"template"`
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`
}

// ResolutionFlow is the pipeline + enrichments + response template attached
// to an intent. The engine only reads/transforms copies; ownership is with
// the record store.
type ResolutionFlow struct {
	DataPipeline   []PipelineNode `json:"dataPipeline"`
	Enrichments    []Enrichment   `json:"enrichments,omitempty"`
	ResponseConfig ResponseConfig `json:"responseConfig"`
}

// ToolCatalogEntry is one canonical tool in the external catalog. Catalog
// order must be preserved end to end; the resolver breaks ties by first-seen
// position.
type ToolCatalogEntry struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}
