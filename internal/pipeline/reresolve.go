// internal/pipeline/reresolve.go
package pipeline

import (
	"strings"

	"finchat-engine/internal/models"
	"finchat-engine/internal/resolver"
)

// Reresolve re-runs the tool resolver over every api_call node whose current
// mcpTool is not found verbatim in the new catalog. Nodes are updated in
// place when a different, valid id is found; nodeId and sequence never
// change. The returned slice lists the nodeIds that changed, for audit
// logging by the caller.
//
// This is the catch-up path for catalogs that load asynchronously after a
// pipeline was authored: deferred resolutions settle here.
func Reresolve(flow *models.ResolutionFlow, catalog []models.ToolCatalogEntry) []string {
	if flow == nil || len(catalog) == 0 {
		return nil
	}

	inCatalog := make(map[string]bool, len(catalog))
	for _, entry := range catalog {
		inCatalog[strings.ToLower(entry.ID)] = true
	}

	var changed []string
	for i := range flow.DataPipeline {
		node := &flow.DataPipeline[i]
		if node.NodeType != models.NodeTypeAPICall || node.MCPTool == "" {
			continue
		}
		if inCatalog[strings.ToLower(node.MCPTool)] {
			continue
		}

		resolved := resolver.Resolve(node.MCPTool, catalog)
		if resolved == "" || resolved == node.MCPTool {
			continue
		}

		node.MCPTool = resolved
		changed = append(changed, node.NodeID)
	}

	return changed
}
