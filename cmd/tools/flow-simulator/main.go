// cmd/tools/flow-simulator/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
	"finchat-engine/internal/pipeline"
	"finchat-engine/internal/resolver"
	"finchat-engine/internal/template"
	"finchat-engine/pkg/registry"
)

func main() {
	intentPath := flag.String("intent", "", "Path to intent JSON document")
	catalogPath := flag.String("catalog", "", "Path to tool catalog JSON (optional; empty catalog defers resolution)")
	entitiesJSON := flag.String("entities", "{}", "Entity values as a JSON object")
	asJSON := flag.Bool("json", false, "Emit machine-readable JSON instead of text")
	flag.Parse()

	if *intentPath == "" {
		fmt.Println("Error: -intent is required.")
		flag.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*intentPath)
	if err != nil {
		fatal("reading intent document: %v", err)
	}

	// Schema first, so structural problems surface before semantic ones.
	violations, err := registry.ValidateDocument(registry.IntentDocumentSchema, raw)
	if err != nil {
		fatal("schema validation: %v", err)
	}
	if len(violations) > 0 {
		fmt.Println("Intent document failed schema validation:")
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		os.Exit(1)
	}

	var intent models.Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		fatal("parsing intent document: %v", err)
	}
	if intent.ResolutionFlow == nil {
		fmt.Printf("Intent %q has no resolution flow; nothing to simulate.\n", intent.Name)
		return
	}

	var entityValues map[string]interface{}
	if err := json.Unmarshal([]byte(*entitiesJSON), &entityValues); err != nil {
		fatal("parsing -entities: %v", err)
	}

	catalog := loadCatalog(*catalogPath)

	result := pipeline.Validate(intent.ResolutionFlow, intent.Entities)
	lintFindings := template.Lint(intent.ResolutionFlow.ResponseConfig.Template)

	log := logger.NewNoOpLogger()
	sim := pipeline.NewSimulator(catalog, log)
	results := sim.Simulate(intent.ResolutionFlow, entityValues)
	bag := pipeline.DataBag(results, entityValues)
	rendered := template.Render(intent.ResolutionFlow.ResponseConfig.Template, bag)

	if *asJSON {
		out := map[string]interface{}{
			"intent":        intent.Name,
			"validation":    result,
			"templateLint":  lintFindings,
			"simulation":    results,
			"rendered":      rendered,
			"aliasVersion":  registry.AliasTableVersion,
			"catalogLoaded": len(catalog),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		if !result.Valid {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Intent: %s (%s)\n", intent.Name, intent.ID)
	fmt.Printf("Pipeline nodes: %d, catalog tools: %d\n\n", len(intent.ResolutionFlow.DataPipeline), len(catalog))

	if len(result.Findings) == 0 {
		fmt.Println("Validation: OK")
	} else {
		fmt.Printf("Validation: %d finding(s)\n", len(result.Findings))
		for _, f := range result.Findings {
			fmt.Printf("  [%s] %s: %s\n", f.Code, f.NodeID, f.Message)
		}
	}

	if len(lintFindings) > 0 {
		fmt.Printf("Template lint: %d finding(s)\n", len(lintFindings))
		for _, f := range lintFindings {
			fmt.Printf("  - %s\n", f)
		}
	}

	fmt.Println("\nSimulation:")
	for _, name := range sortedKeys(results) {
		res := results[name]
		fmt.Printf("  %s: %s\n", name, res.Describe())
		if res.Status == pipeline.StatusUnresolved {
			fmt.Printf("    note: %q did not resolve against the catalog (normalized: %s)\n",
				res.Tool, resolver.Normalize(res.Tool))
		}
	}

	fmt.Println("\nRendered response:")
	fmt.Println(rendered)

	if !result.Valid {
		os.Exit(1)
	}
}

func loadCatalog(path string) []models.ToolCatalogEntry {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		fatal("reading catalog: %v", err)
	}
	if violations, err := registry.ValidateDocument(registry.ToolCatalogSchema, raw); err != nil {
		fatal("catalog schema validation: %v", err)
	} else if len(violations) > 0 {
		fmt.Println("Catalog failed schema validation:")
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		os.Exit(1)
	}

	var doc struct {
		Tools []models.ToolCatalogEntry `json:"tools"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		fatal("parsing catalog: %v", err)
	}
	return doc.Tools
}

func sortedKeys(m map[string]pipeline.SimResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fatal(format string, args ...interface{}) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}
