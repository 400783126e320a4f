// cmd/engine-server/reresolver.go
package main

import (
	"context"
	"strings"
	"time"

	"finchat-engine/internal/batch"
	"finchat-engine/internal/catalog"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
	"finchat-engine/internal/pipeline"
	"finchat-engine/internal/store"
)

// watchCatalog polls the catalog provider and, whenever the tool set
// changes, re-resolves the tool references of every stored flow. Deferred
// references authored before the catalog loaded settle on the first pass.
func watchCatalog(ctx context.Context, provider catalog.Provider, records store.RecordStore, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastFingerprint string
	for {
		tools, err := provider.List(ctx)
		if err != nil {
			log.Warn("catalog poll failed", map[string]interface{}{"error": err.Error()})
		} else if fp := catalogFingerprint(tools); fp != lastFingerprint {
			reresolveFlows(ctx, records, tools, log)
			lastFingerprint = fp
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reresolveFlows runs the re-resolution rule over every stored intent,
// persisting only flows whose tool references actually changed.
func reresolveFlows(ctx context.Context, records store.RecordStore, tools []models.ToolCatalogEntry, log logger.Logger) {
	intents, err := records.ListIntents(ctx, "")
	if err != nil {
		log.Error("intent list failed for re-resolution", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	runner := batch.NewRunner(log)
	progress, err := runner.Run(ctx, len(intents), func(ctx context.Context, i int) error {
		intent := &intents[i]
		changed := pipeline.Reresolve(intent.ResolutionFlow, tools)
		if len(changed) == 0 {
			return nil
		}
		log.Info("tool references settled", map[string]interface{}{
			"intentId": intent.ID,
			"nodes":    changed,
		})
		return records.SetResolutionFlow(ctx, intent.ID, intent.ResolutionFlow,
			intent.GeneratedBy, intent.AIConfidence)
	}, nil)
	if err != nil {
		log.Warn("re-resolution interrupted", map[string]interface{}{
			"current": progress.Current,
			"total":   progress.Total,
		})
		return
	}

	log.Info("catalog re-resolution finished", map[string]interface{}{
		"intents":   progress.Total,
		"succeeded": progress.Succeeded,
		"failed":    progress.Failed,
	})
}

// catalogFingerprint identifies a tool set by its ordered ids.
func catalogFingerprint(tools []models.ToolCatalogEntry) string {
	ids := make([]string, len(tools))
	for i, tool := range tools {
		ids[i] = tool.ID
	}
	return strings.Join(ids, "\n")
}
