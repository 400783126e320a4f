// Package resolver maps loosely-specified, often-hallucinated tool
// references to canonical ids from the tool catalog.
package resolver

import (
	"strings"

	"finchat-engine/internal/common/metrics"
	"finchat-engine/internal/models"
	"finchat-engine/pkg/registry"
)

// Method records how a reference was resolved, for metrics and audit logs.
type Method string

const (
	MethodExact      Method = "exact"
	MethodAlias      Method = "alias"
	MethodSimilarity Method = "similarity"
	// MethodDeferred means the catalog was empty: the normalized reference is
	// returned unchanged and the caller must re-resolve once the catalog
	// loads. Resolution is idempotent, so the deferred value round-trips.
	MethodDeferred Method = "deferred"
	MethodNone     Method = "none"
)

// similarityThreshold is the fixed acceptance score for the token fallback.
// The naive trailing-s folding and this threshold are known to misfire on
// tools that share scaffolding tokens (get_all_customers vs
// get_all_payments); the formula is kept as-is for compatibility with
// historical pipelines.
const similarityThreshold = 0.5

// reverseAliases maps synonym -> canonical id, built once from the
// versioned alias table. Read-only after init; safe for concurrent use.
var reverseAliases = buildReverseAliases(registry.ToolAliases())

func buildReverseAliases(table map[string][]string) map[string]string {
	rev := make(map[string]string)
	for canonical, synonyms := range table {
		for _, s := range synonyms {
			rev[strings.ToLower(s)] = canonical
		}
	}
	return rev
}

// Result carries the detailed outcome of one resolution.
type Result struct {
	ToolID string
	Method Method
	Score  float64
}

// Resolve maps a free-text tool reference to a canonical catalog id, or ""
// when no confident match exists. Empty references resolve to "".
func Resolve(reference string, catalog []models.ToolCatalogEntry) string {
	return ResolveDetailed(reference, catalog).ToolID
}

// ResolveDetailed is Resolve plus the method and score that produced the
// answer.
func ResolveDetailed(reference string, catalog []models.ToolCatalogEntry) Result {
	r := resolve(reference, catalog)
	metrics.ResolverOutcomes.WithLabelValues(string(r.Method)).Inc()
	return r
}

func resolve(reference string, catalog []models.ToolCatalogEntry) Result {
	normalized := Normalize(reference)
	if normalized == "" {
		return Result{Method: MethodNone}
	}

	// Empty catalog: defer resolution rather than guessing.
	if len(catalog) == 0 {
		return Result{ToolID: normalized, Method: MethodDeferred}
	}

	// 1. Exact match, case-insensitive, first hit wins.
	for _, entry := range catalog {
		if strings.ToLower(entry.ID) == normalized {
			return Result{ToolID: entry.ID, Method: MethodExact, Score: 1}
		}
	}

	// 2. Alias match against the static synonym table.
	if canonical, ok := reverseAliases[normalized]; ok {
		for _, entry := range catalog {
			if entry.ID == canonical {
				return Result{ToolID: canonical, Method: MethodAlias, Score: 1}
			}
		}
	}

	// 3. Token-similarity fallback. Catalog iteration order breaks ties:
	// first seen wins, so resolution stays reproducible.
	refTokens := strings.Split(normalized, "_")
	best := Result{Method: MethodNone}
	for _, entry := range catalog {
		score := tokenScore(refTokens, strings.Split(strings.ToLower(entry.ID), "_"))
		if hasListingToken(refTokens) && strings.HasPrefix(strings.ToLower(entry.ID), "get_all_") {
			score += 0.1
		}
		if score > best.Score {
			best = Result{ToolID: entry.ID, Method: MethodSimilarity, Score: score}
		}
	}

	if best.Score >= similarityThreshold {
		return best
	}
	return Result{Method: MethodNone}
}

// Normalize strips a leading @, trims, and lowercases a tool reference.
func Normalize(reference string) string {
	s := strings.TrimSpace(reference)
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenScore is matchingTokens / max(|ref|, |candidate|), where tokens match
// by equality or after stripping a trailing "s" from either side.
func tokenScore(ref, candidate []string) float64 {
	if len(ref) == 0 || len(candidate) == 0 {
		return 0
	}

	matching := 0
	for _, rt := range ref {
		for _, ct := range candidate {
			if tokensMatch(rt, ct) {
				matching++
				break
			}
		}
	}

	denom := len(ref)
	if len(candidate) > denom {
		denom = len(candidate)
	}
	return float64(matching) / float64(denom)
}

func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	return strings.TrimSuffix(a, "s") == b || a == strings.TrimSuffix(b, "s")
}

func hasListingToken(tokens []string) bool {
	for _, t := range tokens {
		switch t {
		case "all", "list", "fetch":
			return true
		}
	}
	return false
}
