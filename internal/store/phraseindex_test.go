package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finchat-engine/internal/common/config"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestPhraseIndex(t *testing.T, minConfidence float64) *PhraseIndex {
	idx, err := NewPhraseIndex(config.IndexConfig{MinConfidence: minConfidence},
		logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func indexedIntent(id, name string, phrases ...string) *models.Intent {
	return &models.Intent{ID: id, Name: name, TrainingPhrases: phrases}
}

// ==========================
// Match Tests
// ==========================

func TestPhraseIndex_Match_ExactPhrase(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.6)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"show my cash balance", "how much cash do I have")))

	match, err := idx.Match("show my cash balance")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "intent-cash", match.IntentID)
	assert.Equal(t, "Check Cash Balance", match.Intent.Name)
	assert.Equal(t, "show my cash balance", match.Phrase)
	assert.InDelta(t, 1.0, match.Intent.Confidence, 0.001)
}

func TestPhraseIndex_Match_PicksBestOverlap(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.3)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"show my cash balance")))
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-runway", "Check Runway",
		"show my runway in months")))

	match, err := idx.Match("show my runway")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "intent-runway", match.IntentID)
	// Three of the five tokens of "show my runway in months" are shared.
	assert.InDelta(t, 0.6, match.Intent.Confidence, 0.001)
}

func TestPhraseIndex_Match_BelowFloorReturnsNil(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.9)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"show my cash balance")))

	match, err := idx.Match("cash received from customers last quarter")
	assert.NoError(t, err)
	assert.Nil(t, match)
}

func TestPhraseIndex_Match_NoHitsReturnsNil(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.6)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"show my cash balance")))

	match, err := idx.Match("unrelated gibberish entirely")
	assert.NoError(t, err)
	assert.Nil(t, match)
}

func TestPhraseIndex_Match_EmptyIndex(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.6)

	match, err := idx.Match("anything at all")
	assert.NoError(t, err)
	assert.Nil(t, match)
}

// ==========================
// Indexing Tests
// ==========================

func TestPhraseIndex_IndexIntent_StripsPlaceholders(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.5)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-vendor", "Vendor Spend",
		"how much did I pay {{vendorName}} last month")))

	// The placeholder token never reaches the index; the rest of the
	// phrase still matches.
	match, err := idx.Match("how much did I pay acme last month")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "intent-vendor", match.IntentID)
	assert.NotContains(t, match.Phrase, "{{")
}

func TestPhraseIndex_IndexIntent_SkipsPlaceholderOnlyPhrase(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.1)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-vendor", "Vendor Spend",
		"{{vendorName}}", "vendor spend summary")))

	match, err := idx.Match("vendor spend summary")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "vendor spend summary", match.Phrase)
}

func TestPhraseIndex_IndexIntent_ReindexReplacesPhrases(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.6)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"show my cash balance")))

	// Re-index with a disjoint phrase set; the old phrase must be gone.
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"current liquidity position")))

	old, err := idx.Match("show my cash balance")
	require.NoError(t, err)
	assert.Nil(t, old)

	fresh, err := idx.Match("current liquidity position")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, "intent-cash", fresh.IntentID)
}

func TestPhraseIndex_RemoveIntent_DropsAllPhrases(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.6)
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-cash", "Check Cash Balance",
		"show my cash balance", "how much cash do I have")))
	require.NoError(t, idx.IndexIntent(indexedIntent("intent-runway", "Check Runway",
		"how long is my runway")))

	require.NoError(t, idx.RemoveIntent("intent-cash"))

	gone, err := idx.Match("show my cash balance")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := idx.Match("how long is my runway")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "intent-runway", kept.IntentID)
}

func TestPhraseIndex_RemoveIntent_UnknownIDIsNoOp(t *testing.T) {
	idx := newTestPhraseIndex(t, 0.6)
	assert.NoError(t, idx.RemoveIntent("never-indexed"))
}

// ==========================
// Token Overlap Tests
// ==========================

func TestTokenOverlap_Scoring(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "show my balance", "show my balance", 1.0},
		{"case insensitive", "Show My Balance", "show my balance", 1.0},
		{"partial", "show my runway", "show my runway in months", 0.6},
		{"disjoint", "vendor spend", "cash balance", 0.0},
		{"empty query", "", "show my balance", 0.0},
		{"duplicate tokens count once", "cash cash cash", "cash balance", 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tokenOverlap(tt.a, tt.b), 0.001)
		})
	}
}
