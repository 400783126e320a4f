package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finchat-engine/internal/catalog"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeRecordStore serves a fixed intent list and records flow writes.
type fakeRecordStore struct {
	mu          sync.Mutex
	intents     []models.Intent
	flows       map[string]*models.ResolutionFlow
	generatedBy map[string]models.GeneratedBy
	confidence  map[string]float64
	wrote       chan struct{}
}

func newFakeRecordStore(intents ...models.Intent) *fakeRecordStore {
	return &fakeRecordStore{
		intents:     intents,
		flows:       make(map[string]*models.ResolutionFlow),
		generatedBy: make(map[string]models.GeneratedBy),
		confidence:  make(map[string]float64),
	}
}

func (f *fakeRecordStore) GetIntent(ctx context.Context, id string) (*models.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.intents {
		if f.intents[i].ID == id {
			return &f.intents[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRecordStore) ListIntents(ctx context.Context, moduleID string) ([]models.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intents, nil
}

func (f *fakeRecordStore) CreateIntent(ctx context.Context, intent *models.Intent) error { return nil }
func (f *fakeRecordStore) UpdateIntent(ctx context.Context, intent *models.Intent) error { return nil }
func (f *fakeRecordStore) DeleteIntent(ctx context.Context, id string) error             { return nil }

func (f *fakeRecordStore) SetResolutionFlow(ctx context.Context, intentID string, flow *models.ResolutionFlow, generatedBy models.GeneratedBy, confidence float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flows[intentID] = flow
	f.generatedBy[intentID] = generatedBy
	f.confidence[intentID] = confidence
	if f.wrote != nil {
		select {
		case f.wrote <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeRecordStore) writtenFlows() map[string]*models.ResolutionFlow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.ResolutionFlow, len(f.flows))
	for k, v := range f.flows {
		out[k] = v
	}
	return out
}

func intentWithTool(id, tool string) models.Intent {
	return models.Intent{
		ID:           id,
		Name:         id,
		GeneratedBy:  models.GeneratedByAI,
		AIConfidence: 0.92,
		ResolutionFlow: &models.ResolutionFlow{
			DataPipeline: []models.PipelineNode{{
				NodeID:         "node-1",
				NodeType:       models.NodeTypeAPICall,
				Sequence:       1,
				OutputVariable: "data",
				MCPTool:        tool,
			}},
		},
	}
}

var billsCatalog = []models.ToolCatalogEntry{
	{ID: "get_all_bills"},
	{ID: "get_cash_balance"},
}

// ==========================
// Re-resolution Tests
// ==========================

func TestReresolveFlows_SettlesDeferredReferences(t *testing.T) {
	records := newFakeRecordStore(
		intentWithTool("intent-bills", "get_vendor_bills"),
		intentWithTool("intent-cash", "get_cash_balance"),
	)

	reresolveFlows(context.Background(), records, billsCatalog, logger.NewTestLogger(t))

	written := records.writtenFlows()

	// Only the intent whose reference changed is persisted.
	require.Len(t, written, 1)
	flow, ok := written["intent-bills"]
	require.True(t, ok)
	assert.Equal(t, "get_all_bills", flow.DataPipeline[0].MCPTool)
	assert.Equal(t, "node-1", flow.DataPipeline[0].NodeID)
	assert.Equal(t, 1, flow.DataPipeline[0].Sequence)

	// Provenance is carried through unchanged; settling a reference
	// does not rewrite who authored the flow.
	assert.Equal(t, models.GeneratedByAI, records.generatedBy["intent-bills"])
	assert.Equal(t, 0.92, records.confidence["intent-bills"])
}

func TestReresolveFlows_NilFlowsSkipped(t *testing.T) {
	noFlow := models.Intent{ID: "intent-empty", Name: "intent-empty"}
	records := newFakeRecordStore(noFlow)

	reresolveFlows(context.Background(), records, billsCatalog, logger.NewTestLogger(t))

	assert.Empty(t, records.writtenFlows())
}

func TestReresolveFlows_UnresolvableReferenceLeftAlone(t *testing.T) {
	records := newFakeRecordStore(intentWithTool("intent-odd", "launch_rockets"))

	reresolveFlows(context.Background(), records, billsCatalog, logger.NewTestLogger(t))

	assert.Empty(t, records.writtenFlows())
}

// ==========================
// Catalog Watcher Tests
// ==========================

func TestWatchCatalog_SettlesReferencesOnFirstPass(t *testing.T) {
	records := newFakeRecordStore(intentWithTool("intent-bills", "get_vendor_bills"))
	records.wrote = make(chan struct{}, 1)
	provider := catalog.NewStaticProvider(billsCatalog)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchCatalog(ctx, provider, records, time.Minute, logger.NewNoOpLogger())
	}()

	// The first pass runs before the ticker fires.
	select {
	case <-records.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("catalog watcher never settled the deferred reference")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("catalog watcher did not stop on cancellation")
	}

	written := records.writtenFlows()
	require.Len(t, written, 1)
	assert.Equal(t, "get_all_bills", written["intent-bills"].DataPipeline[0].MCPTool)
}

func TestCatalogFingerprint_OrderAndContentSensitive(t *testing.T) {
	a := []models.ToolCatalogEntry{{ID: "get_all_bills"}, {ID: "get_cash_balance"}}
	b := []models.ToolCatalogEntry{{ID: "get_cash_balance"}, {ID: "get_all_bills"}}
	c := []models.ToolCatalogEntry{{ID: "get_all_bills"}}

	assert.Equal(t, catalogFingerprint(a), catalogFingerprint(a))
	assert.NotEqual(t, catalogFingerprint(a), catalogFingerprint(b))
	assert.NotEqual(t, catalogFingerprint(a), catalogFingerprint(c))
	assert.Empty(t, catalogFingerprint(nil))
}
