// internal/reasoning/client_test.go
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finchat-engine/internal/common/config"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func testClient(t *testing.T, baseURL string) *Client {
	return NewClient(&config.ReasoningConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2000,
		MaxRetries: 2,
	}, logger.NewTestLogger(t))
}

func sseFrame(eventType string, data interface{}) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": data,
	})
	return "data: " + string(payload) + "\n\n"
}

func collect(t *testing.T, events <-chan models.PhaseEvent) []models.PhaseEvent {
	t.Helper()
	var out []models.PhaseEvent
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining event stream")
			return out
		}
	}
}

// ==========================
// Stream
// ==========================

func TestClient_Stream_ParsesEventsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/stream", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req TurnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "show my cash balance", req.Query)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("route_classified", map[string]interface{}{
			"path": "llm", "category": "cfo",
		}))
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, sseFrame("intent_detected", map[string]interface{}{
			"intent": map[string]interface{}{"name": "cash_balance", "confidence": 0.93},
		}))
		fmt.Fprint(w, sseFrame("complete", map[string]interface{}{
			"response": "You have $84,230.50.",
		}))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	events, err := client.Stream(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Query:          "show my cash balance",
	})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, models.EventRouteClassified, got[0].Type)
	assert.Equal(t, models.EventIntentDetected, got[1].Type)
	assert.Equal(t, models.EventComplete, got[2].Type)

	var route models.RouteClassification
	require.NoError(t, got[0].Decode(&route))
	assert.Equal(t, models.PathLLM, route.Path)
	assert.Equal(t, models.CategoryCFO, route.Category)
}

func TestClient_Stream_SkipsMalformedFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: this is not json\n\n")
		fmt.Fprint(w, "data: {\"notype\": true}\n\n")
		fmt.Fprint(w, sseFrame("complete", map[string]interface{}{"response": "done"}))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	events, err := client.Stream(context.Background(), TurnRequest{Query: "q"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventComplete, got[0].Type)
}

func TestClient_Stream_Non200Fails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Stream(context.Background(), TurnRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrReasoningFailed)
}

func TestClient_Stream_ContextCancelClosesChannel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame("connected", nil))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := testClient(t, server.URL)
	events, err := client.Stream(ctx, TurnRequest{Query: "q"})
	require.NoError(t, err)

	// First event arrives, then the consumer walks away.
	select {
	case ev := <-events:
		assert.Equal(t, models.EventConnected, ev.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no first event")
	}
	cancel()

	select {
	case _, ok := <-events:
		// Either a final buffered event or a clean close is acceptable; the
		// channel must terminate.
		if ok {
			_, ok = <-events
			assert.False(t, ok)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}

// ==========================
// Generate
// ==========================

func TestClient_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/flows/generate", r.URL.Path)

		var intent IntentContext
		require.NoError(t, json.NewDecoder(r.Body).Decode(&intent))
		assert.Equal(t, "cash_balance", intent.Name)

		json.NewEncoder(w).Encode(GeneratedFlow{
			DataPipeline: []models.PipelineNode{
				{NodeID: "n1", NodeType: models.NodeTypeAPICall, Sequence: 1, OutputVariable: "cashData", MCPTool: "get_cash_balance"},
			},
			ResponseConfig: &models.ResponseConfig{Type: "metric", Template: "{cashData.totalBalance|currency}"},
			AIConfidence:   0.91,
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	flow, err := client.Generate(context.Background(), IntentContext{Name: "cash_balance", ModuleID: "banking"})
	require.NoError(t, err)
	require.Len(t, flow.DataPipeline, 1)
	assert.Equal(t, 0.91, flow.AIConfidence)
}

func TestClient_Generate_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(GeneratedFlow{AIConfidence: 0.5})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	flow, err := client.Generate(context.Background(), IntentContext{Name: "x", ModuleID: "m"})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0.5, flow.AIConfidence)
}

func TestClient_Generate_ExhaustedRetriesFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Generate(context.Background(), IntentContext{Name: "x", ModuleID: "m"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestClient_Generate_TimeoutReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(&config.ReasoningConfig{
		BaseURL:    server.URL,
		Timeout:    50,
		MaxRetries: 0,
	}, logger.NewTestLogger(t))

	_, err := client.Generate(context.Background(), IntentContext{Name: "x", ModuleID: "m"})
	assert.ErrorIs(t, err, ErrReasoningTimeout)
}

// ==========================
// Fallback
// ==========================

func TestFallbackFlow_GeneratesPhrasesFromName(t *testing.T) {
	flow := FallbackFlow(IntentContext{Name: "cash_balance", ModuleID: "banking"})
	assert.Contains(t, flow.TrainingPhrases, "show me cash balance")
	assert.NotNil(t, flow.ResponseConfig)
	assert.Contains(t, flow.ResponseConfig.Template, "{result}")
	assert.Equal(t, 0.0, flow.AIConfidence)
}

func TestFallbackFlow_KeepsProvidedPhrases(t *testing.T) {
	flow := FallbackFlow(IntentContext{
		Name:            "cash_balance",
		TrainingPhrases: []string{"how much money do we have"},
	})
	assert.Equal(t, []string{"how much money do we have"}, flow.TrainingPhrases)
}

func TestFallbackResponse(t *testing.T) {
	assert.NotEmpty(t, FallbackResponse(nil))

	u := &models.AgentUnderstanding{
		MatchedIntent: &models.IntentRef{Name: "vendor_spend"},
	}
	assert.Contains(t, FallbackResponse(u), "vendor spend")
}
