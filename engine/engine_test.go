package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/remiges-tech/batchsched/engine"
	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAdapterDeterministicResponse(t *testing.T) {
	adapter := &engine.MockAdapter{BaseLatency: time.Millisecond, PerItemLatency: 0}

	tasks := []*taskstore.Task{
		{TaskID: "1", Prompt: "What is Python?", Parameters: taskstore.Parameters{MaxTokens: 100}},
	}

	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, strings.HasPrefix(outcomes[0].Response, "[Batched mock response "))
	assert.Equal(t, "mock", outcomes[0].Source)
	assert.Greater(t, outcomes[0].TokensGenerated, 0)
}

func TestMockAdapterCapsTokensAtMaxTokens(t *testing.T) {
	adapter := &engine.MockAdapter{BaseLatency: time.Millisecond}
	tasks := []*taskstore.Task{
		{TaskID: "1", Prompt: strings.Repeat("word ", 100), Parameters: taskstore.Parameters{MaxTokens: 5}},
	}

	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, 5, outcomes[0].TokensGenerated)
}

func TestRealAdapterParsesUpstreamResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}},
			},
			"usage": map[string]int{"completion_tokens": 3},
		})
	}))
	defer server.Close()

	adapter := engine.NewRealAdapter(server.URL, "default-model", time.Second, false)
	tasks := []*taskstore.Task{
		{TaskID: "1", Prompt: "hi", Parameters: taskstore.Parameters{MaxTokens: 10}},
	}

	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Err)
	assert.Equal(t, "hello there", outcomes[0].Response)
	assert.Equal(t, 3, outcomes[0].TokensGenerated)
	assert.Equal(t, "real", outcomes[0].Source)
}

func TestRealAdapterFallsBackOnUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := engine.NewRealAdapter(server.URL, "default-model", time.Second, false)
	tasks := []*taskstore.Task{
		{TaskID: "1", Prompt: "hi", Parameters: taskstore.Parameters{MaxTokens: 10}},
	}

	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Err)
	assert.Equal(t, "mock-fallback", outcomes[0].Source)
}

func TestRealAdapterFailsTaskWhenFallbackDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := engine.NewRealAdapter(server.URL, "default-model", time.Second, true)
	tasks := []*taskstore.Task{
		{TaskID: "1", Prompt: "hi"},
	}

	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
}

func TestRealAdapterOneSlowTaskDoesNotBlockOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) > 0 && body.Messages[0].Content == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
			"usage":   map[string]int{"completion_tokens": 1},
		})
	}))
	defer server.Close()

	adapter := engine.NewRealAdapter(server.URL, "default-model", 2*time.Second, false)
	tasks := []*taskstore.Task{
		{TaskID: "slow", Prompt: "slow"},
		{TaskID: "fast", Prompt: "fast"},
	}

	start := time.Now()
	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Less(t, elapsed, 100*time.Millisecond)
}

// TestRealAdapterAlternatingUpstreamFailuresFallBackPerTask grounds scenario
// S5: an upstream that fails every other request still yields a complete
// batch, with sources split evenly between "real" and "mock-fallback".
func TestRealAdapterAlternatingUpstreamFailuresFallBackPerTask(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
			"usage":   map[string]int{"completion_tokens": 1},
		})
	}))
	defer server.Close()

	adapter := engine.NewRealAdapter(server.URL, "default-model", time.Second, false)
	tasks := make([]*taskstore.Task, 6)
	for i := range tasks {
		tasks[i] = &taskstore.Task{TaskID: string(rune('a' + i)), Prompt: "hi", Parameters: taskstore.Parameters{MaxTokens: 10}}
	}

	outcomes, err := adapter.ProcessBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, outcomes, 6)

	var real, fallback int
	for _, o := range outcomes {
		assert.Nil(t, o.Err)
		switch o.Source {
		case "real":
			real++
		case "mock-fallback":
			fallback++
		default:
			t.Fatalf("unexpected source %q", o.Source)
		}
	}
	assert.Equal(t, 3, real)
	assert.Equal(t, 3, fallback)
}

func TestRealAdapterProbeReportsUpstreamHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := engine.NewRealAdapter(server.URL, "default-model", time.Second, false)
	assert.NoError(t, adapter.Probe(context.Background()))
}
