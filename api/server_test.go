package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/agentflow/api"
	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/config"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/storage"
	"github.com/finresearch/agentflow/stream"
	"github.com/finresearch/agentflow/workflow"
)

func newTestServer(t *testing.T, g *workflow.Graph) (*api.Server, *workflow.Scheduler, *artifact.Store) {
	t.Helper()
	bus := stream.NewBus(64, nil)
	checkpoints := workflow.NewCheckpointStore(storage.NewMemoryBlobStore())
	sched, err := workflow.NewScheduler(g, checkpoints, bus, workflow.Options{DefaultNodeTimeout: time.Second})
	require.NoError(t, err)

	registry := contract.NewDefaultRegistry()
	store := artifact.NewStore(storage.NewMemoryBlobStore(), registry)
	server := api.NewServer(sched, store, bus, registry, config.NewRedactor(nil), nil)
	return server, sched, store
}

func twoNodeGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g := workflow.NewGraph()
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "alpha.step", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{
			Goto:   workflow.To("beta.step"),
			Update: workflow.StateDiff{NodeStatuses: map[string]workflow.NodeStatus{"alpha.step": workflow.StatusDone}},
		}, nil
	}}, workflow.NodePolicy{}))
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "beta.step", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		return workflow.Command{
			Goto:   workflow.End(),
			Update: workflow.StateDiff{NodeStatuses: map[string]workflow.NodeStatus{"beta.step": workflow.StatusDone}},
		}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("alpha.step")
	return g
}

func waitForThreadDone(t *testing.T, sched *workflow.Scheduler, threadID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		th, err := sched.State(context.Background(), threadID)
		require.NoError(t, err)
		if !th.IsRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("thread never settled")
}

func doJSON(t *testing.T, server *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestPostStreamStartsNewThread(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hello"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ThreadID  string `json:"thread_id"`
		StartedAt string `json:"started_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t1", resp.ThreadID)
	assert.NotEmpty(t, resp.StartedAt)
}

func TestPostStreamMissingThreadIDIsValidationError(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"message": "hello"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var payload struct {
		Detail []struct {
			Loc string `json:"loc"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Detail, 1)
	assert.Equal(t, "thread_id", payload.Detail[0].Loc)
}

func TestPostStreamNeitherMessageNorResumeIsValidationError(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostStreamMalformedJSONIsBadRequest(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	req := httptest.NewRequest(http.MethodPost, "/stream", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostStreamDoubleStartIsConflict(t *testing.T) {
	g := workflow.NewGraph()
	blocked := make(chan struct{})
	require.NoError(t, g.Add(workflow.NodeFunc{NodeID: "slow", Fn: func(context.Context, workflow.ThreadState) (workflow.Command, error) {
		<-blocked
		return workflow.Command{Goto: workflow.End()}, nil
	}}, workflow.NodePolicy{}))
	g.StartAt("slow")
	server, sched, _ := newTestServer(t, g)

	rec1 := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hi"})
	require.Equal(t, http.StatusOK, rec1.Code)

	rec2 := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hi again"})
	assert.Equal(t, http.StatusConflict, rec2.Code)

	close(blocked)
	waitForThreadDone(t, sched, "t1")
}

func TestGetThreadNotFoundIs404(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodGet, "/thread/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetArtifactNotFoundIs404(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodGet, "/api/artifacts/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetThreadReturnsStateAfterRun(t *testing.T) {
	server, sched, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	waitForThreadDone(t, sched, "t1")

	rec = doJSON(t, server, http.MethodGet, "/thread/t1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var th workflow.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th))
	assert.Equal(t, "done", th.Status)
}

func TestGetThreadAgentsAggregatesPerAgentStatus(t *testing.T) {
	server, sched, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	waitForThreadDone(t, sched, "t1")

	rec = doJSON(t, server, http.MethodGet, "/thread/t1/agents", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var statuses map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	assert.Equal(t, "done", statuses["alpha"])
	assert.Equal(t, "done", statuses["beta"])
}

func TestGetHistoryReturnsMessagesNewestFirst(t *testing.T) {
	server, sched, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hi there"})
	require.Equal(t, http.StatusOK, rec.Code)
	waitForThreadDone(t, sched, "t1")

	rec = doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "follow up"})
	require.Equal(t, http.StatusOK, rec.Code)
	waitForThreadDone(t, sched, "t1")

	rec = doJSON(t, server, http.MethodGet, "/history/t1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var msgs []workflow.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "follow up", msgs[0].Content)
	assert.Equal(t, "hi there", msgs[1].Content)
}

func TestStreamThreadEmitsReplayThenTerminatesOnDone(t *testing.T) {
	server, sched, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodPost, "/stream", map[string]any{"thread_id": "t1", "message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	waitForThreadDone(t, sched, "t1")

	req := httptest.NewRequest(http.MethodGet, "/stream/t1", nil)
	rec = httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		server.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler never terminated for a completed thread")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "data: null\n")
	assert.Contains(t, body, `"type"`)
}

func TestGetContractsListsRegisteredKinds(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodGet, "/api/contracts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var kinds []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kinds))
	assert.Contains(t, kinds, contract.KindNewsItemsList+"/"+contract.Version1)
}

func TestGetContractSchemaUnknownKindIs404(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodGet, "/api/contracts/bogus.kind/schema", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/contracts/"+contract.KindDebateVerdict+"/schema", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "properties")
}

func TestStreamThreadRejectsNonIntegerAfter(t *testing.T) {
	server, _, _ := newTestServer(t, twoNodeGraph(t))

	rec := doJSON(t, server, http.MethodGet, "/stream/t1?after=not-a-number", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
