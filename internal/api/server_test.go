package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reviewguard/adapters/sqlite"
	"reviewguard/app"
	"reviewguard/domain/core"
	"reviewguard/domain/dataset"
	"reviewguard/internal"
	"reviewguard/internal/errors"
	"reviewguard/internal/migration"
	"reviewguard/internal/selftrain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticTables struct {
	table *dataset.FeatureTable
}

func (s staticTables) LoadTable(context.Context, dataset.Schema) (*dataset.FeatureTable, error) {
	return s.table, nil
}

func quiet() *internal.Logger {
	return internal.NewLoggerTo(io.Discard, internal.LogLevelError)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	table, err := dataset.NewFeatureTable(
		dataset.Schema{FeatureColumns: []string{"x", "y"}, TargetColumn: "flagged"},
		[][]float64{{0, 1}, {0.1, 1.2}, {0.2, 0.9}, {0.3, 1.1}, {5, 7}, {5.1, 7.2}, {5.2, 6.9}, {5.3, 7.1}},
		[]string{"N", "N", "N", "N", "Y", "Y", "Y", "Y"},
	)
	require.NoError(t, err)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	repo := sqlite.NewRunRepository(db)
	t.Cleanup(func() { repo.Close() })

	hub := NewSSEHub(quiet())
	t.Cleanup(hub.Close)

	svc := app.NewDetectionService(app.DetectionServiceConfig{
		Tables:     staticTables{table: table},
		Repository: repo,
		Events:     NewSSEEventBroadcaster(hub),
		Logger:     quiet(),
	})
	defaults := app.DetectionRequest{
		Algorithms:    []string{"naive_bayes"},
		Threshold:     0.7,
		Iterations:    3,
		TestFraction:  0.25,
		Seed:          42,
		PositiveLabel: "Y",
		Workers:       1,
	}
	return NewServer(svc, defaults, hub, quiet())
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealthz(t *testing.T) {
	w := do(newTestServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodPost, "/api/runs", `{"iterations": 2, "algorithms": ["nb"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created app.DetectionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Runs, 1)
	rec := created.Runs[0].Record
	assert.Equal(t, "naive_bayes", rec.Algorithm)
	assert.Equal(t, 2, rec.Params.MaxIterations)
	assert.Equal(t, 0.7, rec.Params.Threshold, "defaults fill omitted fields")
	assert.Equal(t, 8, created.Samples)

	w = do(s, http.MethodGet, "/api/runs/"+rec.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"algorithm":"naive_bayes"`)

	w = do(s, http.MethodGet, "/api/runs/"+rec.ID.String()+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), rec.ID.String())
	assert.Contains(t, w.Body.String(), "Confusion matrix")

	w = do(s, http.MethodGet, "/api/runs?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs  []json.RawMessage `json:"runs"`
		Limit int               `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Runs, 1)
	assert.Equal(t, 10, list.Limit)
}

func TestCreateRun_EmptyBodyUsesDefaults(t *testing.T) {
	w := do(newTestServer(t), http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"threshold above one", http.MethodPost, "/api/runs", `{"threshold": 1.01}`, http.StatusBadRequest, errors.CodeInvalidInput},
		{"unknown algorithm", http.MethodPost, "/api/runs", `{"algorithms": ["svm"]}`, http.StatusBadRequest, errors.CodeInvalidInput},
		{"malformed body", http.MethodPost, "/api/runs", `{"threshold": "high"}`, http.StatusBadRequest, errors.CodeInvalidInput},
		{"bad run id", http.MethodGet, "/api/runs/not-a-uuid", "", http.StatusBadRequest, errors.CodeInvalidInput},
		{"missing run", http.MethodGet, "/api/runs/" + core.NewRunID().String(), "", http.StatusNotFound, errors.CodeNotFound},
		{"missing report", http.MethodGet, "/api/runs/" + core.NewRunID().String() + "/report", "", http.StatusNotFound, errors.CodeNotFound},
		{"bad limit", http.MethodGet, "/api/runs?limit=ten", "", http.StatusBadRequest, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.CodeValidationError))
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.CodeClassifierFailure))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.CodeDatabaseError))
}

func receive(t *testing.T, ch <-chan StreamEvent) (StreamEvent, bool) {
	t.Helper()
	select {
	case e := <-ch:
		return e, true
	case <-time.After(200 * time.Millisecond):
		return StreamEvent{}, false
	}
}

func TestSSEHub_RoutesByStream(t *testing.T) {
	hub := NewSSEHub(quiet())
	defer hub.Close()

	one, unsubscribeOne := hub.Subscribe("batch-1")
	defer unsubscribeOne()
	all, unsubscribeAll := hub.Subscribe("")
	defer unsubscribeAll()
	require.Eventually(t, func() bool {
		return hub.GetClientCount("batch-1") == 1 && hub.GetClientCount("") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast(StreamEvent{StreamID: "batch-2", EventType: app.EventRunCompleted})
	e, ok := receive(t, all)
	require.True(t, ok)
	assert.Equal(t, "batch-2", e.StreamID)
	_, ok = receive(t, one)
	assert.False(t, ok, "other streams are not delivered")

	hub.Broadcast(StreamEvent{StreamID: "batch-1", EventType: app.EventIteration})
	_, ok = receive(t, one)
	assert.True(t, ok)
	_, ok = receive(t, all)
	assert.True(t, ok)

	unsubscribeOne()
	require.Eventually(t, func() bool { return hub.GetClientCount("batch-1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestSSEEventBroadcaster_Publish(t *testing.T) {
	hub := NewSSEHub(quiet())
	defer hub.Close()
	events, unsubscribe := hub.Subscribe("s")
	defer unsubscribe()
	require.Eventually(t, func() bool { return hub.GetClientCount("s") == 1 }, time.Second, 5*time.Millisecond)

	id := core.NewRunID()
	NewSSEEventBroadcaster(hub).Publish(app.RunEvent{
		StreamID:  "s",
		RunID:     id,
		Algorithm: "naive_bayes",
		Type:      app.EventIteration,
		Iteration: &selftrain.IterationStats{Iteration: 2, TrainingSize: 7, HeldOutSize: 1, Promoted: 1, MeanConfidence: 0.9},
	})

	e, ok := receive(t, events)
	require.True(t, ok)
	assert.Equal(t, id.String(), e.RunID)
	assert.Equal(t, app.EventIteration, e.EventType)
	assert.Equal(t, 2, e.Data["iteration"])
	assert.Equal(t, 0.9, e.Data["mean_confidence"])
}
