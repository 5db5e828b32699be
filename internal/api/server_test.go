package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"fractalscan/adapters/ledger"
	"fractalscan/app"
	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
	"fractalscan/internal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replyScenario = `{"logs":[
	{"timestamp":1000,"replies":[1,2,3],"sender":"leader"},
	{"timestamp":1001,"replies":[4],"sender":"dev1"},
	{"timestamp":1025,"replies":[7,8,9,10],"sender":"leader"}
]}`

const parentScenario = `{"logs":[
	{"timestamp":1000,"message":"Hey team","parent":null},
	{"timestamp":1001,"message":"Reply 1","parent":1000},
	{"timestamp":1002,"message":"Reply 2","parent":1000},
	{"timestamp":1003,"message":"New thread","parent":null},
	{"timestamp":1004,"message":"Another reply","parent":1000},
	{"timestamp":1005,"message":"Thread 3","parent":null}
]}`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	logger := internal.NewLogger(internal.LogLevelError, io.Discard)
	svc := app.NewScanService(nil, nil, ledger.NewMemoryLedger(100), logger)
	return NewServer(svc, nil, logger, opts)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestFractalScan_ReplyScenario(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodPost, "/fractal_scan", replyScenario)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec fractal.Record
	decode(t, w, &rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "replies", rec.Mode.String())
	require.Len(t, rec.ChaosScores, fractal.TierCount)
	require.Len(t, rec.AlignmentFlags, fractal.TierCount)
	assert.Equal(t, 0.0, rec.ChaosScores[16])
	assert.Equal(t, 2.25, rec.ChaosScores[17])
	assert.False(t, rec.AlignmentFlags[17])
	assert.Equal(t, 0.0, rec.ChaosScores[24])
	assert.Equal(t, 4.0, rec.InfluenceScore)
	assert.Equal(t, 3, rec.Summary.MessageCount)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestFractalScan_ParentScenario(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodPost, "/fractal_scan", parentScenario)
	require.Equal(t, http.StatusOK, w.Code)

	var rec fractal.Record
	decode(t, w, &rec)
	assert.Equal(t, "parent", rec.Mode.String())
	assert.Equal(t, 1.25, rec.Summary.FractalDimension)
	assert.False(t, rec.Summary.Alert)
	assert.Equal(t, 3.0, rec.InfluenceScore)
}

func TestFractalScan_ModeQueryParam(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodPost, "/fractal_scan?mode=parent", replyScenario)
	require.Equal(t, http.StatusOK, w.Code)

	var rec fractal.Record
	decode(t, w, &rec)
	assert.Equal(t, "parent", rec.Mode.String())
	assert.Equal(t, 0.0, rec.InfluenceScore)
}

func TestFractalScan_NoLogs(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, body := range []string{"", `{}`, `{"logs":[]}`, `{"logs":null}`} {
		w := do(t, s, http.MethodPost, "/fractal_scan", body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)

		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, ErrorResponse{Error: "No logs provided", Code: "INVALID_INPUT"}, resp)
	}
}

func TestFractalScan_BadRequests(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodPost, "/fractal_scan", `{"logs":[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	w = do(t, s, http.MethodPost, "/fractal_scan", `{"logs":[{"timestamp":1}],"mode":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "sideways")

	w = do(t, s, http.MethodPost, "/fractal_scan", `{"logs":[{"timestamp":"soon"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFractalScan_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, Options{MaxBodyBytes: 64})
	w := do(t, s, http.MethodPost, "/fractal_scan", replyScenario)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestFractalScan_BindsWithoutContentType(t *testing.T) {
	s := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/fractal_scan", strings.NewReader(replyScenario))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec fractal.Record
	decode(t, w, &rec)
	assert.Equal(t, 4.0, rec.InfluenceScore)
}

func TestFractalScan_ConversationID(t *testing.T) {
	s := newTestServer(t, Options{})
	withID := func(id string) string {
		return `{"conversation_id":` + strconv.Quote(id) + `,` + strings.TrimPrefix(replyScenario, "{")
	}

	w := do(t, s, http.MethodPost, "/fractal_scan", withID("  team-a "))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec fractal.Record
	decode(t, w, &rec)
	assert.Equal(t, core.ConversationID("team-a"), rec.ConversationID)

	for _, bad := range []string{"   ", "team\tb", strings.Repeat("x", core.MaxConversationIDLength+1)} {
		w = do(t, s, http.MethodPost, "/fractal_scan", withID(bad))
		assert.Equal(t, http.StatusBadRequest, w.Code, "id %q", bad)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	}

	// rejected IDs never reach the ledger
	w = do(t, s, http.MethodGet, "/scans", "")
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)

	w = do(t, s, http.MethodPost, "/fractal_scan/batch", `{"conversations":[{"id":"   ","logs":[{"timestamp":1}]}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var batch BatchResponse
	decode(t, w, &batch)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "VALIDATION_ERROR", batch.Results[0].Error.Code)
}

func TestFractalScanBatch(t *testing.T) {
	s := newTestServer(t, Options{})
	body := `{"conversations":[
		{"id":"a",` + strings.TrimPrefix(replyScenario, "{") + `,
		{"id":"b","logs":[]},
		{"logs":[{"timestamp":1}],"mode":"bogus"},
		{"id":"d",` + strings.TrimPrefix(parentScenario, "{") + `
	]}`

	w := do(t, s, http.MethodPost, "/fractal_scan/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	decode(t, w, &resp)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)

	assert.Equal(t, "a", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].Scan)
	assert.Equal(t, 4.0, resp.Results[0].Scan.InfluenceScore)

	assert.Equal(t, "INVALID_INPUT", resp.Results[1].Error.Code)
	assert.Equal(t, "2", resp.Results[2].ID)
	assert.Equal(t, "VALIDATION_ERROR", resp.Results[2].Error.Code)

	require.NotNil(t, resp.Results[3].Scan)
	assert.Equal(t, "parent", resp.Results[3].Scan.Mode.String())
}

func TestFractalScanBatch_Limits(t *testing.T) {
	s := newTestServer(t, Options{MaxBatchSize: 1})

	w := do(t, s, http.MethodPost, "/fractal_scan/batch", `{"conversations":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/fractal_scan/batch", `{"conversations":[{"logs":[{"timestamp":1}]},{"logs":[{"timestamp":2}]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds the limit of 1")
}

func TestScans_GetListAndReport(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodPost, "/fractal_scan", replyScenario)
	require.Equal(t, http.StatusOK, w.Code)
	var created fractal.Record
	decode(t, w, &created)
	do(t, s, http.MethodPost, "/fractal_scan", parentScenario)

	w = do(t, s, http.MethodGet, "/scans/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got fractal.Record
	decode(t, w, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.ChaosScores, got.ChaosScores)

	w = do(t, s, http.MethodGet, "/scans?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Scans []fractal.Record `json:"scans"`
		Count int              `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "parent", list.Scans[0].Mode.String())

	w = do(t, s, http.MethodGet, "/scans/"+created.ID.String()+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "| 18 | 2.25 |")

	w = do(t, s, http.MethodGet, "/scans/"+created.ID.String()+"/report?format=html", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<table>")
}

func TestScans_Errors(t *testing.T) {
	s := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/scans/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/scans/0190a3b4-0000-7000-8000-000000000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = do(t, s, http.MethodGet, "/scans?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/scans/0190a3b4-0000-7000-8000-000000000001/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFractalScanReport_AdHoc(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodPost, "/fractal_scan/report?format=md", parentScenario)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "| Branching mode | parent |")

	w = do(t, s, http.MethodPost, "/fractal_scan/report", `{"logs":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["ledger"])
}

func TestServer_StreamsRecordedScans(t *testing.T) {
	logger := internal.NewLogger(internal.LogLevelError, io.Discard)
	hub := NewSSEHub(0)
	defer hub.Close()
	svc := app.NewScanService(nil, nil, nil, logger)
	svc.OnRecord(hub.Publish)
	s := NewServer(svc, hub, logger, Options{})

	events, unsubscribe := hub.Subscribe(AllConversations)
	defer unsubscribe()

	w := do(t, s, http.MethodPost, "/fractal_scan", `{"conversation_id":"team-a",`+strings.TrimPrefix(replyScenario, "{"))
	require.Equal(t, http.StatusOK, w.Code)

	event := <-events
	assert.Equal(t, "team-a", event.ConversationID)
	assert.Equal(t, 4.0, event.InfluenceScore)
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodGet, "/scans/0190a3b4-0000-7000-8000-000000000001", "")

	admin := NewAdminRouter(internal.NewLogger(internal.LogLevelError, io.Discard).Zerolog(), nil)
	w := httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(`route="/scans/:id"`)))
}
