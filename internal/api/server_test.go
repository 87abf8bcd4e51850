package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/pathstore"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

const document = `{
	"file_id": "paper.pdf",
	"fragments": [
		{"id": "h1", "page_number": 1, "bbox": [50, 50, 300, 70], "class": "title",
		 "text": {"content": "1 Introduction", "fonts": [{"name": "B", "size": 18}]}},
		{"id": "p1", "page_number": 1, "bbox": [50, 100, 500, 150], "class": "text",
		 "text": {"content": "See Table 1."}},
		{"id": "tt", "page_number": 1, "bbox": [50, 200, 300, 215], "class": "table_title",
		 "text": {"content": "Table 1: Results"}},
		{"id": "tb", "page_number": 1, "bbox": [50, 220, 500, 400], "class": "table",
		 "text": {"content": "<table><tr><td>1</td></tr></table>"}}
	]
}`

func newTestServer(t *testing.T, exporter *pipeline.Exporter) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Load()
	cfg.WorkerCount = 1
	cfg.Build.Strategy = "fixed"

	opts, err := pipeline.NewOptions(cfg.Build)
	require.NoError(t, err)
	orch := pipeline.NewOrchestrator(cfg, pipeline.NewBuilder(opts, log), exporter, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, log, cfg)
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/build", strings.NewReader(document), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out pipeline.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "fixed", out.Strategy)
	assert.Equal(t, 4, out.Analysis.NumNodes)
	// 3 hierarchy, 1 reference, 1 title
	assert.Len(t, out.Edges, 5)
	require.Len(t, out.References, 1)
	assert.Equal(t, "tt", out.References[0].TargetID)
	assert.Equal(t, []string{"p1"}, out.Mentions.By["tt"])
	require.Len(t, out.Chunks, 1)
	assert.Equal(t, "paper.pdf", out.Chunks[0].Metadata.FileID)

	rec = do(t, s, http.MethodGet, "/api/stats/builds", nil, "")
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestBuild_Layout(t *testing.T) {
	s := newTestServer(t, nil)
	layout := `{"file_id": "f", "pages": [{"page_number": 1, "boxes": [
		{"label": "text", "score": 0.9, "coordinate": [1, 2, 3, 4]}]}]}`
	rec := do(t, s, http.MethodPost, "/api/build?input=layout", strings.NewReader(layout), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var out pipeline.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Analysis.NumNodes)
}

func TestBuild_BadInput(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/build", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = do(t, s, http.MethodPost, "/api/build?input=xml", strings.NewReader(document), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutline(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/outline", strings.NewReader(document), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# 1 Introduction\n"))

	rec = do(t, s, http.MethodPost, "/api/outline?format=html", strings.NewReader(document), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>1 Introduction</h1>")

	rec = do(t, s, http.MethodPost, "/api/outline?format=pdf", strings.NewReader(document), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestJobs_SubmitAndPoll(t *testing.T) {
	s := newTestServer(t, nil)

	body, ct := multipartBody(t, map[string]string{"doc_id": "d1"}, map[string]string{"document": document})
	rec := do(t, s, http.MethodPost, "/api/jobs", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted struct {
		JobID   string `json:"job_id"`
		DocID   string `json:"doc_id"`
		PollURL string `json:"poll_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "d1", accepted.DocID)
	assert.Equal(t, "/api/jobs/"+accepted.JobID+"/status", accepted.PollURL)

	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, accepted.PollURL, nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &snap)
		return snap.Status == pipeline.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, snap.Progress.Fragments)
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, 5, snap.Analysis.NumEdges)
}

func TestJobs_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	body, ct := multipartBody(t, nil, map[string]string{"file": "%PDF"})
	rec := do(t, s, http.MethodPost, "/api/jobs", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "document part is required")

	body, ct = multipartBody(t, nil, map[string]string{"document": "not json"})
	rec = do(t, s, http.MethodPost, "/api/jobs", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/jobs/nope/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_ExportDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodDelete, "/api/documents/d1", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocuments_WithStore(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/kv/documents/d1/meta":
			json.NewEncoder(w).Encode(map[string]any{"key_path": "documents/d1/meta", "value": map[string]any{"chunks": 1}})
		case r.URL.Path == "/kv/documents/d1/chunks/*":
			json.NewEncoder(w).Encode(map[string]any{"nodes": []map[string]any{{"key_path": "documents/d1/chunks/0", "value": map[string]any{"index": 0}}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer store.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newTestServer(t, pipeline.NewExporter(pathstore.NewClient(store.URL, "k"), log))

	rec := do(t, s, http.MethodGet, "/api/documents/d1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"doc_id":"d1","meta":{"chunks":1}}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/documents/d2", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/documents/d1/chunks", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"doc_id":"d1","chunks":[{"index":0}]}`, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/documents/d1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/kv/documents/d1"}, deleted)
}
