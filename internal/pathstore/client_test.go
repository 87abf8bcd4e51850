package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

func newStore(t *testing.T, status int) (*Client, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("nope"))
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/kv/documents/d1/meta":
			_ = json.NewEncoder(w).Encode(map[string]any{"key_path": "documents/d1/meta", "value": map[string]any{"num_nodes": 3}})
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", "secret")
	t.Cleanup(c.Close)
	return c, &reqs
}

func TestClient_PutAndGet(t *testing.T) {
	c, reqs := newStore(t, http.StatusOK)
	ctx := context.Background()

	require.NoError(t, c.PutNode(ctx, "documents/d1/meta", NodeRequest{Value: map[string]any{"num_nodes": 3}}))
	node, err := c.GetNode(ctx, "documents/d1/meta")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "documents/d1/meta", node.Key)

	missing, err := c.GetNode(ctx, "documents/d2/meta")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.Len(t, *reqs, 3)
	first := (*reqs)[0]
	assert.Equal(t, http.MethodPut, first.Method)
	assert.Equal(t, "/kv/documents/d1/meta", first.Path)
	assert.Equal(t, "Bearer secret", first.Auth)
}

func TestClient_DeleteRecursive(t *testing.T) {
	c, reqs := newStore(t, http.StatusOK)
	require.NoError(t, c.DeleteNode(context.Background(), "documents/d1", true))
	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].Method)
	assert.Equal(t, "children=true", (*reqs)[0].Query)
}

func TestClient_RetryableStatus(t *testing.T) {
	c, _ := newStore(t, http.StatusServiceUnavailable)
	err := c.PutNode(context.Background(), "k", NodeRequest{Value: 1})
	require.Error(t, err)

	var retryErr *RetryableError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, http.StatusServiceUnavailable, retryErr.StatusCode)
}

func TestClient_PermanentStatus(t *testing.T) {
	c, _ := newStore(t, http.StatusBadRequest)
	err := c.PutLink(context.Background(), LinkRequest{From: "a", To: "b"})
	require.Error(t, err)

	var retryErr *RetryableError
	assert.False(t, errors.As(err, &retryErr))
	assert.Contains(t, err.Error(), "status 400")
}

func TestGraphSink(t *testing.T) {
	c, reqs := newStore(t, http.StatusOK)
	sink := GraphSink{Client: c, Source: "docgraph:d1"}
	ctx := context.Background()

	require.NoError(t, sink.PutNode(ctx, "documents/d1/nodes/a", map[string]any{"id": "a"}))
	require.NoError(t, sink.PutLink(ctx, "documents/d1/nodes/a", "documents/d1/nodes/b", "reference",
		map[string]any{"ref_type": "table", "label": "3"}))

	require.Len(t, *reqs, 2)
	node := (*reqs)[0].Body
	assert.Equal(t, "docgraph:d1", node["source"])
	assert.Equal(t, "document", node["memory_type"])

	link := (*reqs)[1]
	assert.Equal(t, "/links", link.Path)
	assert.Equal(t, "reference", link.Body["kind"])
	assert.Equal(t, "reference 3", link.Body["summary"])
	assert.Equal(t, "documents/d1/nodes/b", link.Body["to_key"])
	assert.Equal(t, map[string]any{"ref_type": "table", "label": "3"}, link.Body["attrs"])
}
