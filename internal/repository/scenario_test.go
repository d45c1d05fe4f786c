package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliaskit/client/internal/apiclient"
	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/storage/sql"
)

// routedDoer 把请求交给本地 handler 处理，不经过网络
type routedDoer struct {
	handler http.Handler
}

func (d routedDoer) Do(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, req)
	return rec.Result(), nil
}

func TestAliasRepository_EndToEnd(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api.test", r.URL.Host)
		assert.Equal(t, "https", r.URL.Scheme)
		assert.Equal(t, "/api/v2/aliases", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("Authentication"))

		page := r.URL.Query().Get("page_id")
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()

		var body map[string]any
		switch page {
		case "0":
			body = map[string]any{"aliases": aliasRange(1, 20)}
		case "1":
			body = map[string]any{"aliases": aliasRange(21, 5)}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	client, err := apiclient.New(apiclient.Options{
		BaseURL: "https://api.test",
		Doer:    routedDoer{handler: handler},
	}, credential.NewMemoryProvider("secret-key"))
	require.NoError(t, err)

	store, err := sql.NewStore("sqlite", ":memory:", 1, 1, 0)
	require.NoError(t, err)
	defer store.Close()

	repo := NewAliasRepository(client, store, 20, nil, nil)
	ctx := context.Background()

	require.NoError(t, repo.FetchPage(ctx, false))
	snapshot := repo.Snapshot()
	assert.Len(t, snapshot.Aliases, 20)
	assert.Equal(t, 1, snapshot.Cursor)
	assert.True(t, snapshot.MoreToLoad)

	require.NoError(t, repo.FetchPage(ctx, false))
	snapshot = repo.Snapshot()
	assert.Len(t, snapshot.Aliases, 25)
	assert.Equal(t, 2, snapshot.Cursor)
	assert.False(t, snapshot.MoreToLoad)

	require.NoError(t, repo.FetchPage(ctx, false))
	assert.Len(t, repo.Snapshot().Aliases, 25)

	mu.Lock()
	assert.Equal(t, []string{"0", "1"}, pages)
	mu.Unlock()

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 25, count)

	cached, err := repo.CachedPage(1, "")
	require.NoError(t, err)
	assert.Equal(t, aliasIDs(snapshot.Aliases[20:]), aliasIDs(cached))
}
