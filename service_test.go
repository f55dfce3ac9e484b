package issueindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/config"
	bleveindex "github.com/poiesic/issueindex/index/bleve"
	"github.com/poiesic/issueindex/pipeline"
	"github.com/poiesic/issueindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T, total int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Redmine-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		issues := []map[string]any{}
		for id := offset + 1; id <= min(total, offset+limit); id++ {
			issues = append(issues, map[string]any{
				"id":          id,
				"subject":     "Issue " + strconv.Itoa(id),
				"description": "login page broken",
				"project":     map[string]any{"id": 1, "name": "Portal", "identifier": "portal"},
				"status":      map[string]any{"id": 1, "name": "New"},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issues":      issues,
			"total_count": total,
			"offset":      offset,
			"limit":       limit,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(trackerURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source.BaseURL = trackerURL
	cfg.Source.APIKey = "secret"
	cfg.Index.Backend = config.BackendBleve
	cfg.Storage.InMemory = true
	cfg.Pipeline.BatchSize = 2
	cfg.Pipeline.PageDelay = 0
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.CreateIndex = true
	cfg.Embedding.Dimension = 16
	return cfg
}

func TestOpen(t *testing.T) {
	t.Run("rejects invalid configuration", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Storage.InMemory = true
		cfg.Pipeline.BatchSize = 0

		svc, err := Open(cfg)
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("builds every component", func(t *testing.T) {
		svc, err := Open(testConfig("http://tracker.invalid"))
		require.NoError(t, err)
		defer svc.Close()

		assert.NotNil(t, svc.Source())
		assert.NotNil(t, svc.CheckpointRepository())
		assert.IsType(t, &bleveindex.Client{}, svc.Index())
		assert.Equal(t, 16, svc.Embedder().Dimension())
	})
}

func TestServiceRunIndexesAllIssues(t *testing.T) {
	tracker := newTracker(t, 5)
	cfg := testConfig(tracker.URL)

	svc, err := Open(cfg)
	require.NoError(t, err)
	defer svc.Close()

	driver, err := svc.NewPipeline()
	require.NoError(t, err)
	defer driver.Release()

	summary := driver.Run(context.Background())
	require.NoError(t, summary.Err)
	assert.Equal(t, pipeline.StateDone, summary.State)
	assert.Equal(t, 5, summary.Fetched)
	assert.Equal(t, 5, summary.Indexed)
	assert.Equal(t, 0, summary.Failed)

	idx, ok := svc.Index().(*bleveindex.Client)
	require.True(t, ok)
	count, err := idx.DocCount(cfg.Pipeline.IndexName)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	checkpoint, err := svc.CheckpointRepository().LoadCheckpoint(context.Background(), cfg.Pipeline.IndexName)
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.True(t, checkpoint.Completed)
	assert.Equal(t, summary.RunID, checkpoint.RunID)
}

func TestServiceRunRerunIsIdempotent(t *testing.T) {
	tracker := newTracker(t, 3)
	cfg := testConfig(tracker.URL)

	svc, err := Open(cfg)
	require.NoError(t, err)
	defer svc.Close()

	for range 2 {
		driver, err := svc.NewPipeline()
		require.NoError(t, err)
		summary := driver.Run(context.Background())
		driver.Release()
		require.Equal(t, pipeline.StateDone, summary.State)
	}

	count, err := svc.Index().(*bleveindex.Client).DocCount(cfg.Pipeline.IndexName)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("hashed provider never calls out", func(t *testing.T) {
		cfg := ai.NewConfig(ai.WithProvider(ai.ProviderHashed), ai.WithDimension(8))
		embedder, err := NewEmbedder(cfg, nil, nil)
		require.NoError(t, err)

		vec, err := embedder.EmbedText(ctx, "login page broken")
		require.NoError(t, err)
		assert.Len(t, vec, 8)
		assert.Zero(t, embedder.Fallbacks())
	})

	t.Run("remote provider is cached", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3, 4}})
		}))
		defer srv.Close()

		_, cacheRepo, backend, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		defer backend.Close()

		cfg := ai.NewConfig(
			ai.WithServiceURL(srv.URL),
			ai.WithAPIKey("key"),
			ai.WithDimension(4),
		)
		embedder, err := NewEmbedder(cfg, cacheRepo, nil)
		require.NoError(t, err)

		for range 3 {
			vec, err := embedder.EmbedText(ctx, "login page broken")
			require.NoError(t, err)
			assert.Equal(t, []float32{1, 2, 3, 4}, vec)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("remote failure falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cfg := ai.NewConfig(
			ai.WithProvider(ai.ProviderRemote),
			ai.WithServiceURL(srv.URL),
			ai.WithAPIKey("key"),
			ai.WithDimension(4),
		)
		embedder, err := NewEmbedder(cfg, nil, nil)
		require.NoError(t, err)

		vec, err := embedder.EmbedText(ctx, "login page broken")
		require.NoError(t, err)
		assert.Len(t, vec, 4)
		assert.Equal(t, int64(1), embedder.Fallbacks())
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		cfg := ai.NewConfig(ai.WithProvider(ai.ProviderRemote))
		_, err := NewEmbedder(cfg, nil, nil)
		require.Error(t, err)
	})
}
