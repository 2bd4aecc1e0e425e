package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	artifactmemory "plugin-pipeline/artifactstore/memory"
	"plugin-pipeline/builder"
	"plugin-pipeline/dispatch"
	"plugin-pipeline/gate"
	"plugin-pipeline/memstore"
	"plugin-pipeline/orm"
	"plugin-pipeline/pipeline"
	"plugin-pipeline/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	webhookSecret = "integration-secret"
	builderToken  = "integration-builder-token"
)

type testEnv struct {
	router    *gin.Engine
	store     *memstore.Store
	artifacts *artifactmemory.MemoryStore
	pool      *dispatch.Pool
	limiter   *gate.Limiter
}

// noopTrigger accepts every dispatch; the integration flow drives the build
// lifecycle through the internal report-back route instead.
type noopTrigger struct{}

func (noopTrigger) Trigger(context.Context, builder.Job) error { return nil }

func configureEnv(t *testing.T, publicLimit int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:     memstore.New(),
		artifacts: artifactmemory.New(),
		pool:      dispatch.NewPool(2),
		limiter:   gate.NewLimiter(60 * time.Second),
	}
	t.Cleanup(env.pool.Close)
	t.Cleanup(env.limiter.Close)

	server := pipeline.NewServer(
		env.store,
		env.artifacts,
		noopTrigger{},
		telemetry.LogSink{},
		env.pool,
		webhookSecret,
		builderToken,
	)

	env.router = gin.New()
	env.router.Use(gate.SecurityHeaders(), gate.CORS([]string{"tauri://localhost"}))
	server.RegisterRoutes(
		env.router,
		gate.RateLimit(env.limiter, publicLimit),
		gate.RateLimit(env.limiter, publicLimit*2),
	)

	return env
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	req.RemoteAddr = "203.0.113.7:40000"
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)

	return recorder
}

// TestReleaseToDownloadFlow walks the full pipeline: release webhook creates
// a pending build, the builder reports success with an artifact, and the
// download route serves the new version.
func TestReleaseToDownloadFlow(t *testing.T) {
	env := configureEnv(t, 100)

	require.NoError(t, env.store.CreatePlugin(context.Background(), &orm.Plugin{
		ID:       "demo-plugin",
		AuthorID: "author-1",
		RepoID:   555,
	}))

	// 1. Release webhook for the linked repository
	payload, err := json.Marshal(map[string]any{
		"action": "published",
		"release": map[string]any{
			"id":          42,
			"tag_name":    "v2.1.0",
			"name":        "Release v2.1.0",
			"draft":       false,
			"prerelease":  false,
			"tarball_url": "https://example.com/tarball/v2.1.0",
		},
		"repository": map[string]any{
			"id":             555,
			"full_name":      "acme/demo-plugin",
			"default_branch": "main",
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/release", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", "release")
	req.Header.Set("X-GitHub-Delivery", "delivery-42")
	req.Header.Set("X-Hub-Signature-256", signBody(payload))
	resp := env.do(req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var created struct {
		Message  string `json:"message"`
		BuildID  string `json:"buildId"`
		PluginID string `json:"pluginId"`
		Version  string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "Build triggered", created.Message)
	assert.Equal(t, "demo-plugin", created.PluginID)
	assert.Equal(t, "2.1.0", created.Version)

	// Security headers ride on every response
	assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))

	// 2. The record polls as pending
	resp = env.do(httptest.NewRequest(http.MethodGet, "/builds/"+created.BuildID, nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"pending"`)

	// 3. Downloading now reports the build in progress
	resp = env.do(httptest.NewRequest(http.MethodGet, "/plugins/demo-plugin/download", nil))
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Contains(t, resp.Body.String(), created.BuildID)

	// 4. The builder reports success with the produced artifact
	checksum := env.artifacts.Put("demo-plugin/2.1.0.tar.gz", []byte("built-artifact"))
	update, err := json.Marshal(map[string]any{
		"pluginId":  "demo-plugin",
		"status":    "success",
		"objectKey": "demo-plugin/2.1.0.tar.gz",
		"checksum":  checksum,
	})
	require.NoError(t, err)

	req = httptest.NewRequest(
		http.MethodPost,
		"/internal/builds/"+created.BuildID,
		bytes.NewReader(update),
	)
	req.Header.Set("Authorization", "Bearer "+builderToken)
	resp = env.do(req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// 5. The download now serves the new artifact
	resp = env.do(httptest.NewRequest(http.MethodGet, "/plugins/demo-plugin/download", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var download struct {
		URL      string `json:"url"`
		Version  string `json:"version"`
		Checksum string `json:"checksum"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &download))
	assert.Equal(t, "memory://artifacts/demo-plugin/2.1.0.tar.gz", download.URL)
	assert.Equal(t, "2.1.0", download.Version)
	assert.Equal(t, checksum, download.Checksum)

	env.pool.Wait()
}

// TestIngressGateAcrossRoutes verifies the rate limit and CORS behavior on
// the composed router rather than in isolation.
func TestIngressGateAcrossRoutes(t *testing.T) {
	env := configureEnv(t, 3)

	for i := range 3 {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/webhooks/release", nil))
		require.Equal(t, http.StatusOK, resp.Code, "request %d within the window", i+1)
	}

	resp := env.do(httptest.NewRequest(http.MethodGet, "/webhooks/release", nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))

	// Preflight from the desktop client passes the gate before rate limits
	req := httptest.NewRequest(http.MethodOptions, "/plugins/demo-plugin/download", nil)
	req.Header.Set("Origin", "tauri://localhost")
	resp = env.do(req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "tauri://localhost", resp.Header().Get("Access-Control-Allow-Origin"))
}
