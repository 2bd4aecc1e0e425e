package pipeline

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"

	artifactmemory "plugin-pipeline/artifactstore/memory"
	"plugin-pipeline/builder"
	"plugin-pipeline/dispatch"
	"plugin-pipeline/memstore"
	"plugin-pipeline/telemetry"

	"github.com/gin-gonic/gin"
)

const (
	testSecret       = "test-webhook-secret"
	testBuilderToken = "test-builder-token"
)

// stubTrigger records dispatched build jobs and optionally fails.
type stubTrigger struct {
	mu   sync.Mutex
	jobs []builder.Job
	err  error
}

func (t *stubTrigger) Trigger(_ context.Context, job builder.Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, job)

	return t.err
}

func (t *stubTrigger) dispatched() []builder.Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]builder.Job(nil), t.jobs...)
}

// captureSink records download events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []telemetry.DownloadEvent
}

func (s *captureSink) Record(_ context.Context, event telemetry.DownloadEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)

	return nil
}

func (s *captureSink) recorded() []telemetry.DownloadEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]telemetry.DownloadEvent(nil), s.events...)
}

type testHarness struct {
	router    *gin.Engine
	store     *memstore.Store
	artifacts *artifactmemory.MemoryStore
	trigger   *stubTrigger
	sink      *captureSink
	pool      *dispatch.Pool
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &testHarness{
		store:     memstore.New(),
		artifacts: artifactmemory.New(),
		trigger:   &stubTrigger{},
		sink:      &captureSink{},
		pool:      dispatch.NewPool(2),
	}
	t.Cleanup(h.pool.Close)

	server := NewServer(
		h.store,
		h.artifacts,
		h.trigger,
		h.sink,
		h.pool,
		testSecret,
		testBuilderToken,
	)

	h.router = gin.New()
	passthrough := func(c *gin.Context) { c.Next() }
	server.RegisterRoutes(h.router, passthrough, passthrough)

	return h
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
