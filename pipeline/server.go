package pipeline

import (
	"context"

	"plugin-pipeline/artifactstore"
	"plugin-pipeline/builder"
	"plugin-pipeline/dispatch"
	"plugin-pipeline/metrics"
	"plugin-pipeline/orm"
	"plugin-pipeline/telemetry"

	"github.com/gin-gonic/gin"
)

// Store is the plugin registry and build record contract the handlers need.
// Implemented by orm.DB (Postgres) and memstore.Store (in-memory).
type Store interface {
	CreateBuild(ctx context.Context, record *orm.BuildRecord) (*orm.BuildRecord, error)
	GetBuild(ctx context.Context, buildID string) (*orm.BuildRecord, error)
	LatestBuild(ctx context.Context, pluginID string) (*orm.BuildRecord, error)
	UpdateBuildStatus(
		ctx context.Context,
		pluginID, buildID string,
		status orm.BuildStatus,
		errorMessage string,
	) (*orm.BuildRecord, error)

	GetPlugin(ctx context.Context, pluginID string) (*orm.Plugin, error)
	GetPluginByRepo(ctx context.Context, repoID int64) (*orm.Plugin, error)
	PublishVersion(ctx context.Context, version *orm.PluginVersion) error
}

// BuildTrigger dispatches a build job to the external builder.
type BuildTrigger interface {
	Trigger(ctx context.Context, job builder.Job) error
}

type Server struct {
	store     Store
	artifacts artifactstore.Store
	trigger   BuildTrigger
	sink      telemetry.Sink
	pool      *dispatch.Pool

	webhookSecret string
	builderToken  string
}

// NewServer wires the pipeline handlers to their collaborators.
func NewServer(
	store Store,
	artifacts artifactstore.Store,
	trigger BuildTrigger,
	sink telemetry.Sink,
	pool *dispatch.Pool,
	webhookSecret, builderToken string,
) *Server {
	return &Server{
		store:         store,
		artifacts:     artifacts,
		trigger:       trigger,
		sink:          sink,
		pool:          pool,
		webhookSecret: webhookSecret,
		builderToken:  builderToken,
	}
}

// RegisterRoutes attaches the pipeline routes. The public limiter guards the
// externally reachable routes; the internal limiter guards the builder
// report-back contract and metrics.
func (s *Server) RegisterRoutes(
	router *gin.Engine,
	publicLimit, internalLimit gin.HandlerFunc,
) {
	public := router.Group("", publicLimit)
	public.POST("/webhooks/release", s.handleReleaseWebhook)
	public.GET("/webhooks/release", s.handleWebhookHealth)
	public.GET("/builds/:buildId", s.handleGetBuild)
	public.GET("/plugins/:id/download", s.handleDownload)

	internal := router.Group("/internal", internalLimit)
	internal.POST("/builds/:buildId", s.handleBuildStatusUpdate)

	router.GET("/metrics", internalLimit, gin.WrapH(metrics.Handler()))
}
