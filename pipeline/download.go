package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"plugin-pipeline/metrics"
	"plugin-pipeline/orm"
	"plugin-pipeline/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// handleGetBuild answers build status polling.
func (s *Server) handleGetBuild(c *gin.Context) {
	record, err := s.store.GetBuild(c.Request.Context(), c.Param("buildId"))
	if err != nil {
		respondError(c, wrapServiceError(err, "build status lookup"))

		return
	}

	c.JSON(http.StatusOK, record)
}

// handleDownload resolves "give me the artifact for plugin X version Y". When
// no artifact exists the answer is precise and actionable: the build is in
// progress (poll), the build failed (here is why), or nothing was ever built.
func (s *Server) handleDownload(c *gin.Context) {
	pluginID := c.Param("id")
	requested := c.Query("version")

	plugin, err := s.store.GetPlugin(c.Request.Context(), pluginID)
	if err != nil {
		var notFound *orm.NotFoundError
		if errors.As(err, &notFound) {
			metrics.Downloads.WithLabelValues("missing").Inc()
			respondError(c, &ServiceError{
				Status:  http.StatusNotFound,
				Code:    CodePluginNotFound,
				Message: "Plugin not found",
				Inner:   err,
			})

			return
		}

		respondError(c, wrapServiceError(err, "plugin lookup"))

		return
	}

	version := selectVersion(plugin.Versions, requested)
	if version == nil {
		s.respondNoArtifact(c, pluginID)

		return
	}

	if version.ObjectKey == "" {
		// A version row without a stored artifact is a server-side defect,
		// not a client error.
		log.Error().
			Str("plugin_id", pluginID).
			Str("version", version.Version).
			Msg("published version has no artifact object key")
		metrics.Downloads.WithLabelValues("unavailable").Inc()
		respondError(c, &ServiceError{
			Status:  http.StatusInternalServerError,
			Code:    CodeDownloadUnavailable,
			Message: "Artifact is not available for download",
		})

		return
	}

	url, err := s.artifacts.DownloadURL(c.Request.Context(), version.ObjectKey)
	if err != nil || url == "" {
		log.Error().
			Err(err).
			Str("plugin_id", pluginID).
			Str("version", version.Version).
			Msg("failed to resolve artifact download URL")
		metrics.Downloads.WithLabelValues("unavailable").Inc()
		respondError(c, &ServiceError{
			Status:  http.StatusInternalServerError,
			Code:    CodeDownloadUnavailable,
			Message: "Artifact is not available for download",
			Inner:   err,
		})

		return
	}

	s.trackDownload(c, plugin, version.Version)
	metrics.Downloads.WithLabelValues("served").Inc()

	c.JSON(http.StatusOK, gin.H{
		"url":      url,
		"version":  version.Version,
		"checksum": version.Checksum,
	})
}

// respondNoArtifact consults the latest build record to explain why no
// artifact exists yet.
func (s *Server) respondNoArtifact(c *gin.Context, pluginID string) {
	record, err := s.store.LatestBuild(c.Request.Context(), pluginID)
	if err != nil {
		var notFound *orm.NotFoundError
		if errors.As(err, &notFound) {
			metrics.Downloads.WithLabelValues("missing").Inc()
			respondError(c, &ServiceError{
				Status:  http.StatusNotFound,
				Code:    CodeNoVersion,
				Message: "Plugin has no published version",
				Inner:   err,
			})

			return
		}

		respondError(c, wrapServiceError(err, "latest build lookup"))

		return
	}

	switch record.Status {
	case orm.StatusPending, orm.StatusBuilding:
		metrics.Downloads.WithLabelValues("building").Inc()
		c.JSON(http.StatusAccepted, gin.H{
			"code":    CodeBuilding,
			"message": "Build in progress, retry later",
			"buildId": record.ID,
		})
	case orm.StatusFailed:
		metrics.Downloads.WithLabelValues("failed").Inc()
		respondError(c, &ServiceError{
			Status:  http.StatusNotFound,
			Code:    CodeBuildFailed,
			Message: "Latest build failed",
			Fields:  gin.H{"error": record.ErrorMessage},
		})
	default:
		// A success record with no published version means the artifact
		// never landed in the registry.
		log.Error().
			Str("plugin_id", pluginID).
			Str("build_id", record.ID).
			Msg("successful build has no published version")
		metrics.Downloads.WithLabelValues("unavailable").Inc()
		respondError(c, &ServiceError{
			Status:  http.StatusInternalServerError,
			Code:    CodeDownloadUnavailable,
			Message: "Artifact is not available for download",
		})
	}
}

// trackDownload records the usage event off the request path; the response
// does not wait for (or depend on) the sink write.
func (s *Server) trackDownload(c *gin.Context, plugin *orm.Plugin, servedVersion string) {
	event := telemetry.DownloadEvent{
		PluginID:    plugin.ID,
		VersionID:   matchVersionID(plugin.Versions, servedVersion),
		RequesterID: c.GetHeader("X-Requester-Id"),
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Timestamp:   time.Now().UTC(),
	}

	s.pool.Submit("download-track", func() error {
		return s.sink.Record(context.Background(), event)
	})
}

// selectVersion picks the requested version, or the most recently published
// one when no version was asked for.
func selectVersion(versions []orm.PluginVersion, requested string) *orm.PluginVersion {
	if requested != "" {
		for i := range versions {
			if versions[i].Version == requested {
				return &versions[i]
			}
		}

		return nil
	}

	var latest *orm.PluginVersion
	for i := range versions {
		if latest == nil || versions[i].PublishedAt.After(latest.PublishedAt) {
			latest = &versions[i]
		}
	}

	return latest
}

// matchVersionID resolves the served version string against the plugin's
// known versions; absence of a match is tolerated.
func matchVersionID(versions []orm.PluginVersion, served string) string {
	for i := range versions {
		if versions[i].Version == served {
			return versions[i].ID
		}
	}

	return ""
}

// handleBuildStatusUpdate is the external builder's report-back contract. The
// store enforces the monotonic lifecycle; a successful build may also publish
// the produced artifact as a downloadable version.
func (s *Server) handleBuildStatusUpdate(c *gin.Context) {
	if s.builderToken == "" ||
		c.GetHeader("Authorization") != "Bearer "+s.builderToken {
		respondError(c, &ServiceError{
			Status:  http.StatusUnauthorized,
			Code:    CodeUnauthorized,
			Message: "Invalid builder credentials",
		})

		return
	}

	buildID := c.Param("buildId")

	var req struct {
		PluginID     string `json:"pluginId"     binding:"required"`
		Status       string `json:"status"       binding:"required"`
		ErrorMessage string `json:"errorMessage"`
		ObjectKey    string `json:"objectKey"`
		Checksum     string `json:"checksum"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &ServiceError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedPayload,
			Message: "Malformed build status payload",
			Inner:   err,
		})

		return
	}

	status := orm.BuildStatus(req.Status)
	record, err := s.store.UpdateBuildStatus(
		c.Request.Context(),
		req.PluginID,
		buildID,
		status,
		req.ErrorMessage,
	)
	if err != nil {
		log.Warn().
			Err(err).
			Str("build_id", buildID).
			Str("plugin_id", req.PluginID).
			Str("status", req.Status).
			Msg("build status update rejected")
		respondError(c, wrapServiceError(err, "build status update"))

		return
	}

	log.Info().
		Str("build_id", record.ID).
		Str("plugin_id", record.PluginID).
		Str("status", string(record.Status)).
		Msg("build status updated")

	if status == orm.StatusSuccess && req.ObjectKey != "" {
		err := s.store.PublishVersion(c.Request.Context(), &orm.PluginVersion{
			PluginID:    record.PluginID,
			Version:     record.Version,
			ObjectKey:   req.ObjectKey,
			Checksum:    req.Checksum,
			PublishedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("build_id", record.ID).
				Str("plugin_id", record.PluginID).
				Msg("failed to publish plugin version")
			respondError(c, wrapServiceError(err, "publishing plugin version"))

			return
		}
	}

	c.JSON(http.StatusOK, record)
}
