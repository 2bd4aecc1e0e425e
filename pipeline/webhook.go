package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"

	"plugin-pipeline/builder"
	"plugin-pipeline/metrics"
	"plugin-pipeline/orm"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// handleReleaseWebhook authenticates, classifies and converts an inbound
// release event into a pending build record, then dispatches the build job
// off the request path. Intentional no-ops answer 200 so the sender's retry
// policy stays quiet.
func (s *Server) handleReleaseWebhook(c *gin.Context) {
	deliveryID := c.GetHeader("X-GitHub-Delivery")
	eventType := c.GetHeader("X-GitHub-Event")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, &ServiceError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedPayload,
			Message: "Unable to read request body",
			Inner:   err,
		})

		return
	}

	// Signature verification strictly precedes event classification.
	if !VerifySignature(s.webhookSecret, body, c.GetHeader("X-Hub-Signature-256")) {
		log.Warn().
			Str("delivery_id", deliveryID).
			Str("event", eventType).
			Msg("webhook signature verification failed")
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()

		respondError(c, &ServiceError{
			Status:  http.StatusUnauthorized,
			Code:    CodeBadSignature,
			Message: "Signature verification failed",
		})

		return
	}

	switch eventType {
	case "ping":
		metrics.WebhookEvents.WithLabelValues("pong").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "pong"})

		return
	case "release":
		// fall through to classification
	default:
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "event type not handled"})

		return
	}

	event, err := ParseReleaseEvent(body)
	if err != nil {
		log.Warn().
			Err(err).
			Str("delivery_id", deliveryID).
			Msg("malformed release event payload")
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()

		respondError(c, &ServiceError{
			Status:  http.StatusBadRequest,
			Code:    CodeMalformedPayload,
			Message: "Malformed release event payload",
			Inner:   err,
		})

		return
	}

	if event.Action != "published" {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "action not handled"})

		return
	}

	if event.Release.Draft {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "draft releases are ignored"})

		return
	}

	plugin, err := s.store.GetPluginByRepo(c.Request.Context(), event.Repository.ID)
	if err != nil {
		var notFound *orm.NotFoundError
		if errors.As(err, &notFound) {
			// Also an intentional no-op: a 4xx would make the sender retry a
			// repository that simply is not registered as a plugin.
			log.Info().
				Str("delivery_id", deliveryID).
				Int64("repo_id", event.Repository.ID).
				Str("repo", event.Repository.FullName).
				Msg("release event for unlinked repository")
			metrics.WebhookEvents.WithLabelValues("unlinked").Inc()
			c.JSON(http.StatusOK, gin.H{"message": "repository not linked to a plugin"})

			return
		}

		log.Error().
			Err(err).
			Str("delivery_id", deliveryID).
			Msg("failed to resolve plugin for repository")
		respondError(c, wrapServiceError(err, "resolving plugin for repository"))

		return
	}

	version := ParseVersion(event.Release.TagName)

	record, err := s.store.CreateBuild(c.Request.Context(), &orm.BuildRecord{
		PluginID:          plugin.ID,
		Version:           version,
		SourceEventID:     event.Release.ID,
		SourceTag:         event.Release.TagName,
		SourceReleaseName: event.Release.Name,
		SourceArchiveURL:  event.Release.TarballURL,
		PluginSubpath:     plugin.Subpath,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("delivery_id", deliveryID).
			Str("plugin_id", plugin.ID).
			Msg("failed to create build record")
		respondError(c, wrapServiceError(err, "creating build record"))

		return
	}

	log.Info().
		Str("delivery_id", deliveryID).
		Str("build_id", record.ID).
		Str("plugin_id", plugin.ID).
		Str("version", version).
		Msg("build triggered from release event")
	metrics.WebhookEvents.WithLabelValues("triggered").Inc()
	metrics.BuildsTriggered.Inc()

	// Dispatch the build job without awaiting it: the sender's response-time
	// budget is short, and a failed dispatch must not alter this response.
	// The record stays pending when the builder is unreachable.
	job := builder.Job{
		BuildID:    record.ID,
		PluginID:   plugin.ID,
		Version:    version,
		TarballURL: event.Release.TarballURL,
		Subpath:    plugin.Subpath,
	}
	s.pool.Submit("build-trigger", func() error {
		return s.trigger.Trigger(context.Background(), job)
	})

	c.JSON(http.StatusOK, gin.H{
		"message":  "Build triggered",
		"buildId":  record.ID,
		"pluginId": plugin.ID,
		"version":  version,
	})
}

// handleWebhookHealth reports whether the endpoint is ready to authenticate
// deliveries.
func (s *Server) handleWebhookHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"configured": s.webhookSecret != "",
	})
}
