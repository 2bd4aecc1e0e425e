// Package telemetry writes download usage events to an external sink,
// best-effort. Nothing in the request path depends on a write succeeding.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DownloadEvent is one resolved download. Write-once, append-only.
type DownloadEvent struct {
	PluginID    string    `json:"pluginId"`
	VersionID   string    `json:"versionId,omitempty"`
	RequesterID string    `json:"requesterId,omitempty"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"userAgent"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink receives download events.
type Sink interface {
	Record(ctx context.Context, event DownloadEvent) error
}

// LogSink writes events to the service log. Used when no Kafka sink is
// configured.
type LogSink struct{}

func (LogSink) Record(_ context.Context, event DownloadEvent) error {
	log.Info().
		Str("plugin_id", event.PluginID).
		Str("version_id", event.VersionID).
		Str("ip", event.IP).
		Msg("download recorded")

	return nil
}
