package orm

import (
	"time"
)

// BuildStatus is the lifecycle state of a build record. Transitions are
// monotonic and one-directional: pending -> building -> {success, failed}.
// A terminal record is never mutated again.
type BuildStatus string

const (
	StatusPending  BuildStatus = "pending"
	StatusBuilding BuildStatus = "building"
	StatusSuccess  BuildStatus = "success"
	StatusFailed   BuildStatus = "failed"
)

// rank orders statuses along the lifecycle. Terminal states share the top
// rank so neither can replace the other.
func (s BuildStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusBuilding:
		return 1
	case StatusSuccess, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s BuildStatus) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether s permits no further transitions.
func (s BuildStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether moving from s to next preserves the
// monotonic lifecycle. Skipping forward (pending -> failed when the builder
// dies before reporting building) is allowed; moving backwards or out of a
// terminal state is not.
func (s BuildStatus) CanTransition(next BuildStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}

	return next.rank() > s.rank()
}

// BuildRecord tracks one attempt to build one plugin version from a release
// event.
type BuildRecord struct {
	ID       string      `gorm:"primaryKey;size:36"                        json:"id"`
	PluginID string      `gorm:"size:255;not null;index:idx_builds_plugin" json:"pluginId"`
	Version  string      `gorm:"size:255;not null"                         json:"version"`
	Status   BuildStatus `gorm:"size:16;not null;default:'pending'"        json:"status"`

	SourceEventID     int64  `gorm:"index"    json:"sourceEventId"`
	SourceTag         string `gorm:"size:255" json:"sourceTag"`
	SourceReleaseName string `gorm:"size:255" json:"sourceReleaseName,omitempty"`
	SourceArchiveURL  string `gorm:"size:512" json:"sourceArchiveUrl,omitempty"`
	PluginSubpath     string `gorm:"size:255" json:"pluginSubpath,omitempty"`
	ErrorMessage      string `gorm:"type:text" json:"errorMessage,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_builds_plugin,priority:2" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// Plugin is the registry entry a release event resolves against. The webhook
// pipeline reads it by source repository id; the download resolver reads it
// by plugin id.
type Plugin struct {
	ID           string `gorm:"primaryKey;size:255" json:"id"`
	AuthorID     string `gorm:"size:255"            json:"authorId"`
	RepoID       int64  `gorm:"uniqueIndex"         json:"repoId"`
	RepoFullName string `gorm:"size:255"            json:"repoFullName"`
	Subpath      string `gorm:"size:255"            json:"subpath,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Published versions with cascading deletion
	Versions []PluginVersion `gorm:"foreignKey:PluginID;references:ID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
}

// PluginVersion is one published, downloadable version of a plugin. ObjectKey
// addresses the artifact in the artifact store; Checksum is its sha256.
type PluginVersion struct {
	ID       string `gorm:"primaryKey;size:36"                                                      json:"id"`
	PluginID string `gorm:"size:255;not null;uniqueIndex:ux_plugin_versions_version,priority:1"     json:"pluginId"`
	Version  string `gorm:"size:255;not null;uniqueIndex:ux_plugin_versions_version,priority:2"     json:"version"`

	ObjectKey string `gorm:"size:512" json:"objectKey"`
	Checksum  string `gorm:"size:128" json:"checksum"`

	PublishedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"publishedAt"`
}
