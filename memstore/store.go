// Package memstore implements the plugin and build record store with
// in-memory maps. Used for testing and for development mode without a
// Postgres instance; it enforces the same build lifecycle rules as the
// database-backed store.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plugin-pipeline/orm"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	plugins  map[string]*orm.Plugin
	byRepo   map[int64]string
	versions map[string][]orm.PluginVersion
	builds   map[string]*orm.BuildRecord

	// buildOrder preserves creation order per plugin so LatestBuild has a
	// deterministic answer when timestamps collide.
	buildOrder map[string][]string

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		plugins:    make(map[string]*orm.Plugin),
		byRepo:     make(map[int64]string),
		versions:   make(map[string][]orm.PluginVersion),
		builds:     make(map[string]*orm.BuildRecord),
		buildOrder: make(map[string][]string),
		now:        time.Now,
	}
}

func (s *Store) CreateBuild(
	_ context.Context,
	record *orm.BuildRecord,
) (*orm.BuildRecord, error) {
	if record == nil {
		return nil, &orm.BadInputError{Reason: "build record is nil"}
	}

	if record.PluginID == "" || record.Version == "" {
		return nil, &orm.BadInputError{
			Reason: fmt.Sprintf(
				"pluginId and version must be provided: pluginId=%q, version=%q",
				record.PluginID,
				record.Version,
			),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Status = orm.StatusPending
	record.CreatedAt = s.now()
	record.UpdatedAt = record.CreatedAt

	stored := *record
	s.builds[stored.ID] = &stored
	s.buildOrder[stored.PluginID] = append(s.buildOrder[stored.PluginID], stored.ID)

	result := stored

	return &result, nil
}

func (s *Store) GetBuild(
	_ context.Context,
	buildID string,
) (*orm.BuildRecord, error) {
	if buildID == "" {
		return nil, &orm.BadInputError{Reason: "buildId must be provided"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.builds[buildID]
	if !exists {
		return nil, &orm.NotFoundError{Search: "buildId=" + buildID}
	}

	result := *record

	return &result, nil
}

func (s *Store) LatestBuild(
	_ context.Context,
	pluginID string,
) (*orm.BuildRecord, error) {
	if pluginID == "" {
		return nil, &orm.BadInputError{Reason: "pluginId must be provided"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	order := s.buildOrder[pluginID]
	if len(order) == 0 {
		return nil, &orm.NotFoundError{Search: "latest build for pluginId=" + pluginID}
	}

	result := *s.builds[order[len(order)-1]]

	return &result, nil
}

func (s *Store) UpdateBuildStatus(
	_ context.Context,
	pluginID, buildID string,
	status orm.BuildStatus,
	errorMessage string,
) (*orm.BuildRecord, error) {
	if pluginID == "" || buildID == "" {
		return nil, &orm.BadInputError{
			Reason: fmt.Sprintf(
				"pluginId and buildId must be provided: pluginId=%q, buildId=%q",
				pluginID,
				buildID,
			),
		}
	}

	if !status.Valid() {
		return nil, &orm.BadInputError{
			Reason: fmt.Sprintf("unknown build status %q", status),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.builds[buildID]
	if !exists || record.PluginID != pluginID {
		return nil, &orm.NotFoundError{
			Search: fmt.Sprintf("pluginId=%s, buildId=%s", pluginID, buildID),
		}
	}

	if !record.Status.CanTransition(status) {
		return nil, &orm.ConflictError{
			Conflict: fmt.Sprintf(
				"build status transition %s -> %s (buildId=%s)",
				record.Status,
				status,
				buildID,
			),
		}
	}

	record.Status = status
	record.ErrorMessage = errorMessage
	record.UpdatedAt = s.now()

	result := *record

	return &result, nil
}

func (s *Store) GetPlugin(
	_ context.Context,
	pluginID string,
) (*orm.Plugin, error) {
	if pluginID == "" {
		return nil, &orm.BadInputError{Reason: "pluginId must be provided"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	plugin, exists := s.plugins[pluginID]
	if !exists {
		return nil, &orm.NotFoundError{Search: "pluginId=" + pluginID}
	}

	result := *plugin
	result.Versions = append([]orm.PluginVersion(nil), s.versions[pluginID]...)

	return &result, nil
}

func (s *Store) GetPluginByRepo(
	_ context.Context,
	repoID int64,
) (*orm.Plugin, error) {
	if repoID == 0 {
		return nil, &orm.BadInputError{Reason: "repoId must be provided"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pluginID, exists := s.byRepo[repoID]
	if !exists {
		return nil, &orm.NotFoundError{
			Search: fmt.Sprintf("repoId=%d", repoID),
		}
	}

	result := *s.plugins[pluginID]

	return &result, nil
}

func (s *Store) CreatePlugin(
	_ context.Context,
	plugin *orm.Plugin,
) error {
	if plugin == nil || plugin.ID == "" || plugin.RepoID == 0 {
		return &orm.BadInputError{
			Reason: "plugin with id and repoId must be provided",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plugins[plugin.ID]; exists {
		return &orm.ConflictError{Conflict: "pluginId=" + plugin.ID}
	}
	if _, exists := s.byRepo[plugin.RepoID]; exists {
		return &orm.ConflictError{
			Conflict: fmt.Sprintf("repoId=%d", plugin.RepoID),
		}
	}

	stored := *plugin
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	stored.Versions = nil

	s.plugins[stored.ID] = &stored
	s.byRepo[stored.RepoID] = stored.ID
	for _, v := range plugin.Versions {
		s.versions[stored.ID] = append(s.versions[stored.ID], v)
	}

	return nil
}

func (s *Store) PublishVersion(
	_ context.Context,
	version *orm.PluginVersion,
) error {
	if version == nil || version.PluginID == "" || version.Version == "" {
		return &orm.BadInputError{
			Reason: "plugin version with pluginId and version must be provided",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plugins[version.PluginID]; !exists {
		return &orm.NotFoundError{Search: "pluginId=" + version.PluginID}
	}

	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.PublishedAt.IsZero() {
		version.PublishedAt = s.now()
	}

	// Replace an existing row for the same version string if present
	kept := s.versions[version.PluginID][:0]
	for _, v := range s.versions[version.PluginID] {
		if v.Version != version.Version {
			kept = append(kept, v)
		}
	}
	s.versions[version.PluginID] = append(kept, *version)

	return nil
}
