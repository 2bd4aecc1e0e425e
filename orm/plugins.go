package orm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetPlugin looks a plugin up by its id, with published versions preloaded.
func (db *DB) GetPlugin(
	ctx context.Context,
	pluginID string,
) (*Plugin, error) {
	if pluginID == "" {
		return nil, &BadInputError{Reason: "pluginId must be provided"}
	}

	plugin, err := gorm.G[Plugin](
		db.dbGorm,
	).Preload("Versions", nil).Where(&Plugin{
		ID: pluginID,
	}).First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"get plugin",
			"pluginId="+pluginID,
		)
	}

	return &plugin, nil
}

// GetPluginByRepo resolves the plugin linked to a source repository. Release
// events carry the repository id, not the plugin id.
func (db *DB) GetPluginByRepo(
	ctx context.Context,
	repoID int64,
) (*Plugin, error) {
	if repoID == 0 {
		return nil, &BadInputError{Reason: "repoId must be provided"}
	}

	plugin, err := gorm.G[Plugin](db.dbGorm).Where(&Plugin{
		RepoID: repoID,
	}).First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"get plugin by repository",
			fmt.Sprintf("repoId=%d", repoID),
		)
	}

	return &plugin, nil
}

// CreatePlugin registers a plugin and its repository link.
func (db *DB) CreatePlugin(
	ctx context.Context,
	plugin *Plugin,
) error {
	if plugin == nil || plugin.ID == "" || plugin.RepoID == 0 {
		return &BadInputError{
			Reason: "plugin with id and repoId must be provided",
		}
	}

	return wrapErrorWithDetails(
		gorm.G[Plugin](db.dbGorm).Create(ctx, plugin),
		"create plugin",
		fmt.Sprintf("pluginId=%s, repoId=%d", plugin.ID, plugin.RepoID),
	)
}

// PublishVersion records a downloadable version for a plugin, replacing any
// previous row for the same version string.
func (db *DB) PublishVersion(
	ctx context.Context,
	version *PluginVersion,
) error {
	if version == nil || version.PluginID == "" || version.Version == "" {
		return &BadInputError{
			Reason: "plugin version with pluginId and version must be provided",
		}
	}

	if version.ID == "" {
		version.ID = uuid.NewString()
	}

	detailString := fmt.Sprintf(
		"pluginId=%s, version=%s",
		version.PluginID,
		version.Version,
	)

	err := db.dbGorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Replace an existing row for the same version string if present
		_, err := gorm.G[PluginVersion](tx).Where(&PluginVersion{
			PluginID: version.PluginID,
			Version:  version.Version,
		}).Delete(ctx)
		if err != nil {
			return wrapErrorWithDetails(err, "delete existing plugin version", detailString)
		}

		return wrapErrorWithDetails(
			gorm.G[PluginVersion](tx).Create(ctx, version),
			"create plugin version",
			detailString,
		)
	})

	//nolint:wrapcheck // Error already wrapped
	return err
}
