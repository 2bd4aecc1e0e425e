package memstore

import (
	"context"
	"testing"
	"time"

	"plugin-pipeline/orm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPlugin(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.CreatePlugin(context.Background(), &orm.Plugin{
		ID:     "demo-plugin",
		RepoID: 555,
	}))
}

func TestCreateAndGetBuild(t *testing.T) {
	store := New()
	ctx := context.Background()

	record, err := store.CreateBuild(ctx, &orm.BuildRecord{
		PluginID:  "demo-plugin",
		Version:   "1.0.0",
		SourceTag: "v1.0.0",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, orm.StatusPending, record.Status)

	got, err := store.GetBuild(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	_, err = store.GetBuild(ctx, "missing")
	var notFound *orm.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLatestBuildOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Pin the clock so creation timestamps collide
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	first, err := store.CreateBuild(ctx, &orm.BuildRecord{PluginID: "p", Version: "1.0.0"})
	require.NoError(t, err)
	second, err := store.CreateBuild(ctx, &orm.BuildRecord{PluginID: "p", Version: "1.0.1"})
	require.NoError(t, err)

	latest, err := store.LatestBuild(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.NotEqual(t, first.ID, latest.ID)

	_, err = store.LatestBuild(ctx, "never-built")
	var notFound *orm.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUpdateBuildStatusLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	record, err := store.CreateBuild(ctx, &orm.BuildRecord{PluginID: "p", Version: "1.0.0"})
	require.NoError(t, err)

	updated, err := store.UpdateBuildStatus(ctx, "p", record.ID, orm.StatusBuilding, "")
	require.NoError(t, err)
	assert.Equal(t, orm.StatusBuilding, updated.Status)

	updated, err = store.UpdateBuildStatus(ctx, "p", record.ID, orm.StatusFailed, "boom")
	require.NoError(t, err)
	assert.Equal(t, "boom", updated.ErrorMessage)

	// Terminal records reject any further transition
	_, err = store.UpdateBuildStatus(ctx, "p", record.ID, orm.StatusSuccess, "")
	var conflict *orm.ConflictError
	assert.ErrorAs(t, err, &conflict)

	// Mismatched plugin id is a not-found, not a cross-plugin mutation
	record2, err := store.CreateBuild(ctx, &orm.BuildRecord{PluginID: "p", Version: "1.0.1"})
	require.NoError(t, err)
	_, err = store.UpdateBuildStatus(ctx, "other", record2.ID, orm.StatusBuilding, "")
	var notFound *orm.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPluginLookup(t *testing.T) {
	store := New()
	ctx := context.Background()
	seedPlugin(t, store)

	byID, err := store.GetPlugin(ctx, "demo-plugin")
	require.NoError(t, err)
	assert.Equal(t, int64(555), byID.RepoID)

	byRepo, err := store.GetPluginByRepo(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, "demo-plugin", byRepo.ID)

	var notFound *orm.NotFoundError
	_, err = store.GetPluginByRepo(ctx, 42)
	assert.ErrorAs(t, err, &notFound)

	err = store.CreatePlugin(ctx, &orm.Plugin{ID: "demo-plugin", RepoID: 777})
	var conflict *orm.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestPublishVersionReplaces(t *testing.T) {
	store := New()
	ctx := context.Background()
	seedPlugin(t, store)

	require.NoError(t, store.PublishVersion(ctx, &orm.PluginVersion{
		PluginID:  "demo-plugin",
		Version:   "1.0.0",
		ObjectKey: "old-key",
	}))
	require.NoError(t, store.PublishVersion(ctx, &orm.PluginVersion{
		PluginID:  "demo-plugin",
		Version:   "1.0.0",
		ObjectKey: "new-key",
	}))

	plugin, err := store.GetPlugin(ctx, "demo-plugin")
	require.NoError(t, err)
	require.Len(t, plugin.Versions, 1)
	assert.Equal(t, "new-key", plugin.Versions[0].ObjectKey)

	err = store.PublishVersion(ctx, &orm.PluginVersion{
		PluginID: "unknown",
		Version:  "1.0.0",
	})
	var notFound *orm.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
