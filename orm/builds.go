package orm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateBuild inserts a new build record in pending state and returns it.
// Repeated deliveries of the same source event produce independent records.
func (db *DB) CreateBuild(
	ctx context.Context,
	record *BuildRecord,
) (*BuildRecord, error) {
	if record == nil {
		return nil, &BadInputError{Reason: "build record is nil"}
	}

	if record.PluginID == "" || record.Version == "" {
		return nil, &BadInputError{
			Reason: fmt.Sprintf(
				"pluginId and version must be provided: pluginId=%q, version=%q",
				record.PluginID,
				record.Version,
			),
		}
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Status = StatusPending

	err := gorm.G[BuildRecord](db.dbGorm).Create(ctx, record)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"create build record",
			fmt.Sprintf(
				"pluginId=%s, version=%s, sourceEventId=%d",
				record.PluginID,
				record.Version,
				record.SourceEventID,
			),
		)
	}

	return record, nil
}

// GetBuild is a point lookup used for status polling.
func (db *DB) GetBuild(
	ctx context.Context,
	buildID string,
) (*BuildRecord, error) {
	if buildID == "" {
		return nil, &BadInputError{Reason: "buildId must be provided"}
	}

	record, err := gorm.G[BuildRecord](db.dbGorm).Where(&BuildRecord{
		ID: buildID,
	}).First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"get build record",
			"buildId="+buildID,
		)
	}

	return &record, nil
}

// LatestBuild returns the most recently created build record for a plugin.
func (db *DB) LatestBuild(
	ctx context.Context,
	pluginID string,
) (*BuildRecord, error) {
	if pluginID == "" {
		return nil, &BadInputError{Reason: "pluginId must be provided"}
	}

	record, err := gorm.G[BuildRecord](db.dbGorm).Where(&BuildRecord{
		PluginID: pluginID,
	}).Order("created_at DESC").First(ctx)
	if err != nil {
		return nil, wrapErrorWithDetails(
			err,
			"get latest build record",
			"pluginId="+pluginID,
		)
	}

	return &record, nil
}

// UpdateBuildStatus applies the builder's report-back. The record is locked
// for the duration of the transaction so every reader observes either the old
// or the new status, and the monotonic lifecycle is enforced: updates to
// terminal records are rejected with a ConflictError.
func (db *DB) UpdateBuildStatus(
	ctx context.Context,
	pluginID, buildID string,
	status BuildStatus,
	errorMessage string,
) (*BuildRecord, error) {
	if pluginID == "" || buildID == "" {
		return nil, &BadInputError{
			Reason: fmt.Sprintf(
				"pluginId and buildId must be provided: pluginId=%q, buildId=%q",
				pluginID,
				buildID,
			),
		}
	}

	if !status.Valid() {
		return nil, &BadInputError{
			Reason: fmt.Sprintf("unknown build status %q", status),
		}
	}

	detailString := fmt.Sprintf(
		"pluginId=%s, buildId=%s, status=%s",
		pluginID,
		buildID,
		status,
	)

	var record BuildRecord
	err := db.dbGorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND plugin_id = ?", buildID, pluginID).
			First(&record).Error
		if err != nil {
			return wrapErrorWithDetails(err, "get build record for update", detailString)
		}

		if !record.Status.CanTransition(status) {
			return &ConflictError{
				Conflict: fmt.Sprintf(
					"build status transition %s -> %s (%s)",
					record.Status,
					status,
					detailString,
				),
			}
		}

		record.Status = status
		record.ErrorMessage = errorMessage

		return wrapErrorWithDetails(
			tx.Save(&record).Error,
			"save build record",
			detailString,
		)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}
