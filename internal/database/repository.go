package database

import (
	"fmt"
	"time"

	"deskrec/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for the session index
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSession inserts the index row for a newly opened session
func (r *Repository) CreateSession(rec *models.SessionRecord) error {
	result := r.db.Create(rec)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert session record")
	}
	return nil
}

// FinalizeSession marks a session as ended and stores its final counters
func (r *Repository) FinalizeSession(id string, end time.Time, reason string, events, screenshots int) error {
	result := r.db.Model(&models.SessionRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"ended_at":         end,
		"reason":           reason,
		"event_count":      events,
		"screenshot_count": screenshots,
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to finalize session record")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// CreateAppUsage inserts the per-application usage rows for a session
func (r *Repository) CreateAppUsage(rows []models.AppUsage) error {
	if len(rows) == 0 {
		return nil
	}
	result := r.db.Create(&rows)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert app usage")
	}
	return nil
}

// CreateCaptureError inserts a capture failure into the database
func (r *Repository) CreateCaptureError(e *models.CaptureError) error {
	result := r.db.Create(e)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert capture error")
	}
	return nil
}

// GetSession retrieves a session record by its ID
func (r *Repository) GetSession(id string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	result := r.db.First(&rec, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get session record")
	}
	return &rec, nil
}

// ListSessions returns session records newest first. A limit of 0 returns
// every session.
func (r *Repository) ListSessions(limit int) ([]*models.SessionRecord, error) {
	var recs []*models.SessionRecord
	query := r.db.Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&recs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query session records")
	}
	return recs, nil
}

// GetUsageSince returns aggregated per-application usage for sessions
// started since a given time
// Uses SQL SUM for efficiency - the reporter does additional calculations
func (r *Repository) GetUsageSince(since time.Time) ([]models.AppSummary, error) {
	var summaries []models.AppSummary

	result := r.db.Model(&models.AppUsage{}).
		Select("app_usages.app_name, SUM(app_usages.seconds) as total_seconds, SUM(app_usages.focus_count) as focus_count, COUNT(DISTINCT app_usages.session_id) as session_count").
		Joins("JOIN session_records ON session_records.id = app_usages.session_id").
		Where("session_records.started_at >= ? AND session_records.deleted_at IS NULL", since).
		Group("app_usages.app_name").
		Order("total_seconds DESC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query app usage summary")
	}

	return summaries, nil
}

// CountSessionsSince counts sessions started since a given time
func (r *Repository) CountSessionsSince(since time.Time) (int64, error) {
	var n int64
	result := r.db.Model(&models.SessionRecord{}).Where("started_at >= ?", since).Count(&n)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to count sessions")
	}
	return n, nil
}

// DeleteOldSessions deletes sessions started before a specified date
// (soft delete)
func (r *Repository) DeleteOldSessions(before time.Time) (int64, error) {
	result := r.db.Where("started_at < ?", before).Delete(&models.SessionRecord{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old sessions")
	}
	return result.RowsAffected, nil
}

// Clear removes all index rows
func (r *Repository) Clear() error {
	for _, table := range []string{"app_usages", "capture_errors", "session_records"} {
		if result := r.db.Exec("DELETE FROM " + table); result.Error != nil {
			return errors.Wrap(result.Error, "failed to clear "+table)
		}
	}
	return nil
}
