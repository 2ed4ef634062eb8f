package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

// DowntimeReasonPatch references the parent by local id. Callers resolve the
// parent's sync id before building the patch.
type DowntimeReasonPatch struct {
	Name           string
	IsSecondaryFor *int64
	DeletedAt      string
}

func (s *Store) InsertDowntimeReason(r models.DowntimeReason) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO downtime_reasons (name, is_secondary_for, sync_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		r.Name, nullInt64(r.IsSecondaryFor), nullString(r.SyncID), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert downtime reason: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateDowntimeReasonBySyncID(syncID string, p DowntimeReasonPatch) error {
	var parent any
	if p.IsSecondaryFor != nil {
		parent = *p.IsSecondaryFor
	}
	return s.partialUpdate("downtime_reasons", syncID,
		[]string{"name", "is_secondary_for", "deleted_at"},
		[]any{nullString(p.Name), parent, nullString(p.DeletedAt)})
}

const reasonColumns = `id, name, is_secondary_for, sync_id, created_at, updated_at, deleted_at`

func scanReason(scan func(dest ...any) error) (*models.DowntimeReason, error) {
	var r models.DowntimeReason
	var parent sql.NullInt64
	var syncID sql.NullString
	var updatedAt, deletedAt sql.NullTime
	err := scan(&r.ID, &r.Name, &parent, &syncID, &r.CreatedAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan downtime reason: %w", err)
	}
	if parent.Valid {
		v := parent.Int64
		r.IsSecondaryFor = &v
	}
	r.SyncID = syncID.String
	r.UpdatedAt = timePtr(updatedAt)
	r.DeletedAt = timePtr(deletedAt)
	return &r, nil
}

func (s *Store) DowntimeReasonByID(id int64) (*models.DowntimeReason, error) {
	return scanReason(s.db.QueryRow(`SELECT `+reasonColumns+` FROM downtime_reasons WHERE id=?`, id).Scan)
}

func (s *Store) DowntimeReasonBySyncID(syncID string) (*models.DowntimeReason, error) {
	return scanReason(s.db.QueryRow(`SELECT `+reasonColumns+` FROM downtime_reasons WHERE sync_id=?`, syncID).Scan)
}

func (s *Store) listReasons(query string, args ...any) ([]models.DowntimeReason, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list downtime reasons: %w", err)
	}
	defer rows.Close()

	var out []models.DowntimeReason
	for rows.Next() {
		r, err := scanReason(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// PrimaryDowntimeReasons lists the reasons with no parent.
func (s *Store) PrimaryDowntimeReasons() ([]models.DowntimeReason, error) {
	return s.listReasons(`SELECT ` + reasonColumns + ` FROM downtime_reasons WHERE is_secondary_for IS NULL ORDER BY name`)
}

// SecondaryDowntimeReasons lists the children of one primary reason.
func (s *Store) SecondaryDowntimeReasons(primaryID int64) ([]models.DowntimeReason, error) {
	return s.listReasons(`SELECT `+reasonColumns+` FROM downtime_reasons WHERE is_secondary_for=? ORDER BY name`, primaryID)
}
