package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

func (s *Store) insertEventAt(tagID, productID int64, intValue int64, floatValue float64, stringValue string, at time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO tag_data (tag_id, product_id, int_value, float_value, string_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tagID, productID, intValue, floatValue, nullString(stringValue), at)
	if err != nil {
		return 0, fmt.Errorf("insert tag data: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertIntEvent(tagID, productID int64, value int64) (int64, error) {
	return s.insertEventAt(tagID, productID, value, 0, "", time.Now())
}

func (s *Store) InsertFloatEvent(tagID, productID int64, value float64) (int64, error) {
	return s.insertEventAt(tagID, productID, 0, value, "", time.Now())
}

func (s *Store) InsertStringEvent(tagID, productID int64, value string) (int64, error) {
	return s.insertEventAt(tagID, productID, 0, 0, value, time.Now())
}

const eventColumns = `id, tag_id, product_id, downtime_reason_id, int_value, float_value, string_value, sync_id, needs_resync, created_at, updated_at`

func scanEvent(scan func(dest ...any) error) (*models.TagDataEvent, error) {
	var e models.TagDataEvent
	var reasonID sql.NullInt64
	var stringValue, syncID sql.NullString
	var updatedAt sql.NullTime
	err := scan(&e.ID, &e.TagID, &e.ProductID, &reasonID, &e.IntValue, &e.FloatValue, &stringValue, &syncID, &e.NeedsResync, &e.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tag data: %w", err)
	}
	if reasonID.Valid {
		v := reasonID.Int64
		e.DowntimeReasonID = &v
	}
	e.StringValue = stringValue.String
	e.SyncID = syncID.String
	e.UpdatedAt = timePtr(updatedAt)
	return &e, nil
}

func (s *Store) listEvents(query string, args ...any) ([]models.TagDataEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tag data: %w", err)
	}
	defer rows.Close()

	var out []models.TagDataEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) EventByID(id int64) (*models.TagDataEvent, error) {
	return scanEvent(s.db.QueryRow(`SELECT `+eventColumns+` FROM tag_data WHERE id=?`, id).Scan)
}

// LatestEventForTag returns the most recent event for a tag, nil if the tag
// has never recorded a value.
func (s *Store) LatestEventForTag(tagID int64) (*models.TagDataEvent, error) {
	return scanEvent(s.db.QueryRow(
		`SELECT `+eventColumns+` FROM tag_data WHERE tag_id=? ORDER BY created_at DESC, id DESC LIMIT 1`,
		tagID).Scan)
}

// UnresolvedStops lists the stop events of a tag that still lack a downtime
// reason, most recent first.
func (s *Store) UnresolvedStops(tagID int64) ([]models.TagDataEvent, error) {
	return s.listEvents(
		`SELECT `+eventColumns+` FROM tag_data
		 WHERE tag_id=? AND int_value=? AND downtime_reason_id IS NULL
		 ORDER BY created_at DESC, id DESC`,
		tagID, int64(models.StateStopped))
}

// AttachDowntimeReason records the cause for one stop event and flags the
// event for re-push. Last write wins on repeated attachment.
func (s *Store) AttachDowntimeReason(eventID, reasonID int64) error {
	_, err := s.db.Exec(
		`UPDATE tag_data SET downtime_reason_id=?, needs_resync=1, updated_at=? WHERE id=?`,
		reasonID, time.Now(), eventID)
	if err != nil {
		return fmt.Errorf("attach downtime reason: %w", err)
	}
	return nil
}

// UnsyncedEvents selects the events that have never been acknowledged or
// were mutated since their last acknowledgment.
func (s *Store) UnsyncedEvents(limit int) ([]models.TagDataEvent, error) {
	return s.listEvents(
		`SELECT `+eventColumns+` FROM tag_data
		 WHERE sync_id IS NULL OR needs_resync=1
		 ORDER BY id LIMIT ?`,
		limit)
}

// SetEventSyncID adopts the server-assigned sync id for one event. This is
// the only operation that clears needs_resync.
func (s *Store) SetEventSyncID(eventID int64, syncID string) error {
	_, err := s.db.Exec(
		`UPDATE tag_data SET sync_id=?, needs_resync=0, updated_at=? WHERE id=?`,
		syncID, time.Now(), eventID)
	if err != nil {
		return fmt.Errorf("set tag data sync id: %w", err)
	}
	return nil
}

// EventHourCount counts the events recorded for a tag in the last hour.
func (s *Store) EventHourCount(tagID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tag_data WHERE tag_id=? AND created_at >= ?`,
		tagID, time.Now().Add(-time.Hour)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tag data: %w", err)
	}
	return n, nil
}

// LatestDowntimeReasonText renders the most recently attached cause for a
// tag's stop events as "primary, secondary" (or just the primary's name).
// Empty when no stop event carries a reason yet.
func (s *Store) LatestDowntimeReasonText(tagID int64) (string, error) {
	var reason, parent sql.NullString
	err := s.db.QueryRow(
		`SELECT r1.name, r2.name
		 FROM tag_data
		 JOIN downtime_reasons AS r1 ON r1.id = tag_data.downtime_reason_id
		 LEFT JOIN downtime_reasons AS r2 ON r2.id = r1.is_secondary_for
		 WHERE tag_data.tag_id=? AND tag_data.int_value=?
		 ORDER BY tag_data.updated_at DESC, tag_data.id DESC LIMIT 1`,
		tagID, int64(models.StateStopped)).Scan(&reason, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest downtime reason: %w", err)
	}
	if parent.Valid {
		return parent.String + ", " + reason.String, nil
	}
	return reason.String, nil
}
