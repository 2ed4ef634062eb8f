package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

// TagPatch carries the fields of a partial tag update. Empty strings and nil
// pointers leave the stored value untouched.
type TagPatch struct {
	Name            string
	Description     string
	IsRunningSignal *bool
	Type            *models.TagType
	DeletedAt       string
}

func (s *Store) InsertTag(t models.Tag) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO tags (name, description, is_running_signal, type, sync_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.Description, t.IsRunningSignal, int(t.Type), nullString(t.SyncID), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateTagBySyncID(syncID string, p TagPatch) error {
	var isRunning, typ any
	if p.IsRunningSignal != nil {
		isRunning = *p.IsRunningSignal
	}
	if p.Type != nil {
		typ = int(*p.Type)
	}
	return s.partialUpdate("tags", syncID,
		[]string{"name", "description", "is_running_signal", "type", "deleted_at"},
		[]any{nullString(p.Name), nullString(p.Description), isRunning, typ, nullString(p.DeletedAt)})
}

const tagColumns = `id, name, description, is_running_signal, type, sync_id, created_at, updated_at, deleted_at`

func scanTag(scan func(dest ...any) error) (*models.Tag, error) {
	var t models.Tag
	var description, syncID sql.NullString
	var typ int
	var updatedAt, deletedAt sql.NullTime
	err := scan(&t.ID, &t.Name, &description, &t.IsRunningSignal, &typ, &syncID, &t.CreatedAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	t.Description = description.String
	t.SyncID = syncID.String
	t.Type = models.TagType(typ)
	t.UpdatedAt = timePtr(updatedAt)
	t.DeletedAt = timePtr(deletedAt)
	return &t, nil
}

// TagByID returns nil without error when no row matches.
func (s *Store) TagByID(id int64) (*models.Tag, error) {
	return scanTag(s.db.QueryRow(`SELECT `+tagColumns+` FROM tags WHERE id=?`, id).Scan)
}

func (s *Store) TagBySyncID(syncID string) (*models.Tag, error) {
	return scanTag(s.db.QueryRow(`SELECT `+tagColumns+` FROM tags WHERE sync_id=?`, syncID).Scan)
}

func (s *Store) TagByName(name string) (*models.Tag, error) {
	return scanTag(s.db.QueryRow(`SELECT `+tagColumns+` FROM tags WHERE name LIKE ? LIMIT 1`, "%"+name+"%").Scan)
}

// RunningSignalTag finds the one tag flagged as the running signal.
func (s *Store) RunningSignalTag() (*models.Tag, error) {
	return scanTag(s.db.QueryRow(`SELECT ` + tagColumns + ` FROM tags WHERE is_running_signal=1 LIMIT 1`).Scan)
}
