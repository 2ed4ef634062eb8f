package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

type UserPatch struct {
	FirstName        string
	LastName         string
	IsDeviceAdmin    *bool
	IsDeviceOperator *bool
	DeletedAt        string
}

func (s *Store) InsertUser(u models.User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (fname, lname, is_device_admin, is_device_operator, sync_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.IsDeviceAdmin, u.IsDeviceOperator, nullString(u.SyncID), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateUserBySyncID(syncID string, p UserPatch) error {
	var admin, operator any
	if p.IsDeviceAdmin != nil {
		admin = *p.IsDeviceAdmin
	}
	if p.IsDeviceOperator != nil {
		operator = *p.IsDeviceOperator
	}
	return s.partialUpdate("users", syncID,
		[]string{"fname", "lname", "is_device_admin", "is_device_operator", "deleted_at"},
		[]any{nullString(p.FirstName), nullString(p.LastName), admin, operator, nullString(p.DeletedAt)})
}

const userColumns = `id, fname, lname, is_device_admin, is_device_operator, sync_id, created_at, updated_at, deleted_at`

func scanUser(scan func(dest ...any) error) (*models.User, error) {
	var u models.User
	var syncID sql.NullString
	var updatedAt, deletedAt sql.NullTime
	err := scan(&u.ID, &u.FirstName, &u.LastName, &u.IsDeviceAdmin, &u.IsDeviceOperator, &syncID, &u.CreatedAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.SyncID = syncID.String
	u.UpdatedAt = timePtr(updatedAt)
	u.DeletedAt = timePtr(deletedAt)
	return &u, nil
}

func (s *Store) UserByID(id int64) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id=?`, id).Scan)
}

func (s *Store) UserBySyncID(syncID string) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE sync_id=?`, syncID).Scan)
}

func (s *Store) Users() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY lname, fname`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
