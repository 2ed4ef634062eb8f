package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

type ProductPatch struct {
	Name        string
	ProductCode string
	IdealCPH    *float64
	DeletedAt   string
}

func (s *Store) InsertProduct(p models.Product) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO products (name, product_code, ideal_cph, sync_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Name, nullString(p.ProductCode), p.IdealCPH, nullString(p.SyncID), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateProductBySyncID(syncID string, p ProductPatch) error {
	var cph any
	if p.IdealCPH != nil {
		cph = *p.IdealCPH
	}
	return s.partialUpdate("products", syncID,
		[]string{"name", "product_code", "ideal_cph", "deleted_at"},
		[]any{nullString(p.Name), nullString(p.ProductCode), cph, nullString(p.DeletedAt)})
}

const productColumns = `id, name, product_code, ideal_cph, sync_id, created_at, updated_at, deleted_at`

func scanProduct(scan func(dest ...any) error) (*models.Product, error) {
	var p models.Product
	var code, syncID sql.NullString
	var updatedAt, deletedAt sql.NullTime
	err := scan(&p.ID, &p.Name, &code, &p.IdealCPH, &syncID, &p.CreatedAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.ProductCode = code.String
	p.SyncID = syncID.String
	p.UpdatedAt = timePtr(updatedAt)
	p.DeletedAt = timePtr(deletedAt)
	return &p, nil
}

func (s *Store) ProductByID(id int64) (*models.Product, error) {
	return scanProduct(s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id=?`, id).Scan)
}

func (s *Store) ProductBySyncID(syncID string) (*models.Product, error) {
	return scanProduct(s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE sync_id=?`, syncID).Scan)
}

func (s *Store) Products() ([]models.Product, error) {
	rows, err := s.db.Query(`SELECT ` + productColumns + ` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
