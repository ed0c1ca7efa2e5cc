package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dcastano/store-api/internal/usecase"
)

type MySQLProductRepo struct{ db *sql.DB }

func NewMySQLProductRepo(db *sql.DB) *MySQLProductRepo { return &MySQLProductRepo{db: db} }

func (r *MySQLProductRepo) ActiveByIDs(ctx context.Context, ids []int64) ([]usecase.ProductRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id,name,price,stock,active
FROM products WHERE id IN (`+placeholders+`) AND active=1`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.ProductRecord
	for rows.Next() {
		var p usecase.ProductRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MySQLProductRepo) GetByID(ctx context.Context, id int64) (*usecase.ProductRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,name,price,stock,active
FROM products WHERE id=?`, id)
	var p usecase.ProductRecord
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *MySQLProductRepo) ListActive(ctx context.Context) ([]usecase.ProductRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,name,price,stock,active
FROM products WHERE active=1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.ProductRecord
	for rows.Next() {
		var p usecase.ProductRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ usecase.ProductStore = (*MySQLProductRepo)(nil)
