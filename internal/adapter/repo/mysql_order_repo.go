package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dcastano/store-api/internal/usecase"
)

var ErrNotFound = errors.New("not found")

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

// CreateWithItems runs the whole order creation in one transaction: stock
// decrements, shipping address, order row, line items. The decrement is
// conditional (stock >= qty) so concurrent orders against the same product
// serialize at the row and can never drive stock negative.
func (r *MySQLOrderRepo) CreateWithItems(ctx context.Context, o *usecase.OrderRecord, items []usecase.OrderItemRecord, addr usecase.Address) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, it := range items {
		res, err := tx.ExecContext(ctx, `
UPDATE products SET stock = stock - ?
WHERE id = ? AND active = 1 AND stock >= ?`,
			it.Quantity, it.ProductID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return &usecase.InsufficientStockError{ProductName: it.Name}
		}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO addresses (full_name,phone,street,city,state,postal_code,country,created_at)
VALUES (?,?,?,?,?,?,?,NOW())`,
		addr.FullName, addr.Phone, addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	addressID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO orders (id,user_id,guest_email,address_id,status,total,created_at,updated_at)
VALUES (?,?,?,?,?,?,NOW(),NOW())`,
		o.ID, o.UserID, o.GuestEmail, addressID, o.Status, o.Total); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO order_items (order_id,product_id,name,unit_price,quantity,created_at)
VALUES (?,?,?,?,?,NOW())`,
			o.ID, it.ProductID, it.Name, it.UnitPrice, it.Quantity); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,user_id,guest_email,status,total,created_at
FROM orders WHERE id=?`, id)
	var rec usecase.OrderRecord
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.GuestEmail, &rec.Status, &rec.Total, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *MySQLOrderRepo) GetDetail(ctx context.Context, id string) (*usecase.OrderDetail, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT o.id,o.user_id,o.guest_email,o.status,o.total,o.created_at,
       a.full_name,a.phone,a.street,a.city,a.state,a.postal_code,a.country
FROM orders o JOIN addresses a ON a.id = o.address_id
WHERE o.id=?`, id)

	var d usecase.OrderDetail
	err := row.Scan(
		&d.Order.ID, &d.Order.UserID, &d.Order.GuestEmail, &d.Order.Status, &d.Order.Total, &d.Order.CreatedAt,
		&d.Address.FullName, &d.Address.Phone, &d.Address.Street, &d.Address.City,
		&d.Address.State, &d.Address.PostalCode, &d.Address.Country,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.db.QueryContext(ctx, `
SELECT id,order_id,product_id,name,unit_price,quantity
FROM order_items WHERE order_id=? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var it usecase.OrderItemRecord
		if err := items.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		d.Items = append(d.Items, it)
	}
	if err := items.Err(); err != nil {
		return nil, err
	}

	pays, err := r.db.QueryContext(ctx, `
SELECT id,order_id,amount,status,external_reference,preference_id,gateway_payment_id,created_at
FROM payments WHERE order_id=? ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer pays.Close()
	for pays.Next() {
		var p usecase.PaymentRecord
		if err := pays.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.ExternalReference, &p.PreferenceID, &p.GatewayPaymentID, &p.CreatedAt); err != nil {
			return nil, err
		}
		d.Payments = append(d.Payments, p)
	}
	if err := pays.Err(); err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *MySQLOrderRepo) UpdateStatus(ctx context.Context, id, toStatus string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`, toStatus, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatusIf applies a guarded transition. rows == 0 means either the
// order does not exist or it already left fromStatus.
func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status = ?, updated_at = NOW()
WHERE id = ? AND status = ?`, toStatus, id, fromStatus)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
