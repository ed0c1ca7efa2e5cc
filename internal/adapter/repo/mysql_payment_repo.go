package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dcastano/store-api/internal/usecase"
)

type MySQLPaymentRepo struct{ db *sql.DB }

func NewMySQLPaymentRepo(db *sql.DB) *MySQLPaymentRepo { return &MySQLPaymentRepo{db: db} }

func (r *MySQLPaymentRepo) Insert(ctx context.Context, p *usecase.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payments (id,order_id,amount,status,external_reference,preference_id,gateway_payment_id,raw_payload,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,NOW(),NOW())`,
		p.ID, p.OrderID, p.Amount, p.Status, p.ExternalReference, p.PreferenceID, p.GatewayPaymentID, p.RawPayload)
	return err
}

func (r *MySQLPaymentRepo) SetPreference(ctx context.Context, id, preferenceID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE payments SET preference_id = ?, updated_at = NOW() WHERE id = ?`, preferenceID, id)
	return err
}

func (r *MySQLPaymentRepo) UpdateResult(ctx context.Context, id string, gatewayPaymentID *string, status string, raw []byte) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE payments SET gateway_payment_id = ?, status = ?, raw_payload = ?, updated_at = NOW()
WHERE id = ?`, gatewayPaymentID, status, raw, id)
	return err
}

func (r *MySQLPaymentRepo) FindByGatewayID(ctx context.Context, gatewayPaymentID string) (*usecase.PaymentRecord, error) {
	return r.findOne(ctx, `WHERE gateway_payment_id = ?`, gatewayPaymentID)
}

func (r *MySQLPaymentRepo) FindByExternalReference(ctx context.Context, ref string) (*usecase.PaymentRecord, error) {
	return r.findOne(ctx, `WHERE external_reference = ?`, ref)
}

func (r *MySQLPaymentRepo) LatestForOrder(ctx context.Context, orderID string) (*usecase.PaymentRecord, error) {
	return r.findOne(ctx, `WHERE order_id = ? ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (r *MySQLPaymentRepo) findOne(ctx context.Context, where string, arg any) (*usecase.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,order_id,amount,status,external_reference,preference_id,gateway_payment_id,raw_payload,created_at
FROM payments `+where, arg)
	var p usecase.PaymentRecord
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.ExternalReference,
		&p.PreferenceID, &p.GatewayPaymentID, &p.RawPayload, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

var _ usecase.PaymentRepo = (*MySQLPaymentRepo)(nil)
