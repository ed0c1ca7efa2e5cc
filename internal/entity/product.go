package domain

import "github.com/shopspring/decimal"

// Product is the live catalog record. Stock is only ever decremented inside
// the same transaction that creates an order's line items; it never goes
// negative. Products are soft-deactivated, never deleted, so historical
// order items can keep pointing at them.
type Product struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}
