// Package orders keeps a journal of finalized orders. The journal
// backs idempotent finalization (one invoice per confirmation screen)
// and records status updates reported by the backend.
package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a journal entry.
type Status string

const (
	StatusCreated Status = "created"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ValidStatus reports whether s is a known terminal-report status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// ErrDuplicate marks an idempotency key that was already reserved.
var ErrDuplicate = errors.New("orders: duplicate order key")

// Order is one journal entry.
type Order struct {
	IdemKey     string    `db:"idem_key"`
	TrxID       string    `db:"trx_id"`
	UserID      int64     `db:"user_id"`
	SKU         string    `db:"sku"`
	Product     string    `db:"product"`
	Destination string    `db:"destination"`
	Amount      int64     `db:"amount"`
	Status      Status    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Store is the order journal. Reserve claims an idempotency key
// before the payment gateway is called; Record fills in the order
// details once the invoice exists.
type Store interface {
	Reserve(ctx context.Context, idemKey string) error
	Record(ctx context.Context, o Order) error
	RecordStatus(ctx context.Context, trxID string, status Status) error
	Count(ctx context.Context) (int, error)
}

// NewIdemKey mints a compact random key that fits inside callback
// button data alongside the rest of an order token.
func NewIdemKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
