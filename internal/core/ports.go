package core

import (
	"context"
	"time"
)

// ListFilter narrows a transaction listing. Zero-value fields are ignored.
// Start/End bound OccurredAt inclusively on both ends.
type ListFilter struct {
	Start    time.Time
	End      time.Time
	Category Category
	Bank     string
	Mode     PaymentMode
	Limit    int
}

// UpdateFields carries the user-editable subset of a transaction record.
// Nil pointers leave the stored value untouched.
type UpdateFields struct {
	Amount   *Money
	Category *Category
	Mode     *PaymentMode
	Receiver *string
	Bank     *string
}

// TransactionLister reads transactions. Results are sorted by OccurredAt
// descending unless an implementation documents otherwise.
type TransactionLister interface {
	List(ctx context.Context, f ListFilter) ([]TransactionRecord, error)
}

// TransactionWriter persists transactions with insert-or-replace semantics
// on MessageID.
type TransactionWriter interface {
	Save(ctx context.Context, t TransactionRecord) (string, error)
}

// TransactionEditor applies user edits and deletions.
type TransactionEditor interface {
	UpdateByID(ctx context.Context, id string, fields UpdateFields) error
	DeleteByID(ctx context.Context, id string) error
}
