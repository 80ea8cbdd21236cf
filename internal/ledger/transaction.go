package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is fixed to transfer for everything the ledger records today.
type TransactionType string

const TypeTransfer TransactionType = "transfer"

// Transaction is the immutable record of a completed transfer. Accounts are referenced by id;
// FromDocument and ToDocument are filled in by the gateway on read.
type Transaction struct {
	ID            uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Description   string
	Type          TransactionType
	CreatedAt     time.Time

	FromDocument string
	ToDocument   string
}

func newTransfer(from, to *Account, amount decimal.Decimal, description string, now time.Time) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        amount,
		Description:   description,
		Type:          TypeTransfer,
		CreatedAt:     now.UTC(),
		FromDocument:  from.Document,
		ToDocument:    to.Document,
	}
}

// TransferResult is the external projection of a transaction.
type TransferResult struct {
	TransactionID string    `json:"transactionId"`
	FromDocument  string    `json:"fromDocument"`
	ToDocument    string    `json:"toDocument"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
	Description   string    `json:"description"`

	// AuditDegraded reports a committed transfer whose audit record could not be written.
	AuditDegraded bool `json:"auditDegraded,omitempty"`
}

func (t *Transaction) Result() TransferResult {
	return TransferResult{
		TransactionID: t.ID.String(),
		FromDocument:  t.FromDocument,
		ToDocument:    t.ToDocument,
		Amount:        t.Amount.StringFixed(2),
		CreatedAt:     t.CreatedAt,
		Description:   t.Description,
	}
}
