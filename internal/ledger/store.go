package ledger

import (
	"context"

	"github.com/google/uuid"
)

// AccountStore persists accounts. InsertAccount must rely on the storage unique index on
// document and report a violation as ErrDuplicateDocument.
type AccountStore interface {
	InsertAccount(ctx context.Context, a *Account) error
	AccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	AccountByDocument(ctx context.Context, document string) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	// DeactivateAccount flips an active account to inactive and returns ErrAlreadyInactive
	// when no active row matched.
	DeactivateAccount(ctx context.Context, id uuid.UUID) error
}

// TransactionStore reads transaction records. Lists are newest first.
type TransactionStore interface {
	TransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	TransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]*Transaction, error)
}

// AuditStore appends and reads audit records. Lists are newest first.
type AuditStore interface {
	AppendAudit(ctx context.Context, log *AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, error)
}

// TxRunner runs fn inside one storage transaction with at least read-committed isolation.
// fn may be invoked again when the gateway retries a transient failure, so it must not keep
// state across calls. Returning an error rolls everything back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the set of operations the transfer needs inside its storage transaction.
type LedgerTx interface {
	// LockAccountsByDocument loads and row-locks the accounts holding the given documents,
	// in a deterministic order. Missing documents are absent from the map.
	LockAccountsByDocument(ctx context.Context, documents ...string) (map[string]*Account, error)
	UpdateBalance(ctx context.Context, a *Account) error
	InsertTransaction(ctx context.Context, t *Transaction) error
}

// Store is implemented by each persistence gateway.
type Store interface {
	AccountStore
	TransactionStore
	AuditStore
	TxRunner
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}
