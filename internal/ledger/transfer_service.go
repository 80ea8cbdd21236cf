package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStore is what the ledger core needs from a gateway.
type TransferStore interface {
	AccountStore
	TransactionStore
	TxRunner
}

// TransferService is the ledger core: it moves money between two accounts atomically.
type TransferService struct {
	store  TransferStore
	audit  *AuditService
	logger *slog.Logger
	now    func() time.Time
}

func NewTransferService(store TransferStore, audit *AuditService, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{store: store, audit: audit, logger: logger, now: time.Now}
}

// Transfer debits the source, credits the destination and records the transaction in one
// storage transaction. Both account rows are locked before any precondition is evaluated.
// The TRANSFER_EXECUTED audit record is written after commit; if that fails the transfer still
// stands and the result has AuditDegraded set.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest, actor string) (result TransferResult, err error) {
	start := time.Now()
	defer func() {
		transfersTotal.WithLabelValues(resultLabel(err)).Inc()
		transferDuration.Observe(time.Since(start).Seconds())
	}()

	req, err = ValidateTransfer(req)
	if err != nil {
		return TransferResult{}, err
	}

	var txn *Transaction
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		txn = nil

		locked, err := tx.LockAccountsByDocument(ctx, req.FromDocument, req.ToDocument)
		if err != nil {
			return err
		}
		from, ok := locked[req.FromDocument]
		if !ok {
			return ErrSourceNotFound
		}
		to, ok := locked[req.ToDocument]
		if !ok {
			return ErrDestinationNotFound
		}
		if err := checkTransfer(from, to, req.Amount); err != nil {
			return err
		}

		if err := from.Withdraw(req.Amount); err != nil {
			return err
		}
		if err := to.Deposit(req.Amount); err != nil {
			return err
		}
		t := newTransfer(from, to, req.Amount, req.Description, s.now())

		if err := tx.UpdateBalance(ctx, from); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.logger.InfoContext(ctx, "transfer committed",
		"transaction_id", txn.ID.String(),
		"from", txn.FromDocument,
		"to", txn.ToDocument,
		"amount", txn.Amount.StringFixed(2),
		"actor", actor,
	)

	result = txn.Result()
	result.AuditDegraded = s.audit.recordCommitted(ctx, ActionTransferExecuted, EntityTransaction, txn.ID.String(), actor,
		fmt.Sprintf("Transfer of %s from %s to %s", txn.Amount.StringFixed(2), txn.FromDocument, txn.ToDocument))
	return result, nil
}

// checkTransfer evaluates the business preconditions in their contractual order. from and to
// may be the same account.
func checkTransfer(from, to *Account, amount decimal.Decimal) error {
	switch {
	case !from.IsActive():
		return ErrSourceInactive
	case !to.IsActive():
		return ErrDestinationInactive
	case !amount.IsPositive():
		return ErrNonPositiveAmount
	case from.Balance.LessThan(amount):
		return ErrInsufficientFunds
	case from.ID == to.ID:
		return ErrSameAccountTransfer
	}
	return nil
}

// AccountTransactions lists every transaction the account took part in, newest first.
func (s *TransferService) AccountTransactions(ctx context.Context, document string) ([]*Transaction, error) {
	doc := NormalizeDocument(document)
	if doc == "" {
		return nil, ErrAccountNotFound
	}
	account, err := s.store.AccountByDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.store.TransactionsByAccount(ctx, account.ID)
}

func (s *TransferService) AccountTransactionsByID(ctx context.Context, accountID uuid.UUID) ([]*Transaction, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.TransactionsByAccount(ctx, accountID)
}

func (s *TransferService) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.store.TransactionByID(ctx, id)
}
