package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	docA    = "52998224725"
	docB    = "11144477735"
	docC    = "12345678909"
	docD    = "98765432100"
	docCorp = "11222333000181"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"), RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Millisecond,
		Timeout:     10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

type testServices struct {
	store     *SQLiteStore
	audit     *AuditService
	accounts  *AccountService
	transfers *TransferService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	store := newTestStore(t)
	audit := NewAuditService(store, testLogger)
	return &testServices{
		store:     store,
		audit:     audit,
		accounts:  NewAccountService(store, audit, testLogger),
		transfers: NewTransferService(store, audit, testLogger),
	}
}

func (s *testServices) open(t *testing.T, name, doc string) *Account {
	t.Helper()
	a, err := s.accounts.CreateAccount(context.Background(), CreateAccountRequest{ClientName: name, Document: doc}, "tester")
	require.NoError(t, err)
	return a
}

func (s *testServices) balance(t *testing.T, doc string) decimal.Decimal {
	t.Helper()
	a, err := s.accounts.GetAccountByDocument(context.Background(), doc)
	require.NoError(t, err)
	return a.Balance
}

func (s *testServices) transactionCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, s.store.DB.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n))
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// brokenAuditStore fails every append.
type brokenAuditStore struct {
	AuditStore
}

func (brokenAuditStore) AppendAudit(context.Context, *AuditLog) error {
	return errors.New("audit volume is read-only")
}
