package ledger

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
)

// PostgresIntegrationSuite runs the services against a real Postgres reachable at
// TEST_DATABASE_URL. The schema is dropped and re-applied before every test.
type PostgresIntegrationSuite struct {
	suite.Suite
	pool      *pgxpool.Pool
	store     *PostgresStore
	accounts  *AccountService
	transfers *TransferService
	audit     *AuditService
}

func TestPostgresIntegration(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, os.Getenv("TEST_DATABASE_URL"))
	s.Require().NoError(err)
	s.Require().NoError(pool.Ping(ctx))
	s.pool = pool
	s.store = NewPostgresStore(pool, DefaultRetryPolicy)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS audit_logs, transactions, accounts`)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Migrate(ctx))

	s.audit = NewAuditService(s.store, testLogger)
	s.accounts = NewAccountService(s.store, s.audit, testLogger)
	s.transfers = NewTransferService(s.store, s.audit, testLogger)
}

func (s *PostgresIntegrationSuite) open(doc string) *Account {
	a, err := s.accounts.CreateAccount(context.Background(), CreateAccountRequest{ClientName: "client " + doc, Document: doc}, "")
	s.Require().NoError(err)
	return a
}

func (s *PostgresIntegrationSuite) TestTransferScenario() {
	ctx := context.Background()
	a := s.open(docA)
	s.open(docB)

	_, err := s.accounts.CreateAccount(ctx, CreateAccountRequest{ClientName: "dup", Document: docA}, "")
	s.ErrorIs(err, ErrDuplicateDocument)

	res, err := s.transfers.Transfer(ctx, TransferRequest{FromDocument: docA, ToDocument: docB, Amount: dec("500.00")}, "it")
	s.Require().NoError(err)
	s.False(res.AuditDegraded)

	_, err = s.transfers.Transfer(ctx, TransferRequest{FromDocument: docA, ToDocument: docB, Amount: dec("1000.00")}, "it")
	s.ErrorIs(err, ErrInsufficientFunds)

	from, err := s.accounts.GetAccountByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("500.00", from.Balance.StringFixed(2))

	txns, err := s.transfers.AccountTransactions(ctx, docB)
	s.Require().NoError(err)
	s.Require().Len(txns, 1)
	s.Equal(res.TransactionID, txns[0].ID.String())

	logs, err := s.audit.List(ctx, AuditFilter{Actor: "it"})
	s.Require().NoError(err)
	s.Len(logs, 1)
}

func (s *PostgresIntegrationSuite) TestDeactivateAndFilters() {
	ctx := context.Background()
	s.open(docA)
	s.open(docB)

	_, err := s.accounts.DeactivateAccount(ctx, docB, "ops")
	s.Require().NoError(err)
	_, err = s.accounts.DeactivateAccount(ctx, docB, "ops")
	s.ErrorIs(err, ErrAlreadyInactive)

	inactive := StatusInactive
	list, err := s.accounts.ListAccounts(ctx, AccountFilter{Status: &inactive})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(docB, list[0].Document)

	byName, err := s.accounts.ListAccounts(ctx, AccountFilter{Name: "CLIENT " + docA[:4]})
	s.Require().NoError(err)
	s.Len(byName, 1)

	_, err = s.transfers.Transfer(ctx, TransferRequest{FromDocument: docA, ToDocument: docB, Amount: dec("1.00")}, "")
	s.ErrorIs(err, ErrDestinationInactive)
}

func (s *PostgresIntegrationSuite) TestConcurrentOpposingTransfers() {
	ctx := context.Background()
	s.open(docA)
	s.open(docB)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := docA, docB
			if i%2 == 1 {
				from, to = docB, docA
			}
			_, _ = s.transfers.Transfer(ctx, TransferRequest{FromDocument: from, ToDocument: to, Amount: dec("75.00")}, "")
		}(i)
	}
	wg.Wait()

	a, err := s.accounts.GetAccountByDocument(ctx, docA)
	s.Require().NoError(err)
	b, err := s.accounts.GetAccountByDocument(ctx, docB)
	s.Require().NoError(err)
	s.Equal("2000.00", a.Balance.Add(b.Balance).StringFixed(2))
	s.False(a.Balance.IsNegative())
	s.False(b.Balance.IsNegative())
}
