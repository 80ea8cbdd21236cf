package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the part of *pgxpool.Pool the gateway uses.
type pgxPool interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// pgQuerier is satisfied by both the pool and a pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the Postgres persistence gateway.
type PostgresStore struct {
	Pool  pgxPool
	Retry RetryPolicy
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool, retry RetryPolicy) *PostgresStore {
	return &PostgresStore{Pool: pool, Retry: retry}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          UUID PRIMARY KEY,
    seq         BIGINT GENERATED ALWAYS AS IDENTITY,
    client_name VARCHAR(200) NOT NULL,
    document    VARCHAR(14) NOT NULL,
    balance     NUMERIC(18, 2) NOT NULL CHECK (balance >= 0),
    opened_at   TIMESTAMPTZ NOT NULL,
    status      TEXT NOT NULL CHECK (status IN ('active', 'inactive'))
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_document ON accounts (document);
CREATE INDEX IF NOT EXISTS idx_accounts_client_name ON accounts (client_name);

CREATE TABLE IF NOT EXISTS transactions (
    id              UUID PRIMARY KEY,
    seq             BIGINT GENERATED ALWAYS AS IDENTITY,
    from_account_id UUID NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT,
    to_account_id   UUID NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT,
    amount          NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
    description     VARCHAR(500) NOT NULL DEFAULT '',
    type            TEXT NOT NULL DEFAULT 'transfer',
    created_at      TIMESTAMPTZ NOT NULL,
    CHECK (from_account_id <> to_account_id)
);
CREATE INDEX IF NOT EXISTS idx_transactions_from_account ON transactions (from_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to_account ON transactions (to_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
    id          UUID PRIMARY KEY,
    seq         BIGINT GENERATED ALWAYS AS IDENTITY,
    action      VARCHAR(100) NOT NULL,
    entity_type VARCHAR(100) NOT NULL,
    entity_id   VARCHAR(100) NOT NULL,
    actor       VARCHAR(100) NOT NULL,
    details     VARCHAR(1000) NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity_type ON audit_logs (entity_type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity_id ON audit_logs (entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at);
CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs (actor);
`

const pgAccountColumns = `id, client_name, document, balance, opened_at, status`

const pgTransactionSelect = `
    SELECT t.id, t.from_account_id, t.to_account_id, t.amount, t.description, t.type, t.created_at,
           fa.document, ta.document
    FROM transactions t
    JOIN accounts fa ON fa.id = t.from_account_id
    JOIN accounts ta ON ta.id = t.to_account_id`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.Retry.do(ctx, "migrate", pgTransient, func(ctx context.Context) error {
		if _, err := s.Pool.Exec(ctx, postgresSchema); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

// InsertAccount relies on ux_accounts_document to reject a second account for a document.
func (s *PostgresStore) InsertAccount(ctx context.Context, a *Account) error {
	return s.Retry.do(ctx, "insert account", pgTransient, func(ctx context.Context) error {
		_, err := s.Pool.Exec(ctx, `
            INSERT INTO accounts (id, client_name, document, balance, opened_at, status)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, a.ID, a.ClientName, a.Document, a.Balance, a.OpeningDate, string(a.Status))
		if err != nil {
			if isPgUniqueViolation(err) {
				return ErrDuplicateDocument
			}
			return pgWriteFailure("insert account", fmt.Errorf("failed to insert account: %w", err))
		}
		return nil
	})
}

func (s *PostgresStore) AccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.getAccount(ctx, "get account", `SELECT `+pgAccountColumns+` FROM accounts WHERE id = $1`, id)
}

func (s *PostgresStore) AccountByDocument(ctx context.Context, document string) (*Account, error) {
	return s.getAccount(ctx, "get account by document", `SELECT `+pgAccountColumns+` FROM accounts WHERE document = $1`, document)
}

func (s *PostgresStore) getAccount(ctx context.Context, op, query string, arg any) (*Account, error) {
	var account *Account
	err := s.Retry.do(ctx, op, pgTransient, func(ctx context.Context) error {
		a, err := scanPgAccount(s.Pool.QueryRow(ctx, query, arg))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("failed to get account: %w", err)
		}
		account = a
		return nil
	})
	return account, err
}

func (s *PostgresStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	query := `SELECT ` + pgAccountColumns + ` FROM accounts`
	var args []any

	f := filter.effective()
	switch {
	case f.Name != "":
		query += ` WHERE client_name ILIKE '%' || $1 || '%' ORDER BY client_name, seq`
		args = append(args, escapeLike(f.Name))
	case f.Document != "":
		query += ` WHERE document LIKE '%' || $1 || '%' ORDER BY document`
		args = append(args, escapeLike(f.Document))
	case f.Status != nil:
		query += ` WHERE status = $1 ORDER BY opened_at, seq`
		args = append(args, string(*f.Status))
	default:
		query += ` ORDER BY opened_at, seq`
	}

	var accounts []*Account
	err := s.Retry.do(ctx, "list accounts", pgTransient, func(ctx context.Context) error {
		rows, err := s.Pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query accounts: %w", err)
		}
		defer rows.Close()

		accounts = accounts[:0]
		for rows.Next() {
			a, err := scanPgAccount(rows)
			if err != nil {
				return fmt.Errorf("failed to scan account: %w", err)
			}
			accounts = append(accounts, a)
		}
		return rows.Err()
	})
	return accounts, err
}

func (s *PostgresStore) DeactivateAccount(ctx context.Context, id uuid.UUID) error {
	return s.Retry.do(ctx, "deactivate account", pgTransient, func(ctx context.Context) error {
		tag, err := s.Pool.Exec(ctx, `
            UPDATE accounts SET status = 'inactive'
            WHERE id = $1 AND status = 'active'
        `, id)
		if err != nil {
			return pgWriteFailure("deactivate account", fmt.Errorf("failed to deactivate account: %w", err))
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyInactive
		}
		return nil
	})
}

func (s *PostgresStore) TransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var txn *Transaction
	err := s.Retry.do(ctx, "get transaction", pgTransient, func(ctx context.Context) error {
		t, err := scanPgTransaction(s.Pool.QueryRow(ctx, pgTransactionSelect+` WHERE t.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("failed to get transaction: %w", err)
		}
		txn = t
		return nil
	})
	return txn, err
}

func (s *PostgresStore) TransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]*Transaction, error) {
	var txns []*Transaction
	err := s.Retry.do(ctx, "list transactions", pgTransient, func(ctx context.Context) error {
		rows, err := s.Pool.Query(ctx, pgTransactionSelect+`
            WHERE t.from_account_id = $1 OR t.to_account_id = $1
            ORDER BY t.created_at DESC, t.seq DESC
        `, accountID)
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}
		defer rows.Close()

		txns = txns[:0]
		for rows.Next() {
			t, err := scanPgTransaction(rows)
			if err != nil {
				return fmt.Errorf("failed to scan transaction: %w", err)
			}
			txns = append(txns, t)
		}
		return rows.Err()
	})
	return txns, err
}

// AppendAudit is idempotent on the record id, so an attempt whose reply was lost can be
// repeated.
func (s *PostgresStore) AppendAudit(ctx context.Context, l *AuditLog) error {
	return s.Retry.do(ctx, "append audit", pgTransient, func(ctx context.Context) error {
		_, err := s.Pool.Exec(ctx, `
            INSERT INTO audit_logs (id, action, entity_type, entity_id, actor, details, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            ON CONFLICT (id) DO NOTHING
        `, l.ID, l.Action, l.EntityType, l.EntityID, l.Actor, l.Details, l.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert audit log: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, error) {
	query := `SELECT id, action, entity_type, entity_id, actor, details, created_at FROM audit_logs WHERE 1=1`
	var args []any
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filter.Actor != "" {
		args = append(args, filter.Actor)
		query += fmt.Sprintf(" AND actor = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, seq DESC"

	var logs []*AuditLog
	err := s.Retry.do(ctx, "list audit logs", pgTransient, func(ctx context.Context) error {
		rows, err := s.Pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query audit logs: %w", err)
		}
		defer rows.Close()

		logs = logs[:0]
		for rows.Next() {
			var l AuditLog
			if err := rows.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.Actor, &l.Details, &l.Timestamp); err != nil {
				return fmt.Errorf("failed to scan audit log: %w", err)
			}
			l.Timestamp = l.Timestamp.UTC()
			logs = append(logs, &l)
		}
		return rows.Err()
	})
	return logs, err
}

// RunInTx runs fn in a READ COMMITTED transaction; row locks taken by LedgerTx serialize
// writers that touch the same account. Serialization failures and deadlocks are retried.
// A COMMIT whose reply is lost is never retried: it surfaces as ErrStorageUnavailable with an
// unknown outcome instead of applying fn a second time.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return s.Retry.do(ctx, "ledger transaction", pgTransient, func(ctx context.Context) error {
		tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{
			IsoLevel:   pgx.ReadCommitted,
			AccessMode: pgx.ReadWrite,
		})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, &pgLedgerTx{q: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return pgWriteFailure("ledger transaction", fmt.Errorf("failed to commit transaction: %w", err))
		}
		return nil
	})
}

type pgLedgerTx struct {
	q pgQuerier
}

func (t *pgLedgerTx) LockAccountsByDocument(ctx context.Context, documents ...string) (map[string]*Account, error) {
	docs := uniqueSorted(documents)
	rows, err := t.q.Query(ctx, `
        SELECT `+pgAccountColumns+`
        FROM accounts
        WHERE document = ANY($1)
        ORDER BY document
        FOR UPDATE
    `, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Account, len(docs))
	for rows.Next() {
		a, err := scanPgAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out[a.Document] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	return out, nil
}

func (t *pgLedgerTx) UpdateBalance(ctx context.Context, a *Account) error {
	tag, err := t.q.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, a.ID, a.Balance)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("failed to update balance: account %s not found", a.ID)
	}
	return nil
}

func (t *pgLedgerTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO transactions (id, from_account_id, to_account_id, amount, description, type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, txn.ID, txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.Description, string(txn.Type), txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func scanPgAccount(row pgx.Row) (*Account, error) {
	var a Account
	var status string
	if err := row.Scan(&a.ID, &a.ClientName, &a.Document, &a.Balance, &a.OpeningDate, &status); err != nil {
		return nil, err
	}
	a.Status = AccountStatus(status)
	a.OpeningDate = a.OpeningDate.UTC()
	return &a, nil
}

func scanPgTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var typ string
	if err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Description, &typ, &t.CreatedAt,
		&t.FromDocument, &t.ToDocument); err != nil {
		return nil, err
	}
	t.Type = TransactionType(typ)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// pgTransient reports errors worth retrying: serialization failures, deadlocks, and
// connection-level failures.
func pgTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "08000", "08003", "08006":
			return true
		}
		return false
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// pgWriteFailure classifies a failed write. A server-reported error means the statement was
// rolled back, and an error raised before anything was sent leaves the database untouched;
// both may be retried under pgTransient. Any other failure (a timeout or a dropped connection
// while waiting for the reply) has an unknown outcome and becomes final.
func pgWriteFailure(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || pgNothingSent(err) {
		return err
	}
	return outcomeUnknown(op, err)
}

func pgNothingSent(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// escapeLike neutralizes LIKE wildcards in user input. Both gateways use ESCAPE '\'
// implicitly (Postgres default) or explicitly (SQLite).
func escapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}
