package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore is the embedded persistence gateway used for development and tests.
// Writers serialize on BEGIN IMMEDIATE; readers use WAL snapshots.
type SQLiteStore struct {
	DB    *sql.DB
	Retry RetryPolicy
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path. ":memory:" is accepted but is
// limited to a single connection.
func OpenSQLite(path string, retry RetryPolicy) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{DB: db, Retry: retry}, nil
}

func sqliteDSN(path string) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	if path == ":memory:" {
		return "file::memory:?" + params
	}
	params += "&_journal_mode=WAL"
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "?") {
			return path + "&" + params
		}
		return path + "?" + params
	}
	return "file:" + path + "?" + params
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    client_name TEXT NOT NULL,
    document    TEXT NOT NULL,
    balance     TEXT NOT NULL,
    opened_at   INTEGER NOT NULL,
    status      TEXT NOT NULL CHECK (status IN ('active', 'inactive'))
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_document ON accounts (document);
CREATE INDEX IF NOT EXISTS idx_accounts_client_name ON accounts (client_name);

CREATE TABLE IF NOT EXISTS transactions (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    id              TEXT NOT NULL UNIQUE,
    from_account_id TEXT NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT,
    to_account_id   TEXT NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT,
    amount          TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    type            TEXT NOT NULL DEFAULT 'transfer',
    created_at      INTEGER NOT NULL,
    CHECK (from_account_id <> to_account_id)
);
CREATE INDEX IF NOT EXISTS idx_transactions_from_account ON transactions (from_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to_account ON transactions (to_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    actor       TEXT NOT NULL,
    details     TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity_type ON audit_logs (entity_type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity_id ON audit_logs (entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at);
CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs (actor);
`

const sqliteAccountColumns = `id, client_name, document, balance, opened_at, status`

const sqliteTransactionSelect = `
    SELECT t.id, t.from_account_id, t.to_account_id, t.amount, t.description, t.type, t.created_at,
           fa.document, ta.document
    FROM transactions t
    JOIN accounts fa ON fa.id = t.from_account_id
    JOIN accounts ta ON ta.id = t.to_account_id`

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlRow interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return s.Retry.do(ctx, "migrate", sqliteTransient, func(ctx context.Context) error {
		if _, err := s.DB.ExecContext(ctx, sqliteSchema); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	_ = s.DB.Close()
}

func (s *SQLiteStore) InsertAccount(ctx context.Context, a *Account) error {
	return s.Retry.do(ctx, "insert account", sqliteTransient, func(ctx context.Context) error {
		_, err := s.DB.ExecContext(ctx, `
            INSERT INTO accounts (id, client_name, document, balance, opened_at, status)
            VALUES (?, ?, ?, ?, ?, ?)
        `, a.ID.String(), a.ClientName, a.Document, a.Balance.StringFixed(2), a.OpeningDate.UnixNano(), string(a.Status))
		if err != nil {
			if isSQLiteUniqueViolation(err) {
				return ErrDuplicateDocument
			}
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) AccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.getAccount(ctx, "get account", `SELECT `+sqliteAccountColumns+` FROM accounts WHERE id = ?`, id.String())
}

func (s *SQLiteStore) AccountByDocument(ctx context.Context, document string) (*Account, error) {
	return s.getAccount(ctx, "get account by document", `SELECT `+sqliteAccountColumns+` FROM accounts WHERE document = ?`, document)
}

func (s *SQLiteStore) getAccount(ctx context.Context, op, query string, arg any) (*Account, error) {
	var account *Account
	err := s.Retry.do(ctx, op, sqliteTransient, func(ctx context.Context) error {
		a, err := scanSQLiteAccount(s.DB.QueryRowContext(ctx, query, arg))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("failed to get account: %w", err)
		}
		account = a
		return nil
	})
	return account, err
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	query := `SELECT ` + sqliteAccountColumns + ` FROM accounts`
	var args []any

	f := filter.effective()
	switch {
	case f.Name != "":
		query += ` WHERE client_name LIKE '%' || ? || '%' ESCAPE '\' ORDER BY client_name, seq`
		args = append(args, escapeLike(f.Name))
	case f.Document != "":
		query += ` WHERE document LIKE '%' || ? || '%' ESCAPE '\' ORDER BY document`
		args = append(args, escapeLike(f.Document))
	case f.Status != nil:
		query += ` WHERE status = ? ORDER BY opened_at, seq`
		args = append(args, string(*f.Status))
	default:
		query += ` ORDER BY opened_at, seq`
	}

	var accounts []*Account
	err := s.Retry.do(ctx, "list accounts", sqliteTransient, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query accounts: %w", err)
		}
		defer rows.Close()

		accounts = accounts[:0]
		for rows.Next() {
			a, err := scanSQLiteAccount(rows)
			if err != nil {
				return fmt.Errorf("failed to scan account: %w", err)
			}
			accounts = append(accounts, a)
		}
		return rows.Err()
	})
	return accounts, err
}

func (s *SQLiteStore) DeactivateAccount(ctx context.Context, id uuid.UUID) error {
	return s.Retry.do(ctx, "deactivate account", sqliteTransient, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx, `
            UPDATE accounts SET status = 'inactive'
            WHERE id = ? AND status = 'active'
        `, id.String())
		if err != nil {
			return fmt.Errorf("failed to deactivate account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to deactivate account: %w", err)
		}
		if n == 0 {
			return ErrAlreadyInactive
		}
		return nil
	})
}

func (s *SQLiteStore) TransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var txn *Transaction
	err := s.Retry.do(ctx, "get transaction", sqliteTransient, func(ctx context.Context) error {
		t, err := scanSQLiteTransaction(s.DB.QueryRowContext(ctx, sqliteTransactionSelect+` WHERE t.id = ?`, id.String()))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("failed to get transaction: %w", err)
		}
		txn = t
		return nil
	})
	return txn, err
}

func (s *SQLiteStore) TransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]*Transaction, error) {
	var txns []*Transaction
	err := s.Retry.do(ctx, "list transactions", sqliteTransient, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx, sqliteTransactionSelect+`
            WHERE t.from_account_id = ?1 OR t.to_account_id = ?1
            ORDER BY t.created_at DESC, t.seq DESC
        `, accountID.String())
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}
		defer rows.Close()

		txns = txns[:0]
		for rows.Next() {
			t, err := scanSQLiteTransaction(rows)
			if err != nil {
				return fmt.Errorf("failed to scan transaction: %w", err)
			}
			txns = append(txns, t)
		}
		return rows.Err()
	})
	return txns, err
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, l *AuditLog) error {
	return s.Retry.do(ctx, "append audit", sqliteTransient, func(ctx context.Context) error {
		_, err := s.DB.ExecContext(ctx, `
            INSERT INTO audit_logs (id, action, entity_type, entity_id, actor, details, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
        `, l.ID.String(), l.Action, l.EntityType, l.EntityID, l.Actor, l.Details, l.Timestamp.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert audit log: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*AuditLog, error) {
	query := `SELECT id, action, entity_type, entity_id, actor, details, created_at FROM audit_logs WHERE 1=1`
	var args []any
	if filter.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.Actor != "" {
		query += " AND actor = ?"
		args = append(args, filter.Actor)
	}
	query += " ORDER BY created_at DESC, seq DESC"

	var logs []*AuditLog
	err := s.Retry.do(ctx, "list audit logs", sqliteTransient, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query audit logs: %w", err)
		}
		defer rows.Close()

		logs = logs[:0]
		for rows.Next() {
			var l AuditLog
			var ts int64
			if err := rows.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.Actor, &l.Details, &ts); err != nil {
				return fmt.Errorf("failed to scan audit log: %w", err)
			}
			l.Timestamp = time.Unix(0, ts).UTC()
			logs = append(logs, &l)
		}
		return rows.Err()
	})
	return logs, err
}

// RunInTx opens the transaction with BEGIN IMMEDIATE (see sqliteDSN), so the write lock is
// held from the first statement and the balance reads inside fn cannot go stale.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return s.Retry.do(ctx, "ledger transaction", sqliteTransient, func(ctx context.Context) error {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(ctx, &sqliteLedgerTx{q: tx}); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

type sqliteLedgerTx struct {
	q sqlQuerier
}

func (t *sqliteLedgerTx) LockAccountsByDocument(ctx context.Context, documents ...string) (map[string]*Account, error) {
	docs := uniqueSorted(documents)
	if len(docs) == 0 {
		return map[string]*Account{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(docs)), ", ")
	args := make([]any, len(docs))
	for i, d := range docs {
		args[i] = d
	}

	rows, err := t.q.QueryContext(ctx, `
        SELECT `+sqliteAccountColumns+`
        FROM accounts
        WHERE document IN (`+placeholders+`)
        ORDER BY document
    `, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Account, len(docs))
	for rows.Next() {
		a, err := scanSQLiteAccount(rows)
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

func (t *sqliteLedgerTx) UpdateBalance(ctx context.Context, a *Account) error {
	res, err := t.q.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, a.Balance.StringFixed(2), a.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("failed to update balance: account %s not found", a.ID)
	}
	return nil
}

func (t *sqliteLedgerTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	_, err := t.q.ExecContext(ctx, `
        INSERT INTO transactions (id, from_account_id, to_account_id, amount, description, type, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, txn.ID.String(), txn.FromAccountID.String(), txn.ToAccountID.String(), txn.Amount.StringFixed(2),
		txn.Description, string(txn.Type), txn.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func scanSQLiteAccount(row sqlRow) (*Account, error) {
	var a Account
	var status string
	var opened int64
	if err := row.Scan(&a.ID, &a.ClientName, &a.Document, &a.Balance, &opened, &status); err != nil {
		return nil, err
	}
	a.Status = AccountStatus(status)
	a.OpeningDate = time.Unix(0, opened).UTC()
	return &a, nil
}

func scanSQLiteTransaction(row sqlRow) (*Transaction, error) {
	var t Transaction
	var typ string
	var created int64
	if err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Description, &typ, &created,
		&t.FromDocument, &t.ToDocument); err != nil {
		return nil, err
	}
	t.Type = TransactionType(typ)
	t.CreatedAt = time.Unix(0, created).UTC()
	return &t, nil
}

func sqliteTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
