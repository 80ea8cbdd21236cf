package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AccountService is the account directory: opening, lookup, listing and deactivation.
type AccountService struct {
	accounts AccountStore
	audit    *AuditService
	logger   *slog.Logger
	now      func() time.Time
}

func NewAccountService(accounts AccountStore, audit *AuditService, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{accounts: accounts, audit: audit, logger: logger, now: time.Now}
}

// CreateAccount opens an account credited with OpeningCredit. A second account for the same
// normalized document fails with ErrDuplicateDocument.
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest, actor string) (*Account, error) {
	req, err := ValidateCreateAccount(req)
	if err != nil {
		return nil, err
	}

	account := NewAccount(req.ClientName, req.Document, s.now())
	if err := s.accounts.InsertAccount(ctx, account); err != nil {
		return nil, err
	}
	accountEventsTotal.WithLabelValues(ActionAccountCreated).Inc()
	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID.String(),
		"document", account.Document,
		"actor", actor,
	)

	s.audit.recordCommitted(ctx, ActionAccountCreated, EntityAccount, account.ID.String(), actor,
		fmt.Sprintf("Account created for %s (%s)", account.ClientName, account.Document))
	return account, nil
}

func (s *AccountService) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.AccountByID(ctx, id)
}

// GetAccountByDocument accepts formatted input; anything without digits is simply not found.
func (s *AccountService) GetAccountByDocument(ctx context.Context, document string) (*Account, error) {
	doc := NormalizeDocument(document)
	if doc == "" {
		return nil, ErrAccountNotFound
	}
	return s.accounts.AccountByDocument(ctx, doc)
}

// ListAccounts applies only the first populated field of filter; see AccountFilter.
func (s *AccountService) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	return s.accounts.ListAccounts(ctx, filter)
}

// DeactivateAccount moves an active account to inactive. ErrAccountNotFound and
// ErrAlreadyInactive are distinct; a concurrent deactivation loses with ErrAlreadyInactive.
func (s *AccountService) DeactivateAccount(ctx context.Context, document, actor string) (*Account, error) {
	account, err := s.GetAccountByDocument(ctx, document)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, ErrAlreadyInactive
	}
	if err := s.accounts.DeactivateAccount(ctx, account.ID); err != nil {
		return nil, err
	}
	account.Deactivate()
	accountEventsTotal.WithLabelValues(ActionAccountDeactivated).Inc()
	s.logger.InfoContext(ctx, "account deactivated",
		"account_id", account.ID.String(),
		"document", account.Document,
		"actor", actor,
	)

	s.audit.recordCommitted(ctx, ActionAccountDeactivated, EntityAccount, account.ID.String(), actor,
		fmt.Sprintf("Account %s deactivated", account.Document))
	return account, nil
}
