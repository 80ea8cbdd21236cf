package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account. The only transition is Active -> Inactive.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
)

// ParseAccountStatus accepts the status names case-insensitively.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusActive):
		return StatusActive, nil
	case string(StatusInactive):
		return StatusInactive, nil
	}
	return "", ErrInvalidStatus
}

// OpeningCredit is the balance every new account starts with.
var OpeningCredit = decimal.RequireFromString("1000.00")

// Account owns a balance and a status. Mutations are in-memory; gateways persist them.
type Account struct {
	ID          uuid.UUID
	ClientName  string
	Document    string
	Balance     decimal.Decimal
	OpeningDate time.Time
	Status      AccountStatus
}

// NewAccount opens an active account credited with OpeningCredit.
// The document must already be normalized and validated.
func NewAccount(clientName, document string, now time.Time) *Account {
	return &Account{
		ID:          uuid.New(),
		ClientName:  clientName,
		Document:    document,
		Balance:     OpeningCredit,
		OpeningDate: now.UTC(),
		Status:      StatusActive,
	}
}

// IsActive reports whether the account can send and receive transfers.
func (a *Account) IsActive() bool { return a.Status == StatusActive }

// Deactivate is unconditional; callers check the current status first.
func (a *Account) Deactivate() {
	a.Status = StatusInactive
}

// CanWithdraw reports whether an active account holds at least amount.
func (a *Account) CanWithdraw(amount decimal.Decimal) bool {
	return a.IsActive() && a.Balance.GreaterThanOrEqual(amount)
}

// Withdraw debits amount from an active account with sufficient balance.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !a.CanWithdraw(amount) {
		return ErrInsufficientFundsOrInactive
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Deposit credits amount to an active account.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !a.IsActive() {
		return ErrInactiveAccount
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// AccountView is the external projection of an account.
type AccountView struct {
	ID          string    `json:"id"`
	ClientName  string    `json:"clientName"`
	Document    string    `json:"document"`
	Balance     string    `json:"balance"`
	OpeningDate time.Time `json:"openingDate"`
	Status      string    `json:"status"`
}

func (a *Account) View() AccountView {
	return AccountView{
		ID:          a.ID.String(),
		ClientName:  a.ClientName,
		Document:    a.Document,
		Balance:     a.Balance.StringFixed(2),
		OpeningDate: a.OpeningDate,
		Status:      string(a.Status),
	}
}

// AccountFilter selects accounts for listing. Only the first populated field, in the
// order Name, Document, Status, is applied; the others are ignored.
type AccountFilter struct {
	Name     string
	Document string
	Status   *AccountStatus
}

// effective reduces the filter to the single dimension that will be applied.
func (f AccountFilter) effective() AccountFilter {
	switch {
	case f.Name != "":
		return AccountFilter{Name: f.Name}
	case f.Document != "":
		q := NormalizeDocument(f.Document)
		if q == "" {
			q = f.Document
		}
		return AccountFilter{Document: q}
	case f.Status != nil:
		return AccountFilter{Status: f.Status}
	}
	return AccountFilter{}
}
