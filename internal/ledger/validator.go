package ledger

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxClientNameLength  = 200
	maxDescriptionLength = 500
)

// MaxTransferAmount caps a single transfer.
var MaxTransferAmount = decimal.RequireFromString("1000000.00")

// CreateAccountRequest carries the input for opening an account.
type CreateAccountRequest struct {
	ClientName string `json:"clientName"`
	Document   string `json:"document"`
}

// TransferRequest carries the input for moving money between two accounts.
type TransferRequest struct {
	FromDocument string          `json:"fromDocument"`
	ToDocument   string          `json:"toDocument"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
}

// ValidateCreateAccount checks input format and returns the request with the client name
// trimmed and the document normalized.
func ValidateCreateAccount(req CreateAccountRequest) (CreateAccountRequest, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" || utf8.RuneCountInString(name) > maxClientNameLength {
		return req, ErrInvalidClientName
	}
	doc, err := ValidateDocument(req.Document)
	if err != nil {
		return req, err
	}
	return CreateAccountRequest{ClientName: name, Document: doc}, nil
}

// ValidateTransfer checks input format only. The sign of the amount is a business rule
// checked by the transfer itself, after both accounts are resolved.
func ValidateTransfer(req TransferRequest) (TransferRequest, error) {
	from, err := ValidateDocument(req.FromDocument)
	if err != nil {
		return req, err
	}
	to, err := ValidateDocument(req.ToDocument)
	if err != nil {
		return req, err
	}
	if !req.Amount.Equal(req.Amount.Round(2)) || req.Amount.GreaterThan(MaxTransferAmount) {
		return req, ErrInvalidAmount
	}
	if utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		return req, ErrInvalidDescription
	}
	return TransferRequest{
		FromDocument: from,
		ToDocument:   to,
		Amount:       req.Amount,
		Description:  req.Description,
	}, nil
}
