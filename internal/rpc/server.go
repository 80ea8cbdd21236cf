package rpc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/example/internet-banking/api/gen/banking"
	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
)

// Server exposes the account directory, the ledger and the audit log over gRPC.
type Server struct {
	banking.UnimplementedBankingServiceServer

	accounts  *ledger.AccountService
	transfers *ledger.TransferService
	audit     *ledger.AuditService
	logger    *slog.Logger
}

func NewServer(accounts *ledger.AccountService, transfers *ledger.TransferService, audit *ledger.AuditService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		accounts:  accounts,
		transfers: transfers,
		audit:     audit,
		logger:    logger,
	}
}

func (s *Server) CreateAccount(ctx context.Context, req *banking.CreateAccountRequest) (*banking.CreateAccountResponse, error) {
	account, err := s.accounts.CreateAccount(ctx, ledger.CreateAccountRequest{
		ClientName: req.ClientName,
		Document:   req.Document,
	}, security.ActorFromContext(ctx))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &banking.CreateAccountResponse{Account: accountPB(account)}, nil
}

func (s *Server) GetAccount(ctx context.Context, req *banking.GetAccountRequest) (*banking.GetAccountResponse, error) {
	var (
		account *ledger.Account
		err     error
	)
	switch {
	case req.AccountId != "":
		id, perr := uuid.Parse(req.AccountId)
		if perr != nil {
			return nil, s.fail(ctx, ledger.ErrAccountNotFound)
		}
		account, err = s.accounts.GetAccountByID(ctx, id)
	case req.Document != "":
		account, err = s.accounts.GetAccountByDocument(ctx, req.Document)
	default:
		return nil, status.Error(codes.InvalidArgument, "account_id or document is required")
	}
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &banking.GetAccountResponse{Account: accountPB(account)}, nil
}

func (s *Server) ListAccounts(ctx context.Context, req *banking.ListAccountsRequest) (*banking.ListAccountsResponse, error) {
	filter := ledger.AccountFilter{Name: req.Name, Document: req.Document}
	if req.Status != "" {
		st, err := ledger.ParseAccountStatus(req.Status)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		filter.Status = &st
	}

	accounts, err := s.accounts.ListAccounts(ctx, filter)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := make([]*banking.Account, len(accounts))
	for i, a := range accounts {
		out[i] = accountPB(a)
	}
	return &banking.ListAccountsResponse{Accounts: out}, nil
}

func (s *Server) DeactivateAccount(ctx context.Context, req *banking.DeactivateAccountRequest) (*banking.DeactivateAccountResponse, error) {
	account, err := s.accounts.DeactivateAccount(ctx, req.Document, security.ActorFromContext(ctx))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &banking.DeactivateAccountResponse{Account: accountPB(account)}, nil
}

// Transfer takes the amount as a decimal string so no precision is lost on the wire.
func (s *Server) Transfer(ctx context.Context, req *banking.TransferRequest) (*banking.TransferResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, s.fail(ctx, ledger.ErrInvalidAmount)
	}

	res, err := s.transfers.Transfer(ctx, ledger.TransferRequest{
		FromDocument: req.FromDocument,
		ToDocument:   req.ToDocument,
		Amount:       amount,
		Description:  req.Description,
	}, security.ActorFromContext(ctx))
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	return &banking.TransferResponse{
		Transaction: &banking.Transaction{
			TransactionId: res.TransactionID,
			FromDocument:  res.FromDocument,
			ToDocument:    res.ToDocument,
			Amount:        res.Amount,
			Description:   res.Description,
			CreatedAt:     timestamppb.New(res.CreatedAt),
		},
		AuditDegraded: res.AuditDegraded,
	}, nil
}

func (s *Server) GetTransaction(ctx context.Context, req *banking.GetTransactionRequest) (*banking.GetTransactionResponse, error) {
	id, err := uuid.Parse(req.TransactionId)
	if err != nil {
		return nil, s.fail(ctx, ledger.ErrTransactionNotFound)
	}
	txn, err := s.transfers.GetTransaction(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &banking.GetTransactionResponse{Transaction: transactionPB(txn)}, nil
}

func (s *Server) ListTransactions(ctx context.Context, req *banking.ListTransactionsRequest) (*banking.ListTransactionsResponse, error) {
	var (
		txns []*ledger.Transaction
		err  error
	)
	switch {
	case req.Document != "":
		txns, err = s.transfers.AccountTransactions(ctx, req.Document)
	case req.AccountId != "":
		id, perr := uuid.Parse(req.AccountId)
		if perr != nil {
			return nil, s.fail(ctx, ledger.ErrAccountNotFound)
		}
		txns, err = s.transfers.AccountTransactionsByID(ctx, id)
	default:
		return nil, status.Error(codes.InvalidArgument, "document or account_id is required")
	}
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	out := make([]*banking.Transaction, len(txns))
	for i, t := range txns {
		out[i] = transactionPB(t)
	}
	return &banking.ListTransactionsResponse{Transactions: out}, nil
}

func (s *Server) ListAuditLogs(ctx context.Context, req *banking.ListAuditLogsRequest) (*banking.ListAuditLogsResponse, error) {
	logs, err := s.audit.List(ctx, ledger.AuditFilter{
		EntityType: req.EntityType,
		EntityID:   req.EntityId,
		Actor:      req.Actor,
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	out := make([]*banking.AuditLog, len(logs))
	for i, l := range logs {
		out[i] = &banking.AuditLog{
			Id:              l.ID.String(),
			Action:          l.Action,
			EntityType:      l.EntityType,
			EntityId:        l.EntityID,
			UserResponsible: l.Actor,
			Details:         l.Details,
			Timestamp:       timestamppb.New(l.Timestamp),
		}
	}
	return &banking.ListAuditLogsResponse{Logs: out}, nil
}

func accountPB(a *ledger.Account) *banking.Account {
	return &banking.Account{
		Id:          a.ID.String(),
		ClientName:  a.ClientName,
		Document:    a.Document,
		Balance:     a.Balance.StringFixed(2),
		OpeningDate: timestamppb.New(a.OpeningDate),
		Status:      string(a.Status),
	}
}

func transactionPB(t *ledger.Transaction) *banking.Transaction {
	return &banking.Transaction{
		TransactionId: t.ID.String(),
		FromDocument:  t.FromDocument,
		ToDocument:    t.ToDocument,
		Amount:        t.Amount.StringFixed(2),
		Description:   t.Description,
		CreatedAt:     timestamppb.New(t.CreatedAt),
	}
}
