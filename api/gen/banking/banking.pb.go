package banking

import (
	timestamppb "google.golang.org/protobuf/types/known/timestamppb"
)

type Account struct {
	Id          string                 `protobuf:"bytes,1,opt,name=id" json:"id,omitempty"`
	ClientName  string                 `protobuf:"bytes,2,opt,name=client_name" json:"client_name,omitempty"`
	Document    string                 `protobuf:"bytes,3,opt,name=document" json:"document,omitempty"`
	Balance     string                 `protobuf:"bytes,4,opt,name=balance" json:"balance,omitempty"`
	OpeningDate *timestamppb.Timestamp `protobuf:"bytes,5,opt,name=opening_date" json:"opening_date,omitempty"`
	Status      string                 `protobuf:"bytes,6,opt,name=status" json:"status,omitempty"`
}

type Transaction struct {
	TransactionId string                 `protobuf:"bytes,1,opt,name=transaction_id" json:"transaction_id,omitempty"`
	FromDocument  string                 `protobuf:"bytes,2,opt,name=from_document" json:"from_document,omitempty"`
	ToDocument    string                 `protobuf:"bytes,3,opt,name=to_document" json:"to_document,omitempty"`
	Amount        string                 `protobuf:"bytes,4,opt,name=amount" json:"amount,omitempty"`
	Description   string                 `protobuf:"bytes,5,opt,name=description" json:"description,omitempty"`
	CreatedAt     *timestamppb.Timestamp `protobuf:"bytes,6,opt,name=created_at" json:"created_at,omitempty"`
}

type AuditLog struct {
	Id              string                 `protobuf:"bytes,1,opt,name=id" json:"id,omitempty"`
	Action          string                 `protobuf:"bytes,2,opt,name=action" json:"action,omitempty"`
	EntityType      string                 `protobuf:"bytes,3,opt,name=entity_type" json:"entity_type,omitempty"`
	EntityId        string                 `protobuf:"bytes,4,opt,name=entity_id" json:"entity_id,omitempty"`
	UserResponsible string                 `protobuf:"bytes,5,opt,name=user_responsible" json:"user_responsible,omitempty"`
	Details         string                 `protobuf:"bytes,6,opt,name=details" json:"details,omitempty"`
	Timestamp       *timestamppb.Timestamp `protobuf:"bytes,7,opt,name=timestamp" json:"timestamp,omitempty"`
}

type CreateAccountRequest struct {
	ClientName string `protobuf:"bytes,1,opt,name=client_name" json:"client_name,omitempty"`
	Document   string `protobuf:"bytes,2,opt,name=document" json:"document,omitempty"`
}

type CreateAccountResponse struct {
	Account *Account `protobuf:"bytes,1,opt,name=account" json:"account,omitempty"`
}

// GetAccountRequest looks an account up by id, or by document when id is empty.
type GetAccountRequest struct {
	AccountId string `protobuf:"bytes,1,opt,name=account_id" json:"account_id,omitempty"`
	Document  string `protobuf:"bytes,2,opt,name=document" json:"document,omitempty"`
}

type GetAccountResponse struct {
	Account *Account `protobuf:"bytes,1,opt,name=account" json:"account,omitempty"`
}

type ListAccountsRequest struct {
	Name     string `protobuf:"bytes,1,opt,name=name" json:"name,omitempty"`
	Document string `protobuf:"bytes,2,opt,name=document" json:"document,omitempty"`
	Status   string `protobuf:"bytes,3,opt,name=status" json:"status,omitempty"`
}

type ListAccountsResponse struct {
	Accounts []*Account `protobuf:"bytes,1,rep,name=accounts" json:"accounts,omitempty"`
}

type DeactivateAccountRequest struct {
	Document string `protobuf:"bytes,1,opt,name=document" json:"document,omitempty"`
}

type DeactivateAccountResponse struct {
	Account *Account `protobuf:"bytes,1,opt,name=account" json:"account,omitempty"`
}

type TransferRequest struct {
	FromDocument string `protobuf:"bytes,1,opt,name=from_document" json:"from_document,omitempty"`
	ToDocument   string `protobuf:"bytes,2,opt,name=to_document" json:"to_document,omitempty"`
	Amount       string `protobuf:"bytes,3,opt,name=amount" json:"amount,omitempty"`
	Description  string `protobuf:"bytes,4,opt,name=description" json:"description,omitempty"`
}

type TransferResponse struct {
	Transaction   *Transaction `protobuf:"bytes,1,opt,name=transaction" json:"transaction,omitempty"`
	AuditDegraded bool         `protobuf:"varint,2,opt,name=audit_degraded" json:"audit_degraded,omitempty"`
}

type GetTransactionRequest struct {
	TransactionId string `protobuf:"bytes,1,opt,name=transaction_id" json:"transaction_id,omitempty"`
}

type GetTransactionResponse struct {
	Transaction *Transaction `protobuf:"bytes,1,opt,name=transaction" json:"transaction,omitempty"`
}

// ListTransactionsRequest selects an account by document, or by id when document is empty.
type ListTransactionsRequest struct {
	Document  string `protobuf:"bytes,1,opt,name=document" json:"document,omitempty"`
	AccountId string `protobuf:"bytes,2,opt,name=account_id" json:"account_id,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `protobuf:"bytes,1,rep,name=transactions" json:"transactions,omitempty"`
}

type ListAuditLogsRequest struct {
	EntityType string `protobuf:"bytes,1,opt,name=entity_type" json:"entity_type,omitempty"`
	EntityId   string `protobuf:"bytes,2,opt,name=entity_id" json:"entity_id,omitempty"`
	Actor      string `protobuf:"bytes,3,opt,name=actor" json:"actor,omitempty"`
}

type ListAuditLogsResponse struct {
	Logs []*AuditLog `protobuf:"bytes,1,rep,name=logs" json:"logs,omitempty"`
}
