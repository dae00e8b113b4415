package ports

import (
	"context"

	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/dto"
)

// LedgerSvc is the reservation/commit/cancel state machine plus direct
// transactions. Every operation consults the idempotency key
// (request_uuid, account_number) before mutating anything.
type LedgerSvc interface {
	Transact(ctx context.Context, rc domain.RequestContext, req dto.TransactionRequest) (*dto.TransactionResponse, error)
	Reserve(ctx context.Context, rc domain.RequestContext, req dto.ReservationRequest) (*dto.ReservationResponse, error)
	Commit(ctx context.Context, rc domain.RequestContext, req dto.CommitReservationRequest) (*dto.CommitReservationResponse, error)
	Cancel(ctx context.Context, rc domain.RequestContext, req dto.CancelReservationRequest) (*dto.CancelReservationResponse, error)
}

// ReserveFundsSvc resolves reservations and direct transactions through the
// overdraft cascade.
type ReserveFundsSvc interface {
	ReserveFunds(ctx context.Context, rc domain.RequestContext, req dto.ReserveFundsRequest) (*dto.ReserveFundsResponse, error)
	// TransactWithOverdraft behaves like LedgerSvc.Transact until the primary
	// account rejects under overdraft protection, then settles the amount
	// through an overdraft reservation and returns every row the settlement
	// produced.
	TransactWithOverdraft(ctx context.Context, rc domain.RequestContext, req dto.TransactionRequest) (*dto.TransactionResponse, error)
}

// TransferSvc orchestrates transfers and their compensating transactions.
type TransferSvc interface {
	TransferFunds(ctx context.Context, rc domain.RequestContext, req dto.TransferFundsRequest) (*dto.TransferFundsResponse, error)
	TransferAndTransact(ctx context.Context, rc domain.RequestContext, req dto.TransferAndTransactRequest) (*dto.TransferAndTransactResponse, error)
}

// ServiceContainer bundles the services the transport layers depend on.
type ServiceContainer struct {
	Ledger       LedgerSvc
	ReserveFunds ReserveFundsSvc
	Transfer     TransferSvc
}
