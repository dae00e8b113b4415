package ports

import (
	"context"

	"github.com/qslv/transaction-engine/internal/core/domain"
)

// Note: Context is included for cancellation/timeouts on every blocking call.

// LedgerRepository persists transaction rows and the per-account running
// balance. Post is the only mutating entry point and must be atomic per
// account: balance read, authorization check, row insert, and balance update
// happen under one transaction so concurrent postings against the same
// account serialize.
type LedgerRepository interface {
	// Post applies a posting. A refused authorization is not an error: the
	// returned resource carries the REJECTED_TRANSACTION type code.
	Post(ctx context.Context, p domain.Posting) (*domain.TransactionResource, error)
	// FindByRequest looks up the idempotency key (request_uuid, account_number).
	FindByRequest(ctx context.Context, requestUUID, accountNumber string) (*domain.TransactionResource, error)
	// FindByTransactionUUID looks up a row by its generated UUID.
	FindByTransactionUUID(ctx context.Context, transactionUUID string) (*domain.TransactionResource, error)
	// FindFinalizer returns the RESERVATION_COMMIT or RESERVATION_CANCEL row
	// referencing the given reservation, or ErrNotFound if the reservation is
	// still open.
	FindFinalizer(ctx context.Context, reservationUUID string) (*domain.TransactionResource, error)
}

// AccountRepository reads account and debit card state. Accounts are
// provisioned outside this service.
type AccountRepository interface {
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	// FindAccountByDebitCard resolves a debit card to its account, returning
	// both so callers can check each lifecycle status.
	FindAccountByDebitCard(ctx context.Context, debitCardNumber string) (*domain.Account, *domain.DebitCard, error)
}

// RepositoryProvider bundles the repositories a store implementation offers.
type RepositoryProvider struct {
	LedgerRepo    LedgerRepository
	AccountRepo   AccountRepository
	OverdraftRepo OverdraftRepository
}

// OverdraftRepository reads the overdraft instruction chain for an account.
// Instructions are read-only to the cascade resolver.
type OverdraftRepository interface {
	// ListInstructions returns all instructions for the account, unordered and
	// unfiltered; eligibility filtering belongs to the cascade.
	ListInstructions(ctx context.Context, accountNumber string) ([]domain.OverdraftInstruction, error)
}
