// Package memory is an in-process store implementing the repository ports.
// It backs tests and single-node deployments where Postgres is not available.
// A single mutex serializes postings, which gives the same per-account
// atomicity the pgsql store gets from row locking.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
)

type requestKey struct {
	RequestUUID   string
	AccountNumber string
}

// Store holds all ledger state in maps.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	cards        map[string]*domain.DebitCard
	instructions map[string][]domain.OverdraftInstruction
	byUUID       map[string]*domain.TransactionResource
	byRequest    map[requestKey]*domain.TransactionResource
	transactions []*domain.TransactionResource
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		cards:        make(map[string]*domain.DebitCard),
		instructions: make(map[string][]domain.OverdraftInstruction),
		byUUID:       make(map[string]*domain.TransactionResource),
		byRequest:    make(map[requestKey]*domain.TransactionResource),
	}
}

// NewRepositoryProvider exposes one store through every repository port.
func NewRepositoryProvider(store *Store) ports.RepositoryProvider {
	return ports.RepositoryProvider{
		LedgerRepo:    store,
		AccountRepo:   store,
		OverdraftRepo: store,
	}
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.AccountRepository = (*Store)(nil)
var _ ports.OverdraftRepository = (*Store)(nil)

// PutAccount seeds or replaces an account.
func (s *Store) PutAccount(account domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.AccountNumber] = &account
}

// PutDebitCard seeds or replaces a debit card.
func (s *Store) PutDebitCard(card domain.DebitCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.DebitCardNumber] = &card
}

// PutInstruction appends an overdraft instruction to an account's chain.
func (s *Store) PutInstruction(instruction domain.OverdraftInstruction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions[instruction.AccountNumber] = append(s.instructions[instruction.AccountNumber], instruction)
}

// Post applies a posting under the store lock.
func (s *Store) Post(ctx context.Context, p domain.Posting) (*domain.TransactionResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[p.AccountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, p.AccountNumber)
	}

	key := requestKey{RequestUUID: p.RequestUUID, AccountNumber: p.AccountNumber}
	if _, exists := s.byRequest[key]; exists {
		return nil, fmt.Errorf("%w: request %s already posted for account %s", apperrors.ErrConflict, p.RequestUUID, p.AccountNumber)
	}

	typeCode := p.TypeCode
	newBalance := account.RunningBalance + p.Amount
	if p.AuthorizeAgainstBalance && newBalance < 0 {
		typeCode = domain.TypeRejectedTransaction
		newBalance = account.RunningBalance
	}

	resource := &domain.TransactionResource{
		TransactionUUID:         uuid.NewString(),
		RequestUUID:             p.RequestUUID,
		AccountNumber:           p.AccountNumber,
		DebitCardNumber:         p.DebitCardNumber,
		TransactionAmount:       p.Amount,
		TransactionTypeCode:     typeCode,
		RunningBalanceAmount:    newBalance,
		ReservationUUID:         p.ReservationUUID,
		TransactionMetadataJSON: p.MetadataJSON,
		InsertTimestamp:         time.Now().UTC(),
	}

	if typeCode != domain.TypeRejectedTransaction {
		account.RunningBalance = newBalance
	}
	s.byUUID[resource.TransactionUUID] = resource
	s.byRequest[key] = resource
	s.transactions = append(s.transactions, resource)

	copied := *resource
	return &copied, nil
}

// FindByRequest looks up the idempotency key (request_uuid, account_number).
func (s *Store) FindByRequest(ctx context.Context, requestUUID, accountNumber string) (*domain.TransactionResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, ok := s.byRequest[requestKey{RequestUUID: requestUUID, AccountNumber: accountNumber}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *resource
	return &copied, nil
}

// FindByTransactionUUID looks up a row by its generated UUID.
func (s *Store) FindByTransactionUUID(ctx context.Context, transactionUUID string) (*domain.TransactionResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, ok := s.byUUID[transactionUUID]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, transactionUUID)
	}
	copied := *resource
	return &copied, nil
}

// FindFinalizer returns the commit or cancel row referencing the reservation.
func (s *Store) FindFinalizer(ctx context.Context, reservationUUID string) (*domain.TransactionResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, resource := range s.transactions {
		if resource.ReservationUUID != reservationUUID {
			continue
		}
		if resource.TransactionTypeCode == domain.TypeReservationCommit ||
			resource.TransactionTypeCode == domain.TypeReservationCancel {
			copied := *resource
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: no finalizer for reservation %s", apperrors.ErrNotFound, reservationUUID)
}

// FindAccountByNumber returns a snapshot of the account.
func (s *Store) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountNumber)
	}
	copied := *account
	return &copied, nil
}

// FindAccountByDebitCard resolves a debit card to its account.
func (s *Store) FindAccountByDebitCard(ctx context.Context, debitCardNumber string) (*domain.Account, *domain.DebitCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[debitCardNumber]
	if !ok {
		return nil, nil, fmt.Errorf("%w: debit card %s", apperrors.ErrNotFound, debitCardNumber)
	}
	account, ok := s.accounts[card.AccountNumber]
	if !ok {
		return nil, nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, card.AccountNumber)
	}
	copiedAccount := *account
	copiedCard := *card
	return &copiedAccount, &copiedCard, nil
}

// ListInstructions returns the account's instruction chain, unordered.
func (s *Store) ListInstructions(ctx context.Context, accountNumber string) ([]domain.OverdraftInstruction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.instructions[accountNumber]
	out := make([]domain.OverdraftInstruction, len(chain))
	copy(out, chain)
	return out, nil
}
