package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
)

// ReserveFundsService resolves a reservation through the overdraft cascade:
// try the primary account first, then walk the priority-ordered chain of
// linked accounts until one covers the amount. Every failed attempt leaves a
// REJECTED_TRANSACTION row under the same request UUID, so retrying the whole
// cascade is idempotent and the rejection trail is permanent audit history.
type ReserveFundsService struct {
	BaseService
	ledger        ports.LedgerSvc
	accountRepo   ports.AccountRepository
	overdraftRepo ports.OverdraftRepository
}

// NewReserveFundsService creates the overdraft cascade resolver.
func NewReserveFundsService(ledger ports.LedgerSvc, accountRepo ports.AccountRepository, overdraftRepo ports.OverdraftRepository) *ReserveFundsService {
	return &ReserveFundsService{
		ledger:        ledger,
		accountRepo:   accountRepo,
		overdraftRepo: overdraftRepo,
	}
}

// Ensure ReserveFundsService implements the ReserveFundsSvc interface
var _ ports.ReserveFundsSvc = (*ReserveFundsService)(nil)

// ReserveFunds attempts the reservation on the primary account and, when it
// fails for insufficient funds under overdraft protection, on each eligible
// overdraft account in sequence order. The response lists every per-account
// result in cascade order: rejections followed by the terminal success, or
// all rejections when no account could cover the amount.
func (s *ReserveFundsService) ReserveFunds(ctx context.Context, rc domain.RequestContext, req dto.ReserveFundsRequest) (*dto.ReserveFundsResponse, error) {
	if req.TransactionAmount == 0 {
		return nil, fmt.Errorf("%w: transaction amount must not be zero", apperrors.ErrValidation)
	}

	primary, err := s.ledger.Reserve(ctx, rc, dto.ReservationRequest{
		RequestUUID:             req.RequestUUID,
		AccountNumber:           req.AccountNumber,
		DebitCardNumber:         req.DebitCardNumber,
		TransactionAmount:       req.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	if err != nil {
		return nil, err
	}

	results := []domain.TransactionResource{*primary.Resource}
	if primary.Status == dto.StatusSuccess {
		return &dto.ReserveFundsResponse{Status: dto.StatusSuccess, Transactions: results}, nil
	}
	if !req.ProtectAgainstOverdraft {
		return &dto.ReserveFundsResponse{Status: dto.StatusInsufficientFunds, Transactions: results}, nil
	}

	candidates, err := s.eligibleOverdraftAccounts(ctx, primary.Resource.AccountNumber)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		attempt, err := s.ledger.Reserve(ctx, rc, dto.ReservationRequest{
			RequestUUID:             req.RequestUUID,
			AccountNumber:           candidate,
			TransactionAmount:       req.TransactionAmount,
			TransactionMetadataJSON: req.TransactionMetadataJSON,
			AuthorizeAgainstBalance: true,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, *attempt.Resource)
		if attempt.Status == dto.StatusSuccess {
			s.LogInfo(ctx, "Overdraft account covered reservation",
				slog.String("primary_account", primary.Resource.AccountNumber),
				slog.String("overdraft_account", candidate),
				slog.Int("attempts", len(results)))
			return &dto.ReserveFundsResponse{Status: dto.StatusSuccessOverdraft, Transactions: results}, nil
		}
	}

	s.LogInfo(ctx, "Overdraft cascade exhausted",
		slog.String("primary_account", primary.Resource.AccountNumber),
		slog.Int("attempts", len(results)))
	return &dto.ReserveFundsResponse{Status: dto.StatusInsufficientFunds, Transactions: results}, nil
}

// TransactWithOverdraft records a direct transaction, falling back to the
// overdraft cascade when the primary account cannot cover the amount under
// protection. A cascade hit settles through the primary account: the overdraft
// reservation funds a credit on the primary, the original debit is re-posted
// against the restored balance, and the overdraft reservation is committed at
// its reserved amount. The response carries every row in posting order, five
// for the single-hop case. Every leg is keyed off an earlier row's transaction
// UUID, so redelivery of the whole operation replays to the same rows.
func (s *ReserveFundsService) TransactWithOverdraft(ctx context.Context, rc domain.RequestContext, req dto.TransactionRequest) (*dto.TransactionResponse, error) {
	first, err := s.ledger.Transact(ctx, rc, req)
	if err != nil {
		return nil, err
	}
	if first.Status == dto.StatusSuccess || !req.ProtectAgainstOverdraft || req.TransactionAmount > 0 {
		return first, nil
	}

	// The primary attempt left a rejection row under this request UUID, so the
	// cascade's own primary reserve replays it instead of posting again.
	cascade, err := s.ReserveFunds(ctx, rc, dto.ReserveFundsRequest{
		RequestUUID:             req.RequestUUID,
		AccountNumber:           req.AccountNumber,
		DebitCardNumber:         req.DebitCardNumber,
		TransactionAmount:       req.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
		ProtectAgainstOverdraft: true,
	})
	if err != nil {
		return nil, err
	}
	rows := cascade.Transactions
	if cascade.Status != dto.StatusSuccessOverdraft {
		return &dto.TransactionResponse{Status: dto.StatusInsufficientFunds, Transactions: rows}, nil
	}

	reservation := rows[len(rows)-1]
	primaryAccount := rows[0].AccountNumber

	credit, err := s.ledger.Transact(ctx, rc, dto.TransactionRequest{
		RequestUUID:             reservation.TransactionUUID,
		AccountNumber:           primaryAccount,
		TransactionAmount:       -req.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
	})
	if err != nil {
		return nil, err
	}
	rows = append(rows, credit.Transactions[0])

	debit, err := s.ledger.Transact(ctx, rc, dto.TransactionRequest{
		RequestUUID:             credit.Transactions[0].TransactionUUID,
		AccountNumber:           primaryAccount,
		TransactionAmount:       req.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
		AuthorizeAgainstBalance: req.AuthorizeAgainstBalance,
	})
	if err != nil {
		return nil, err
	}
	if debit.Status != dto.StatusSuccess {
		return nil, fmt.Errorf("%w: overdraft settlement failed on account %s", apperrors.ErrInternal, primaryAccount)
	}
	rows = append(rows, debit.Transactions[0])

	commit, err := s.ledger.Commit(ctx, rc, dto.CommitReservationRequest{
		RequestUUID:             reservation.TransactionUUID,
		ReservationUUID:         reservation.TransactionUUID,
		TransactionAmount:       reservation.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
	})
	if err != nil {
		return nil, err
	}
	rows = append(rows, *commit.Resource)

	s.LogInfo(ctx, "Transaction settled through overdraft",
		slog.String("primary_account", primaryAccount),
		slog.String("overdraft_account", reservation.AccountNumber),
		slog.Int("rows", len(rows)))
	return &dto.TransactionResponse{Status: dto.StatusSuccessOverdraft, Transactions: rows}, nil
}

// eligibleOverdraftAccounts loads the instruction chain and filters it down
// to usable candidates in ascending sequence order. An instruction outside
// its effective window, a closed instruction, or a missing or closed linked
// account is skipped silently, producing no rejection row.
func (s *ReserveFundsService) eligibleOverdraftAccounts(ctx context.Context, accountNumber string) ([]string, error) {
	instructions, err := s.overdraftRepo.ListInstructions(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	eligible := make([]domain.OverdraftInstruction, 0, len(instructions))
	for _, instruction := range instructions {
		if !instruction.EffectiveAt(now) {
			continue
		}
		linked, err := s.accountRepo.FindAccountByNumber(ctx, instruction.OverdraftAccountNumber)
		if err != nil {
			// Only a missing account is a skippable candidate; an
			// infrastructure failure must not silently shorten the cascade.
			if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}
			s.LogDebug(ctx, "Skipping overdraft instruction with unknown account",
				slog.String("overdraft_account", instruction.OverdraftAccountNumber))
			continue
		}
		if !linked.LifecycleStatus.IsEffective() {
			continue
		}
		eligible = append(eligible, instruction)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].Sequence < eligible[j].Sequence
	})

	accounts := make([]string, len(eligible))
	for i, instruction := range eligible {
		accounts[i] = instruction.OverdraftAccountNumber
	}
	return accounts, nil
}
