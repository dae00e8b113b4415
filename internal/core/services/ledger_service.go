package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/metrics"
)

// LedgerService is the reservation/commit/cancel state machine plus direct
// transactions. Balance mutation is delegated to the ledger repository, which
// applies each posting atomically; this service owns idempotency resolution,
// account/debit-card resolution, and the reservation lifecycle rules.
type LedgerService struct {
	BaseService
	ledgerRepo  ports.LedgerRepository
	accountRepo ports.AccountRepository
}

// NewLedgerService creates the ledger state machine service.
func NewLedgerService(ledgerRepo ports.LedgerRepository, accountRepo ports.AccountRepository) *LedgerService {
	return &LedgerService{
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
	}
}

// Ensure LedgerService implements the LedgerSvc interface
var _ ports.LedgerSvc = (*LedgerService)(nil)

// resolveAccount resolves the account/debit-card pair of a request. Exactly
// one identifier must be provided. The resolved account and every entity on
// the lookup path must be effective.
func (s *LedgerService) resolveAccount(ctx context.Context, accountNumber, debitCardNumber string) (*domain.Account, string, error) {
	switch {
	case accountNumber == "" && debitCardNumber == "":
		return nil, "", fmt.Errorf("%w: either accountNumber or debitCardNumber is required", apperrors.ErrValidation)
	case accountNumber != "" && debitCardNumber != "":
		return nil, "", fmt.Errorf("%w: accountNumber and debitCardNumber are mutually exclusive", apperrors.ErrValidation)
	}

	if debitCardNumber != "" {
		account, card, err := s.accountRepo.FindAccountByDebitCard(ctx, debitCardNumber)
		if err != nil {
			return nil, "", err
		}
		if !card.LifecycleStatus.IsEffective() {
			return nil, "", fmt.Errorf("%w: debit card %s is not effective", apperrors.ErrUnprocessable, debitCardNumber)
		}
		if !account.LifecycleStatus.IsEffective() {
			return nil, "", fmt.Errorf("%w: account %s is not effective", apperrors.ErrUnprocessable, account.AccountNumber)
		}
		return account, debitCardNumber, nil
	}

	account, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, "", err
	}
	if !account.LifecycleStatus.IsEffective() {
		return nil, "", fmt.Errorf("%w: account %s is not effective", apperrors.ErrUnprocessable, accountNumber)
	}
	return account, "", nil
}

// post writes a posting and records the outcome metric. Losing the insert
// race on (request_uuid, account_number) to a concurrent retry of the same
// request is not a failure: the winner's stored row is the result either way.
func (s *LedgerService) post(ctx context.Context, p domain.Posting) (*domain.TransactionResource, error) {
	resource, err := s.ledgerRepo.Post(ctx, p)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			if winner, lookupErr := s.ledgerRepo.FindByRequest(ctx, p.RequestUUID, p.AccountNumber); lookupErr == nil {
				return winner, nil
			}
		}
		return nil, err
	}
	metrics.PostingsTotal.WithLabelValues(string(resource.TransactionTypeCode)).Inc()
	return resource, nil
}

// findPrior resolves the idempotency key. A nil resource with nil error means
// no prior row exists.
func (s *LedgerService) findPrior(ctx context.Context, requestUUID, accountNumber string) (*domain.TransactionResource, error) {
	prior, err := s.ledgerRepo.FindByRequest(ctx, requestUUID, accountNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return prior, nil
}

func statusFor(resource *domain.TransactionResource) dto.Status {
	if resource.IsRejected() {
		return dto.StatusInsufficientFunds
	}
	return dto.StatusSuccess
}

// Reserve places a provisional hold. When the post-reservation balance would
// go negative under authorization, a REJECTED_TRANSACTION row is recorded and
// reported as insufficient funds; the balance is unchanged.
func (s *LedgerService) Reserve(ctx context.Context, rc domain.RequestContext, req dto.ReservationRequest) (*dto.ReservationResponse, error) {
	if req.TransactionAmount == 0 {
		return nil, fmt.Errorf("%w: transaction amount must not be zero", apperrors.ErrValidation)
	}

	account, debitCard, err := s.resolveAccount(ctx, req.AccountNumber, req.DebitCardNumber)
	if err != nil {
		return nil, err
	}

	if prior, err := s.findPrior(ctx, req.RequestUUID, account.AccountNumber); err != nil {
		return nil, err
	} else if prior != nil {
		s.LogDebug(ctx, "Reservation request replayed, returning stored resource",
			slog.String("request_uuid", req.RequestUUID),
			slog.String("transaction_uuid", prior.TransactionUUID))
		return &dto.ReservationResponse{Status: statusFor(prior), Resource: prior}, nil
	}

	resource, err := s.post(ctx, domain.Posting{
		RequestUUID:             req.RequestUUID,
		AccountNumber:           account.AccountNumber,
		DebitCardNumber:         debitCard,
		Amount:                  req.TransactionAmount,
		TypeCode:                domain.TypeReservation,
		AuthorizeAgainstBalance: req.AuthorizeAgainstBalance,
		MetadataJSON:            req.TransactionMetadataJSON,
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to post reservation",
			slog.String("account_number", account.AccountNumber))
		return nil, err
	}

	s.LogInfo(ctx, "Reservation posted",
		slog.String("account_number", account.AccountNumber),
		slog.String("transaction_uuid", resource.TransactionUUID),
		slog.String("type_code", string(resource.TransactionTypeCode)))
	return &dto.ReservationResponse{Status: statusFor(resource), Resource: resource}, nil
}

// Transact records a single-phase transaction with no later commit or cancel
// step.
func (s *LedgerService) Transact(ctx context.Context, rc domain.RequestContext, req dto.TransactionRequest) (*dto.TransactionResponse, error) {
	if req.TransactionAmount == 0 {
		return nil, fmt.Errorf("%w: transaction amount must not be zero", apperrors.ErrValidation)
	}

	account, debitCard, err := s.resolveAccount(ctx, req.AccountNumber, req.DebitCardNumber)
	if err != nil {
		return nil, err
	}

	if prior, err := s.findPrior(ctx, req.RequestUUID, account.AccountNumber); err != nil {
		return nil, err
	} else if prior != nil {
		s.LogDebug(ctx, "Transaction request replayed, returning stored resource",
			slog.String("request_uuid", req.RequestUUID),
			slog.String("transaction_uuid", prior.TransactionUUID))
		return &dto.TransactionResponse{Status: statusFor(prior), Transactions: []domain.TransactionResource{*prior}}, nil
	}

	resource, err := s.post(ctx, domain.Posting{
		RequestUUID:             req.RequestUUID,
		AccountNumber:           account.AccountNumber,
		DebitCardNumber:         debitCard,
		Amount:                  req.TransactionAmount,
		TypeCode:                domain.TypeNormal,
		AuthorizeAgainstBalance: req.AuthorizeAgainstBalance,
		MetadataJSON:            req.TransactionMetadataJSON,
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to post transaction",
			slog.String("account_number", account.AccountNumber))
		return nil, err
	}

	s.LogInfo(ctx, "Transaction posted",
		slog.String("account_number", account.AccountNumber),
		slog.String("transaction_uuid", resource.TransactionUUID),
		slog.String("type_code", string(resource.TransactionTypeCode)))
	return &dto.TransactionResponse{Status: statusFor(resource), Transactions: []domain.TransactionResource{*resource}}, nil
}

// Commit finalizes a reservation. The commit row's amount is the delta between
// the new amount and the originally reserved amount, zero when unchanged; the
// reservation row itself is never deleted, only cross-referenced.
func (s *LedgerService) Commit(ctx context.Context, rc domain.RequestContext, req dto.CommitReservationRequest) (*dto.CommitReservationResponse, error) {
	reservation, err := s.ledgerRepo.FindByTransactionUUID(ctx, req.ReservationUUID)
	if err != nil {
		return nil, err
	}
	if reservation.TransactionTypeCode != domain.TypeReservation {
		return nil, fmt.Errorf("%w: transaction %s is not a reservation", apperrors.ErrNotFound, req.ReservationUUID)
	}

	if prior, err := s.findPrior(ctx, req.RequestUUID, reservation.AccountNumber); err != nil {
		return nil, err
	} else if prior != nil {
		if prior.TransactionTypeCode == domain.TypeReservationCommit && prior.ReservationUUID == req.ReservationUUID {
			return &dto.CommitReservationResponse{Status: dto.StatusSuccess, Resource: prior}, nil
		}
		return nil, fmt.Errorf("%w: request %s already produced transaction %s", apperrors.ErrConflict, req.RequestUUID, prior.TransactionUUID)
	}

	if _, err := s.ledgerRepo.FindFinalizer(ctx, req.ReservationUUID); err == nil {
		return nil, fmt.Errorf("%w: reservation %s", apperrors.ErrConflict, req.ReservationUUID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	delta := req.TransactionAmount - reservation.TransactionAmount
	resource, err := s.post(ctx, domain.Posting{
		RequestUUID:     req.RequestUUID,
		AccountNumber:   reservation.AccountNumber,
		Amount:          delta,
		TypeCode:        domain.TypeReservationCommit,
		ReservationUUID: req.ReservationUUID,
		MetadataJSON:    req.TransactionMetadataJSON,
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to post reservation commit",
			slog.String("reservation_uuid", req.ReservationUUID))
		return nil, err
	}

	s.LogInfo(ctx, "Reservation committed",
		slog.String("reservation_uuid", req.ReservationUUID),
		slog.String("transaction_uuid", resource.TransactionUUID),
		slog.Int64("delta", delta))
	return &dto.CommitReservationResponse{Status: dto.StatusSuccess, Resource: resource}, nil
}

// Cancel reverses a reservation's balance effect entirely by posting the
// negation of the reserved amount.
func (s *LedgerService) Cancel(ctx context.Context, rc domain.RequestContext, req dto.CancelReservationRequest) (*dto.CancelReservationResponse, error) {
	reservation, err := s.ledgerRepo.FindByTransactionUUID(ctx, req.ReservationUUID)
	if err != nil {
		return nil, err
	}
	if reservation.TransactionTypeCode != domain.TypeReservation {
		return nil, fmt.Errorf("%w: transaction %s is not a reservation", apperrors.ErrNotFound, req.ReservationUUID)
	}

	if prior, err := s.findPrior(ctx, req.RequestUUID, reservation.AccountNumber); err != nil {
		return nil, err
	} else if prior != nil {
		if prior.TransactionTypeCode == domain.TypeReservationCancel && prior.ReservationUUID == req.ReservationUUID {
			return &dto.CancelReservationResponse{Status: dto.StatusSuccess, Resource: prior}, nil
		}
		return nil, fmt.Errorf("%w: request %s already produced transaction %s", apperrors.ErrConflict, req.RequestUUID, prior.TransactionUUID)
	}

	if _, err := s.ledgerRepo.FindFinalizer(ctx, req.ReservationUUID); err == nil {
		return nil, fmt.Errorf("%w: reservation %s", apperrors.ErrConflict, req.ReservationUUID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	resource, err := s.post(ctx, domain.Posting{
		RequestUUID:     req.RequestUUID,
		AccountNumber:   reservation.AccountNumber,
		Amount:          -reservation.TransactionAmount,
		TypeCode:        domain.TypeReservationCancel,
		ReservationUUID: req.ReservationUUID,
		MetadataJSON:    req.TransactionMetadataJSON,
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to post reservation cancel",
			slog.String("reservation_uuid", req.ReservationUUID))
		return nil, err
	}

	s.LogInfo(ctx, "Reservation canceled",
		slog.String("reservation_uuid", req.ReservationUUID),
		slog.String("transaction_uuid", resource.TransactionUUID))
	return &dto.CancelReservationResponse{Status: dto.StatusSuccess, Resource: resource}, nil
}
