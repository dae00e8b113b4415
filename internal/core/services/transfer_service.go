package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/dto"
)

// TransferService orchestrates fund transfers: a synchronous hold on the
// source account plus an asynchronous fulfillment message that later credits
// the destination and commits the hold.
type TransferService struct {
	BaseService
	ledger        ports.LedgerSvc
	accountRepo   ports.AccountRepository
	publisher     ports.Publisher
	transferTopic string
	producerAIT   string
}

// NewTransferService creates the transfer orchestrator. producerAIT is this
// service's own application identity, stamped on every published envelope.
func NewTransferService(ledger ports.LedgerSvc, accountRepo ports.AccountRepository, publisher ports.Publisher, transferTopic, producerAIT string) *TransferService {
	return &TransferService{
		ledger:        ledger,
		accountRepo:   accountRepo,
		publisher:     publisher,
		transferTopic: transferTopic,
		producerAIT:   producerAIT,
	}
}

// Ensure TransferService implements the TransferSvc interface
var _ ports.TransferSvc = (*TransferService)(nil)

// TransferFunds reserves the amount on the source account and publishes the
// fulfillment message for the destination leg. Both accounts must be
// effective before any balance is touched. The fulfillment message is keyed by
// the reservation's transaction UUID, which makes redelivered fulfillments
// idempotent.
func (s *TransferService) TransferFunds(ctx context.Context, rc domain.RequestContext, req dto.TransferFundsRequest) (*dto.TransferFundsResponse, error) {
	if req.TransactionAmount <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be greater than zero", apperrors.ErrValidation)
	}

	fromAccount, err := s.accountRepo.FindAccountByNumber(ctx, req.FromAccountNumber)
	if err != nil {
		return nil, err
	}
	if !fromAccount.LifecycleStatus.IsEffective() {
		return nil, fmt.Errorf("%w: account %s is not effective", apperrors.ErrUnprocessable, req.FromAccountNumber)
	}
	toAccount, err := s.accountRepo.FindAccountByNumber(ctx, req.ToAccountNumber)
	if err != nil {
		return nil, err
	}
	if !toAccount.LifecycleStatus.IsEffective() {
		return nil, fmt.Errorf("%w: account %s is not effective", apperrors.ErrUnprocessable, req.ToAccountNumber)
	}

	reservation, err := s.ledger.Reserve(ctx, rc, dto.ReservationRequest{
		RequestUUID:             req.RequestUUID,
		AccountNumber:           req.FromAccountNumber,
		TransactionAmount:       -req.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	if err != nil {
		return nil, err
	}
	if reservation.Status != dto.StatusSuccess {
		// Insufficient funds: the rejection row is the response, nothing is
		// published.
		return &dto.TransferFundsResponse{
			Status:      dto.StatusInsufficientFunds,
			Reservation: reservation.Resource,
		}, nil
	}

	fulfillment := dto.TransferFulfillmentMessage{
		Version:                 dto.TransferFulfillmentVersion,
		RequestUUID:             reservation.Resource.TransactionUUID,
		ReservationUUID:         reservation.Resource.TransactionUUID,
		FromAccountNumber:       req.FromAccountNumber,
		ToAccountNumber:         req.ToAccountNumber,
		TransactionAmount:       req.TransactionAmount,
		TransactionMetadataJSON: req.TransactionMetadataJSON,
	}
	if err := s.publishFulfillment(ctx, rc, fulfillment); err != nil {
		s.LogError(ctx, err, "Failed to publish transfer fulfillment",
			slog.String("reservation_uuid", fulfillment.ReservationUUID))
		return nil, fmt.Errorf("%w: fulfillment publish failed", apperrors.ErrInternal)
	}

	s.LogInfo(ctx, "Transfer reserved and fulfillment published",
		slog.String("from_account", req.FromAccountNumber),
		slog.String("to_account", req.ToAccountNumber),
		slog.String("reservation_uuid", fulfillment.ReservationUUID))
	return &dto.TransferFundsResponse{
		Status:      dto.StatusSuccess,
		Reservation: reservation.Resource,
		Fulfillment: &fulfillment,
	}, nil
}

func (s *TransferService) publishFulfillment(ctx context.Context, rc domain.RequestContext, msg dto.TransferFulfillmentMessage) error {
	envelope := domain.TraceableMessage[dto.TransferFulfillmentMessage]{
		ProducerAIT:         s.producerAIT,
		BusinessTaxonomyID:  rc.BusinessTaxonomyID,
		CorrelationID:       rc.CorrelationID,
		MessageCreationTime: time.Now(),
		Payload:             &msg,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, s.transferTopic, msg.FromAccountNumber, raw)
}

// TransferAndTransact treats a caller-supplied reservation as already held and
// synchronously performs its commit followed by the accompanying direct
// transaction, both under the one request UUID. The two resulting rows are
// returned in that order.
func (s *TransferService) TransferAndTransact(ctx context.Context, rc domain.RequestContext, req dto.TransferAndTransactRequest) (*dto.TransferAndTransactResponse, error) {
	if err := validateTransferAndTransact(req); err != nil {
		return nil, err
	}

	commit, err := s.ledger.Commit(ctx, rc, dto.CommitReservationRequest{
		RequestUUID:             req.RequestUUID,
		ReservationUUID:         req.TransferReservation.TransactionUUID,
		TransactionAmount:       req.TransferReservation.TransactionAmount,
		TransactionMetadataJSON: req.TransactionRequest.TransactionMetadataJSON,
	})
	if err != nil {
		return nil, err
	}

	// The transaction leg is keyed off the commit row's UUID: on a shared
	// account it cannot collide with the commit's idempotency key, and a
	// replayed composite still resolves both legs to their stored rows.
	transaction, err := s.ledger.Transact(ctx, rc, dto.TransactionRequest{
		RequestUUID:             commit.Resource.TransactionUUID,
		AccountNumber:           req.TransactionRequest.AccountNumber,
		DebitCardNumber:         req.TransactionRequest.DebitCardNumber,
		TransactionAmount:       req.TransactionRequest.TransactionAmount,
		TransactionMetadataJSON: req.TransactionRequest.TransactionMetadataJSON,
		AuthorizeAgainstBalance: req.TransactionRequest.AuthorizeAgainstBalance,
	})
	if err != nil {
		return nil, err
	}

	status := dto.StatusSuccess
	if transaction.Status == dto.StatusInsufficientFunds {
		status = dto.StatusInsufficientFunds
	}
	return &dto.TransferAndTransactResponse{
		Status:       status,
		Transactions: []domain.TransactionResource{*commit.Resource, transaction.Transactions[0]},
	}, nil
}

func validateTransferAndTransact(req dto.TransferAndTransactRequest) error {
	switch {
	case req.TransferReservation == nil:
		return fmt.Errorf("%w: transfer reservation is required", apperrors.ErrValidation)
	case req.TransferReservation.TransactionUUID == "":
		return fmt.Errorf("%w: transfer reservation transaction UUID is required", apperrors.ErrValidation)
	case req.TransferReservation.TransactionAmount >= 0:
		return fmt.Errorf("%w: transfer reservation amount must be negative", apperrors.ErrValidation)
	case req.TransactionRequest == nil:
		return fmt.Errorf("%w: transaction request is required", apperrors.ErrValidation)
	case req.TransactionRequest.TransactionAmount == 0:
		return fmt.Errorf("%w: transaction amount must not be zero", apperrors.ErrValidation)
	case req.TransactionRequest.TransactionAmount > 0:
		return fmt.Errorf("%w: transaction amount must be negative", apperrors.ErrValidation)
	case req.TransactionRequest.TransactionMetadataJSON == "":
		return fmt.Errorf("%w: transaction metadata is required", apperrors.ErrValidation)
	}
	return nil
}
