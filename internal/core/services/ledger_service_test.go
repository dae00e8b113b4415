package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/core/services"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/repositories/memory"
)

// lostRaceLedgerRepo misses the first idempotency lookup, reproducing the
// window where a concurrent retry inserts its row between the lookup and the
// post.
type lostRaceLedgerRepo struct {
	ports.LedgerRepository
	missed bool
}

func (r *lostRaceLedgerRepo) FindByRequest(ctx context.Context, requestUUID, accountNumber string) (*domain.TransactionResource, error) {
	if !r.missed {
		r.missed = true
		return nil, apperrors.ErrNotFound
	}
	return r.LedgerRepository.FindByRequest(ctx, requestUUID, accountNumber)
}

const (
	testAccount       = "1111111111"
	closedAccount     = "2222222222"
	testDebitCard     = "4111111111111111"
	closedDebitCard   = "4222222222222222"
	testMetadataJSON  = `{"intent":"test"}`
	startingBalance   = 9999
	testCorrelationID = "test-correlation"
)

type LedgerServiceTestSuite struct {
	suite.Suite
	store   *memory.Store
	service *services.LedgerService
	rc      domain.RequestContext
}

func (s *LedgerServiceTestSuite) SetupTest() {
	s.store = memory.NewStore()
	s.store.PutAccount(domain.Account{AccountNumber: testAccount, LifecycleStatus: domain.StatusEffective, RunningBalance: startingBalance})
	s.store.PutAccount(domain.Account{AccountNumber: closedAccount, LifecycleStatus: domain.StatusClosed, RunningBalance: startingBalance})
	s.store.PutDebitCard(domain.DebitCard{DebitCardNumber: testDebitCard, AccountNumber: testAccount, LifecycleStatus: domain.StatusEffective})
	s.store.PutDebitCard(domain.DebitCard{DebitCardNumber: closedDebitCard, AccountNumber: testAccount, LifecycleStatus: domain.StatusClosed})

	provider := memory.NewRepositoryProvider(s.store)
	s.service = services.NewLedgerService(provider.LedgerRepo, provider.AccountRepo)
	s.rc = domain.RequestContext{
		AITID:              "77777",
		BusinessTaxonomyID: "tax-1",
		CorrelationID:      testCorrelationID,
		AcceptVersion:      domain.Version1_0,
	}
}

func (s *LedgerServiceTestSuite) balance(accountNumber string) int64 {
	account, err := s.store.FindAccountByNumber(context.Background(), accountNumber)
	s.Require().NoError(err)
	return account.RunningBalance
}

func (s *LedgerServiceTestSuite) reserve(requestUUID string, amount int64) *dto.ReservationResponse {
	resp, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             requestUUID,
		AccountNumber:           testAccount,
		TransactionAmount:       amount,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	s.Require().NoError(err)
	return resp
}

func (s *LedgerServiceTestSuite) TestReserve_Success() {
	resp := s.reserve(uuid.NewString(), -8888)

	s.Equal(dto.StatusSuccess, resp.Status)
	s.Equal(domain.TypeReservation, resp.Resource.TransactionTypeCode)
	s.Equal(int64(-8888), resp.Resource.TransactionAmount)
	s.Equal(int64(1111), resp.Resource.RunningBalanceAmount)
	s.Equal(int64(1111), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestReserve_InsufficientFunds() {
	s.reserve(uuid.NewString(), -8888)

	resp := s.reserve(uuid.NewString(), -8888)
	s.Equal(dto.StatusInsufficientFunds, resp.Status)
	s.Equal(domain.TypeRejectedTransaction, resp.Resource.TransactionTypeCode)
	s.Equal(int64(1111), resp.Resource.RunningBalanceAmount)
	s.Equal(int64(1111), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestReserve_IdempotentReplay() {
	requestUUID := uuid.NewString()
	first := s.reserve(requestUUID, -8888)
	second := s.reserve(requestUUID, -8888)

	s.Equal(first.Resource, second.Resource)
	s.Equal(int64(1111), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestReserve_LostInsertRaceReturnsWinner() {
	requestUUID := uuid.NewString()
	winner, err := s.store.Post(context.Background(), domain.Posting{
		RequestUUID:             requestUUID,
		AccountNumber:           testAccount,
		Amount:                  -8888,
		TypeCode:                domain.TypeReservation,
		AuthorizeAgainstBalance: true,
		MetadataJSON:            testMetadataJSON,
	})
	s.Require().NoError(err)

	racing := &lostRaceLedgerRepo{LedgerRepository: s.store}
	service := services.NewLedgerService(racing, s.store)

	resp, err := service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             requestUUID,
		AccountNumber:           testAccount,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusSuccess, resp.Status)
	s.Equal(*winner, *resp.Resource)
	s.Equal(int64(1111), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestReserve_ZeroAmountRejected() {
	_, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           testAccount,
		TransactionAmount:       0,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrValidation)
	s.Equal(int64(startingBalance), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestReserve_ClosedAccount() {
	_, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           closedAccount,
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrUnprocessable)
}

func (s *LedgerServiceTestSuite) TestReserve_UnknownAccount() {
	_, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           "0000000000",
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestReserve_AccountAndCardMutuallyExclusive() {
	_, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           testAccount,
		DebitCardNumber:         testDebitCard,
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrValidation)

	_, err = s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrValidation)
}

func (s *LedgerServiceTestSuite) TestReserve_ByDebitCard() {
	resp, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		DebitCardNumber:         testDebitCard,
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	s.Require().NoError(err)
	s.Equal(testAccount, resp.Resource.AccountNumber)
	s.Equal(testDebitCard, resp.Resource.DebitCardNumber)
	s.Equal(int64(startingBalance-100), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestReserve_ClosedDebitCard() {
	_, err := s.service.Reserve(context.Background(), s.rc, dto.ReservationRequest{
		RequestUUID:             uuid.NewString(),
		DebitCardNumber:         closedDebitCard,
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrUnprocessable)
}

func (s *LedgerServiceTestSuite) TestTransact_Success() {
	resp, err := s.service.Transact(context.Background(), s.rc, dto.TransactionRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           testAccount,
		TransactionAmount:       -500,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusSuccess, resp.Status)
	s.Require().Len(resp.Transactions, 1)
	s.Equal(domain.TypeNormal, resp.Transactions[0].TransactionTypeCode)
	s.Equal(int64(startingBalance-500), resp.Transactions[0].RunningBalanceAmount)
}

func (s *LedgerServiceTestSuite) TestTransact_UnauthorizedGoesNegative() {
	resp, err := s.service.Transact(context.Background(), s.rc, dto.TransactionRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           testAccount,
		TransactionAmount:       -20000,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: false,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusSuccess, resp.Status)
	s.Equal(int64(startingBalance-20000), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestCommit_DeltaApplied() {
	reservation := s.reserve(uuid.NewString(), -8888)

	resp, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -9111,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusSuccess, resp.Status)
	s.Equal(domain.TypeReservationCommit, resp.Resource.TransactionTypeCode)
	s.Equal(int64(-223), resp.Resource.TransactionAmount)
	s.Equal(reservation.Resource.TransactionUUID, resp.Resource.ReservationUUID)
	s.Equal(int64(888), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestCommit_UnchangedAmountIsDeltaZero() {
	reservation := s.reserve(uuid.NewString(), -8888)

	resp, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)
	s.Equal(int64(0), resp.Resource.TransactionAmount)
	s.Equal(int64(1111), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestCommit_UnknownReservation() {
	_, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         uuid.NewString(),
		TransactionAmount:       -100,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestCommit_TargetNotAReservation() {
	resp, err := s.service.Transact(context.Background(), s.rc, dto.TransactionRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           testAccount,
		TransactionAmount:       -500,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)

	_, err = s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         resp.Transactions[0].TransactionUUID,
		TransactionAmount:       -500,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestCommit_AlreadyCanceled() {
	reservation := s.reserve(uuid.NewString(), -8888)

	_, err := s.service.Cancel(context.Background(), s.rc, dto.CancelReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)

	_, err = s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrConflict)
}

func (s *LedgerServiceTestSuite) TestCommit_IdempotentReplay() {
	reservation := s.reserve(uuid.NewString(), -8888)
	requestUUID := uuid.NewString()

	first, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             requestUUID,
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)

	second, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             requestUUID,
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)
	s.Equal(first.Resource, second.Resource)
	s.Equal(int64(1111), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestCommit_RequestReuseConflicts() {
	requestUUID := uuid.NewString()
	reservation := s.reserve(requestUUID, -8888)

	// Reusing the reservation's own request UUID for the commit collides with
	// the reservation row on the same account.
	_, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             requestUUID,
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrConflict)
}

func (s *LedgerServiceTestSuite) TestCancel_RestoresBalance() {
	reservation := s.reserve(uuid.NewString(), -8888)

	resp, err := s.service.Cancel(context.Background(), s.rc, dto.CancelReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)
	s.Equal(domain.TypeReservationCancel, resp.Resource.TransactionTypeCode)
	s.Equal(int64(8888), resp.Resource.TransactionAmount)
	s.Equal(int64(startingBalance), s.balance(testAccount))
}

func (s *LedgerServiceTestSuite) TestCancel_AlreadyCommitted() {
	reservation := s.reserve(uuid.NewString(), -8888)

	_, err := s.service.Commit(context.Background(), s.rc, dto.CommitReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().NoError(err)

	_, err = s.service.Cancel(context.Background(), s.rc, dto.CancelReservationRequest{
		RequestUUID:             uuid.NewString(),
		ReservationUUID:         reservation.Resource.TransactionUUID,
		TransactionMetadataJSON: testMetadataJSON,
	})
	s.Require().ErrorIs(err, apperrors.ErrConflict)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}
