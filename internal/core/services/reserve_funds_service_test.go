package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/core/services"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/repositories/memory"
)

var errStoreUnavailable = errors.New("account store unavailable")

// faultyAccountRepo fails lookups for one account, standing in for a
// transient database outage mid-cascade.
type faultyAccountRepo struct {
	ports.AccountRepository
	failFor string
}

func (r *faultyAccountRepo) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if accountNumber == r.failFor {
		return nil, errStoreUnavailable
	}
	return r.AccountRepository.FindAccountByNumber(ctx, accountNumber)
}

const (
	primaryAccount = "9000000001"
	odClosedInstr  = "9000000011"
	odClosedLink   = "9000000012"
	odExpired      = "9000000013"
	odNotStarted   = "9000000014"
	odShallow      = "9000000015"
	odDeep         = "9000000016"
)

type ReserveFundsServiceTestSuite struct {
	suite.Suite
	store   *memory.Store
	ledger  *services.LedgerService
	service *services.ReserveFundsService
	rc      domain.RequestContext
}

func (s *ReserveFundsServiceTestSuite) SetupTest() {
	s.store = memory.NewStore()
	s.store.PutAccount(domain.Account{AccountNumber: primaryAccount, LifecycleStatus: domain.StatusEffective, RunningBalance: 1111})

	provider := memory.NewRepositoryProvider(s.store)
	s.ledger = services.NewLedgerService(provider.LedgerRepo, provider.AccountRepo)
	s.service = services.NewReserveFundsService(s.ledger, provider.AccountRepo, provider.OverdraftRepo)
	s.rc = domain.RequestContext{
		AITID:              "77777",
		BusinessTaxonomyID: "tax-1",
		CorrelationID:      testCorrelationID,
		AcceptVersion:      domain.Version1_0,
	}
}

// seedCascadeChain provisions the six-instruction chain: 1 has a closed
// instruction, 2 links a closed account, 3's window has expired, 4's window
// has not started, 5 lacks funds, 6 has ample funds.
func (s *ReserveFundsServiceTestSuite) seedCascadeChain() {
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	accounts := []struct {
		number  string
		status  domain.LifecycleStatus
		balance int64
	}{
		{odClosedInstr, domain.StatusEffective, 99999},
		{odClosedLink, domain.StatusClosed, 99999},
		{odExpired, domain.StatusEffective, 99999},
		{odNotStarted, domain.StatusEffective, 99999},
		{odShallow, domain.StatusEffective, 100},
		{odDeep, domain.StatusEffective, 99999},
	}
	for _, a := range accounts {
		s.store.PutAccount(domain.Account{AccountNumber: a.number, LifecycleStatus: a.status, RunningBalance: a.balance})
	}

	instructions := []struct {
		account  string
		status   domain.LifecycleStatus
		start    time.Time
		end      time.Time
		sequence int
	}{
		{odClosedInstr, domain.StatusClosed, past, future, 1},
		{odClosedLink, domain.StatusEffective, past, future, 2},
		{odExpired, domain.StatusEffective, past.Add(-48 * time.Hour), past, 3},
		{odNotStarted, domain.StatusEffective, future, future.Add(48 * time.Hour), 4},
		{odShallow, domain.StatusEffective, past, future, 5},
		{odDeep, domain.StatusEffective, past, future, 6},
	}
	for _, i := range instructions {
		s.store.PutInstruction(domain.OverdraftInstruction{
			AccountNumber:          primaryAccount,
			OverdraftAccountNumber: i.account,
			LifecycleStatus:        i.status,
			EffectiveStart:         i.start,
			EffectiveEnd:           i.end,
			Sequence:               i.sequence,
		})
	}
}

func (s *ReserveFundsServiceTestSuite) reserveFunds(requestUUID string, amount int64, protect bool) *dto.ReserveFundsResponse {
	resp, err := s.service.ReserveFunds(context.Background(), s.rc, dto.ReserveFundsRequest{
		RequestUUID:             requestUUID,
		AccountNumber:           primaryAccount,
		TransactionAmount:       amount,
		TransactionMetadataJSON: testMetadataJSON,
		ProtectAgainstOverdraft: protect,
	})
	s.Require().NoError(err)
	return resp
}

func (s *ReserveFundsServiceTestSuite) TestPrimaryCovers() {
	resp := s.reserveFunds(uuid.NewString(), -1000, true)

	s.Equal(dto.StatusSuccess, resp.Status)
	s.Require().Len(resp.Transactions, 1)
	s.Equal(domain.TypeReservation, resp.Transactions[0].TransactionTypeCode)
	s.Equal(primaryAccount, resp.Transactions[0].AccountNumber)
}

func (s *ReserveFundsServiceTestSuite) TestNoProtection_SingleRejection() {
	resp := s.reserveFunds(uuid.NewString(), -8888, false)

	s.Equal(dto.StatusInsufficientFunds, resp.Status)
	s.Require().Len(resp.Transactions, 1)
	s.Equal(domain.TypeRejectedTransaction, resp.Transactions[0].TransactionTypeCode)
}

func (s *ReserveFundsServiceTestSuite) TestCascadeOrdering() {
	s.seedCascadeChain()

	resp := s.reserveFunds(uuid.NewString(), -8888, true)

	s.Equal(dto.StatusSuccessOverdraft, resp.Status)
	s.Require().Len(resp.Transactions, 3)

	s.Equal(primaryAccount, resp.Transactions[0].AccountNumber)
	s.Equal(domain.TypeRejectedTransaction, resp.Transactions[0].TransactionTypeCode)

	s.Equal(odShallow, resp.Transactions[1].AccountNumber)
	s.Equal(domain.TypeRejectedTransaction, resp.Transactions[1].TransactionTypeCode)

	s.Equal(odDeep, resp.Transactions[2].AccountNumber)
	s.Equal(domain.TypeReservation, resp.Transactions[2].TransactionTypeCode)
	s.Equal(int64(99999-8888), resp.Transactions[2].RunningBalanceAmount)

	// Skipped candidates never produce rows or balance changes
	for _, skipped := range []string{odClosedInstr, odExpired, odNotStarted} {
		account, err := s.store.FindAccountByNumber(context.Background(), skipped)
		s.Require().NoError(err)
		s.Equal(int64(99999), account.RunningBalance)
	}
}

func (s *ReserveFundsServiceTestSuite) TestCascadeExhausted() {
	s.seedCascadeChain()

	resp := s.reserveFunds(uuid.NewString(), -500000, true)

	s.Equal(dto.StatusInsufficientFunds, resp.Status)
	s.Require().Len(resp.Transactions, 3)
	for _, txn := range resp.Transactions {
		s.Equal(domain.TypeRejectedTransaction, txn.TransactionTypeCode)
	}
}

func (s *ReserveFundsServiceTestSuite) TestCascadeIdempotentRetry() {
	s.seedCascadeChain()
	requestUUID := uuid.NewString()

	first := s.reserveFunds(requestUUID, -8888, true)
	second := s.reserveFunds(requestUUID, -8888, true)

	s.Equal(first.Status, second.Status)
	s.Equal(first.Transactions, second.Transactions)

	account, err := s.store.FindAccountByNumber(context.Background(), odDeep)
	s.Require().NoError(err)
	s.Equal(int64(99999-8888), account.RunningBalance)
}

func (s *ReserveFundsServiceTestSuite) TestCascadeSkipsUnknownLinkedAccount() {
	now := time.Now()
	s.store.PutAccount(domain.Account{AccountNumber: odDeep, LifecycleStatus: domain.StatusEffective, RunningBalance: 99999})
	s.store.PutInstruction(domain.OverdraftInstruction{
		AccountNumber:          primaryAccount,
		OverdraftAccountNumber: "9999999999",
		LifecycleStatus:        domain.StatusEffective,
		EffectiveStart:         now.Add(-time.Hour),
		EffectiveEnd:           now.Add(time.Hour),
		Sequence:               1,
	})
	s.store.PutInstruction(domain.OverdraftInstruction{
		AccountNumber:          primaryAccount,
		OverdraftAccountNumber: odDeep,
		LifecycleStatus:        domain.StatusEffective,
		EffectiveStart:         now.Add(-time.Hour),
		EffectiveEnd:           now.Add(time.Hour),
		Sequence:               2,
	})

	resp := s.reserveFunds(uuid.NewString(), -8888, true)

	s.Equal(dto.StatusSuccessOverdraft, resp.Status)
	s.Require().Len(resp.Transactions, 2)
	s.Equal(odDeep, resp.Transactions[1].AccountNumber)
}

func (s *ReserveFundsServiceTestSuite) TestCascadeLookupFailurePropagates() {
	s.seedCascadeChain()
	faulty := &faultyAccountRepo{AccountRepository: s.store, failFor: odShallow}
	service := services.NewReserveFundsService(s.ledger, faulty, s.store)

	_, err := service.ReserveFunds(context.Background(), s.rc, dto.ReserveFundsRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           primaryAccount,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
		ProtectAgainstOverdraft: true,
	})
	s.Require().ErrorIs(err, errStoreUnavailable)
}

func (s *ReserveFundsServiceTestSuite) TestTransactWithOverdraft_PrimaryCovers() {
	resp, err := s.service.TransactWithOverdraft(context.Background(), s.rc, dto.TransactionRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           primaryAccount,
		TransactionAmount:       -1000,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
		ProtectAgainstOverdraft: true,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusSuccess, resp.Status)
	s.Require().Len(resp.Transactions, 1)
	s.Equal(domain.TypeNormal, resp.Transactions[0].TransactionTypeCode)
}

func (s *ReserveFundsServiceTestSuite) TestTransactWithOverdraft_NoProtection() {
	resp, err := s.service.TransactWithOverdraft(context.Background(), s.rc, dto.TransactionRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           primaryAccount,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusInsufficientFunds, resp.Status)
	s.Require().Len(resp.Transactions, 1)
	s.Equal(domain.TypeRejectedTransaction, resp.Transactions[0].TransactionTypeCode)
}

func (s *ReserveFundsServiceTestSuite) TestTransactWithOverdraft_FiveRowSettlement() {
	now := time.Now()
	s.store.PutAccount(domain.Account{AccountNumber: odDeep, LifecycleStatus: domain.StatusEffective, RunningBalance: 99999})
	s.store.PutInstruction(domain.OverdraftInstruction{
		AccountNumber:          primaryAccount,
		OverdraftAccountNumber: odDeep,
		LifecycleStatus:        domain.StatusEffective,
		EffectiveStart:         now.Add(-time.Hour),
		EffectiveEnd:           now.Add(time.Hour),
		Sequence:               1,
	})

	requestUUID := uuid.NewString()
	resp, err := s.service.TransactWithOverdraft(context.Background(), s.rc, dto.TransactionRequest{
		RequestUUID:             requestUUID,
		AccountNumber:           primaryAccount,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
		ProtectAgainstOverdraft: true,
	})
	s.Require().NoError(err)
	s.Equal(dto.StatusSuccessOverdraft, resp.Status)
	s.Require().Len(resp.Transactions, 5)

	rejection := resp.Transactions[0]
	reservation := resp.Transactions[1]
	credit := resp.Transactions[2]
	debit := resp.Transactions[3]
	commit := resp.Transactions[4]

	s.Equal(domain.TypeRejectedTransaction, rejection.TransactionTypeCode)
	s.Equal(primaryAccount, rejection.AccountNumber)
	s.Equal(requestUUID, rejection.RequestUUID)

	s.Equal(domain.TypeReservation, reservation.TransactionTypeCode)
	s.Equal(odDeep, reservation.AccountNumber)
	s.Equal(requestUUID, reservation.RequestUUID)

	// Each settlement leg is keyed off an earlier row's transaction UUID
	s.Equal(domain.TypeNormal, credit.TransactionTypeCode)
	s.Equal(primaryAccount, credit.AccountNumber)
	s.Equal(int64(8888), credit.TransactionAmount)
	s.Equal(reservation.TransactionUUID, credit.RequestUUID)

	s.Equal(domain.TypeNormal, debit.TransactionTypeCode)
	s.Equal(primaryAccount, debit.AccountNumber)
	s.Equal(int64(-8888), debit.TransactionAmount)
	s.Equal(credit.TransactionUUID, debit.RequestUUID)

	s.Equal(domain.TypeReservationCommit, commit.TransactionTypeCode)
	s.Equal(int64(0), commit.TransactionAmount)
	s.Equal(reservation.TransactionUUID, commit.ReservationUUID)
	s.Equal(reservation.TransactionUUID, commit.RequestUUID)

	// Primary nets to its starting balance; the overdraft account funds it
	primary, err := s.store.FindAccountByNumber(context.Background(), primaryAccount)
	s.Require().NoError(err)
	s.Equal(int64(1111), primary.RunningBalance)

	overdraft, err := s.store.FindAccountByNumber(context.Background(), odDeep)
	s.Require().NoError(err)
	s.Equal(int64(99999-8888), overdraft.RunningBalance)
}

func (s *ReserveFundsServiceTestSuite) TestTransactWithOverdraft_Redelivery() {
	now := time.Now()
	s.store.PutAccount(domain.Account{AccountNumber: odDeep, LifecycleStatus: domain.StatusEffective, RunningBalance: 99999})
	s.store.PutInstruction(domain.OverdraftInstruction{
		AccountNumber:          primaryAccount,
		OverdraftAccountNumber: odDeep,
		LifecycleStatus:        domain.StatusEffective,
		EffectiveStart:         now.Add(-time.Hour),
		EffectiveEnd:           now.Add(time.Hour),
		Sequence:               1,
	})

	req := dto.TransactionRequest{
		RequestUUID:             uuid.NewString(),
		AccountNumber:           primaryAccount,
		TransactionAmount:       -8888,
		TransactionMetadataJSON: testMetadataJSON,
		AuthorizeAgainstBalance: true,
		ProtectAgainstOverdraft: true,
	}

	first, err := s.service.TransactWithOverdraft(context.Background(), s.rc, req)
	s.Require().NoError(err)
	second, err := s.service.TransactWithOverdraft(context.Background(), s.rc, req)
	s.Require().NoError(err)

	s.Equal(first.Status, second.Status)
	s.Equal(first.Transactions, second.Transactions)

	overdraft, err := s.store.FindAccountByNumber(context.Background(), odDeep)
	s.Require().NoError(err)
	s.Equal(int64(99999-8888), overdraft.RunningBalance)
}

func TestReserveFundsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReserveFundsServiceTestSuite))
}
