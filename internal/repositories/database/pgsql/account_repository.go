package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
)

// PgxAccountRepository reads account and debit card state.
type PgxAccountRepository struct {
	BaseRepository
}

func newPgxAccountRepository(pool *pgxpool.Pool) ports.AccountRepository {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxAccountRepository implements ports.AccountRepository
var _ ports.AccountRepository = (*PgxAccountRepository)(nil)

func (r *PgxAccountRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var a domain.Account
	var status string
	err := r.Pool.QueryRow(ctx,
		`SELECT account_no, lifecycle_status_cd, running_balance_am
		 FROM account WHERE account_no = $1`,
		accountNumber,
	).Scan(&a.AccountNumber, &status, &a.RunningBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountNumber)
		}
		return nil, apperrors.NewAppError(500, "failed to query account "+accountNumber, err)
	}
	a.LifecycleStatus = domain.LifecycleStatus(status)
	return &a, nil
}

func (r *PgxAccountRepository) FindAccountByDebitCard(ctx context.Context, debitCardNumber string) (*domain.Account, *domain.DebitCard, error) {
	var a domain.Account
	var c domain.DebitCard
	var accountStatus, cardStatus string
	err := r.Pool.QueryRow(ctx,
		`SELECT a.account_no, a.lifecycle_status_cd, a.running_balance_am,
		        d.debit_card_no, d.account_no, d.lifecycle_status_cd
		 FROM debit_card d
		 JOIN account a ON a.account_no = d.account_no
		 WHERE d.debit_card_no = $1`,
		debitCardNumber,
	).Scan(&a.AccountNumber, &accountStatus, &a.RunningBalance,
		&c.DebitCardNumber, &c.AccountNumber, &cardStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: debit card %s", apperrors.ErrNotFound, debitCardNumber)
		}
		return nil, nil, apperrors.NewAppError(500, "failed to query debit card "+debitCardNumber, err)
	}
	a.LifecycleStatus = domain.LifecycleStatus(accountStatus)
	c.LifecycleStatus = domain.LifecycleStatus(cardStatus)
	return &a, &c, nil
}
