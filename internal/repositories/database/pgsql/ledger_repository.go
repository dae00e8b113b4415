package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
)

// PgxLedgerRepository persists transaction rows and the per-account running
// balance.
type PgxLedgerRepository struct {
	BaseRepository
}

func newPgxLedgerRepository(pool *pgxpool.Pool) ports.LedgerRepository {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxLedgerRepository implements ports.LedgerRepository
var _ ports.LedgerRepository = (*PgxLedgerRepository)(nil)

const transactionColumns = `transaction_uuid, request_uuid, account_no, debit_card_no, transaction_am,
	transactiontype_cd, runningbalance_am, reservation_uuid, transactionmetadata_json, insert_tsz`

// Post applies a posting atomically: the balance row is locked for the
// duration of the transaction, so concurrent postings against the same account
// serialize and the authorization check is race-free.
func (r *PgxLedgerRepository) Post(ctx context.Context, p domain.Posting) (*domain.TransactionResource, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx) // Ignored once the transaction is committed

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT running_balance_am FROM account WHERE account_no = $1 FOR UPDATE`,
		p.AccountNumber,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, p.AccountNumber)
		}
		return nil, apperrors.NewAppError(500, "failed to lock account "+p.AccountNumber, err)
	}

	typeCode := p.TypeCode
	newBalance := balance + p.Amount
	if p.AuthorizeAgainstBalance && newBalance < 0 {
		typeCode = domain.TypeRejectedTransaction
		newBalance = balance
	}

	resource := domain.TransactionResource{
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

	_, err = tx.Exec(ctx,
		`INSERT INTO transaction (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		resource.TransactionUUID,
		resource.RequestUUID,
		resource.AccountNumber,
		nullIfEmpty(resource.DebitCardNumber),
		resource.TransactionAmount,
		string(resource.TransactionTypeCode),
		resource.RunningBalanceAmount,
		nullIfEmpty(resource.ReservationUUID),
		resource.TransactionMetadataJSON,
		resource.InsertTimestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the race on (request_uuid, account_no); the caller's
			// idempotency lookup will find the winner.
			return nil, fmt.Errorf("%w: request %s already posted for account %s", apperrors.ErrConflict, p.RequestUUID, p.AccountNumber)
		}
		return nil, apperrors.NewAppError(500, "failed to insert transaction "+resource.TransactionUUID, err)
	}

	if typeCode != domain.TypeRejectedTransaction {
		_, err = tx.Exec(ctx,
			`UPDATE account SET running_balance_am = $1 WHERE account_no = $2`,
			newBalance, p.AccountNumber,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to update balance for account "+p.AccountNumber, err)
		}
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return &resource, nil
}

// FindByRequest looks up the idempotency key (request_uuid, account_number).
func (r *PgxLedgerRepository) FindByRequest(ctx context.Context, requestUUID, accountNumber string) (*domain.TransactionResource, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transaction
		 WHERE request_uuid = $1 AND account_no = $2`,
		requestUUID, accountNumber,
	)
	return scanTransaction(row)
}

// FindByTransactionUUID looks up a row by its generated UUID.
func (r *PgxLedgerRepository) FindByTransactionUUID(ctx context.Context, transactionUUID string) (*domain.TransactionResource, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transaction
		 WHERE transaction_uuid = $1`,
		transactionUUID,
	)
	return scanTransaction(row)
}

// FindFinalizer returns the commit or cancel row referencing the reservation.
func (r *PgxLedgerRepository) FindFinalizer(ctx context.Context, reservationUUID string) (*domain.TransactionResource, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transaction
		 WHERE reservation_uuid = $1
		   AND transactiontype_cd IN ($2, $3)
		 LIMIT 1`,
		reservationUUID,
		string(domain.TypeReservationCommit),
		string(domain.TypeReservationCancel),
	)
	return scanTransaction(row)
}

func scanTransaction(row pgx.Row) (*domain.TransactionResource, error) {
	var t domain.TransactionResource
	var debitCard, reservation sql.NullString
	var typeCode string
	err := row.Scan(
		&t.TransactionUUID,
		&t.RequestUUID,
		&t.AccountNumber,
		&debitCard,
		&t.TransactionAmount,
		&typeCode,
		&t.RunningBalanceAmount,
		&reservation,
		&t.TransactionMetadataJSON,
		&t.InsertTimestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to scan transaction row", err)
	}
	t.DebitCardNumber = debitCard.String
	t.ReservationUUID = reservation.String
	t.TransactionTypeCode = domain.TransactionTypeCode(typeCode)
	return &t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
