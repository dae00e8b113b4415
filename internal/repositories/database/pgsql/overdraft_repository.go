package pgsql

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qslv/transaction-engine/internal/apperrors"
	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/core/ports"
)

// PgxOverdraftRepository reads the overdraft instruction chain.
type PgxOverdraftRepository struct {
	BaseRepository
}

func newPgxOverdraftRepository(pool *pgxpool.Pool) ports.OverdraftRepository {
	return &PgxOverdraftRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxOverdraftRepository implements ports.OverdraftRepository
var _ ports.OverdraftRepository = (*PgxOverdraftRepository)(nil)

func (r *PgxOverdraftRepository) ListInstructions(ctx context.Context, accountNumber string) ([]domain.OverdraftInstruction, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT account_no, overdraft_account_no, lifecycle_status_cd,
		        effective_start_dt, effective_end_dt, sequence_nb
		 FROM overdraft_instruction
		 WHERE account_no = $1`,
		accountNumber,
	)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query overdraft instructions for account "+accountNumber, err)
	}
	defer rows.Close()

	var instructions []domain.OverdraftInstruction
	for rows.Next() {
		var o domain.OverdraftInstruction
		var status string
		if err := rows.Scan(&o.AccountNumber, &o.OverdraftAccountNumber, &status,
			&o.EffectiveStart, &o.EffectiveEnd, &o.Sequence); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan overdraft instruction row", err)
		}
		o.LifecycleStatus = domain.LifecycleStatus(status)
		instructions = append(instructions, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed to read overdraft instructions", err)
	}
	return instructions, nil
}
