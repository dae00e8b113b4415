package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qslv/transaction-engine/internal/core/ports"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) ports.RepositoryProvider {
	return ports.RepositoryProvider{
		LedgerRepo:    newPgxLedgerRepository(dbPool),
		AccountRepo:   newPgxAccountRepository(dbPool),
		OverdraftRepo: newPgxOverdraftRepository(dbPool),
	}
}
