package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/blossomfi/blossom-api/internal/db"
)

// ErrExecutionNotFound is returned for unknown ledger ids.
var ErrExecutionNotFound = errors.New("execution not found")

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// LedgerService serves audit reads over the append-only execution ledger.
type LedgerService struct {
	queries db.Querier
}

// NewLedgerService creates a ledger read service.
func NewLedgerService(queries db.Querier) *LedgerService {
	return &LedgerService{queries: queries}
}

// GetExecution returns one ledger row by id.
func (s *LedgerService) GetExecution(ctx context.Context, id uuid.UUID) (*db.Execution, error) {
	execution, err := s.queries.GetExecution(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
	}
	return &execution, nil
}

// ListExecutions pages a user's ledger rows, newest first.
func (s *LedgerService) ListExecutions(ctx context.Context, userAddress string, limit, offset int32) ([]db.Execution, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	executions, err := s.queries.ListExecutionsByUser(ctx, db.ListExecutionsByUserParams{
		FromAddress: userAddress,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for %s: %w", userAddress, err)
	}
	return executions, nil
}
