package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/chain"
	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/policy"
)

// SessionStatusView is the client-facing read of one capability session:
// the derived status plus the raw fields it was derived from.
type SessionStatusView struct {
	SessionID       string    `json:"session_id"`
	Status          string    `json:"status"`
	Owner           string    `json:"owner"`
	Executor        string    `json:"executor"`
	ExpiresAt       time.Time `json:"expires_at"`
	MaxSpend        int64     `json:"max_spend_units"`
	Spent           int64     `json:"spent_units"`
	Remaining       int64     `json:"remaining_units"`
	Active          bool      `json:"active"`
	AllowedAdapters []string  `json:"allowed_adapters"`
}

// SessionService reads on-chain session state. The chain stays authoritative;
// a cache row is refreshed on every read to serve audit queries.
type SessionService struct {
	lookup  policy.SessionLookup
	queries db.Querier
	now     func() time.Time
}

// NewSessionService creates a session read service.
func NewSessionService(lookup policy.SessionLookup, queries db.Querier, now func() time.Time) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{lookup: lookup, queries: queries, now: now}
}

// Status resolves a session snapshot and its derived status.
func (s *SessionService) Status(ctx context.Context, sessionID string) (*SessionStatusView, error) {
	snap, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %s: %w", sessionID, err)
	}

	view := &SessionStatusView{
		SessionID: sessionID,
		Status:    string(snap.Status(s.now())),
		Owner:     snap.Owner.Hex(),
		Executor:  snap.Executor.Hex(),
		ExpiresAt: snap.ExpiresAt,
		MaxSpend:  snap.MaxSpend,
		Spent:     snap.Spent,
		Remaining: snap.MaxSpend - snap.Spent,
		Active:    snap.Active,
	}
	for _, a := range snap.AllowedAdapters {
		view.AllowedAdapters = append(view.AllowedAdapters, a.Hex())
	}

	s.refreshCache(ctx, sessionID, snap)

	return view, nil
}

// refreshCache is best-effort; a failed write never fails the read.
func (s *SessionService) refreshCache(ctx context.Context, sessionID string, snap *chain.SessionSnapshot) {
	if _, err := s.queries.UpsertSessionCache(ctx, db.UpsertSessionCacheParams{
		SessionID: sessionID,
		Owner:     snap.Owner.Hex(),
		Executor:  snap.Executor.Hex(),
		ExpiresAt: snap.ExpiresAt,
		MaxSpend:  snap.MaxSpend,
		Spent:     snap.Spent,
		Active:    snap.Active,
	}); err != nil {
		logger.Warn("Failed to refresh session cache",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
