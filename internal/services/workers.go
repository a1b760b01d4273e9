package services

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/funding"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/metrics"
)

// QueueJanitor prunes terminal queue entries past the retention window so
// the idempotency table stays bounded.
type QueueJanitor struct {
	queries   db.Querier
	retention time.Duration
	interval  time.Duration
}

// NewQueueJanitor creates a janitor over the queue table.
func NewQueueJanitor(queries db.Querier, retention, interval time.Duration) *QueueJanitor {
	return &QueueJanitor{queries: queries, retention: retention, interval: interval}
}

// Run sweeps until the context is cancelled.
func (j *QueueJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-j.retention)
			pruned, err := j.queries.PruneQueueEntries(ctx, cutoff)
			if err != nil {
				logger.Error("Queue prune failed", zap.Error(err))
				continue
			}
			if pruned > 0 {
				logger.Info("Pruned queue entries",
					zap.Int64("pruned", pruned),
					zap.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// BalanceWatcher keeps the relayer funded between requests. It gauges the
// balance for dashboards and sweeps a top-up before the ladder has to do it
// on a user's critical path.
type BalanceWatcher struct {
	reader    funding.BalanceReader
	source    funding.GasSource // nil reduces the watcher to a metrics gauge
	relayer   Relayer
	threshold *big.Int
	target    *big.Int
	interval  time.Duration
}

// NewBalanceWatcher creates the relayer balance watcher.
func NewBalanceWatcher(reader funding.BalanceReader, source funding.GasSource, relayer Relayer, threshold, target *big.Int, interval time.Duration) *BalanceWatcher {
	return &BalanceWatcher{
		reader:    reader,
		source:    source,
		relayer:   relayer,
		threshold: threshold,
		target:    target,
		interval:  interval,
	}
}

// Run polls until the context is cancelled.
func (w *BalanceWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *BalanceWatcher) sweep(ctx context.Context) {
	balance, err := w.reader.NativeBalance(ctx, w.relayer.Address())
	if err != nil {
		logger.Warn("Relayer balance read failed", zap.Error(err))
		return
	}

	balanceFloat, _ := new(big.Float).SetInt(balance).Float64()
	metrics.RelayerBalanceWei.Set(balanceFloat)

	if w.source == nil || balance.Cmp(w.threshold) >= 0 {
		return
	}

	shortfall := new(big.Int).Sub(w.target, balance)
	txHash, err := w.source.Transfer(ctx, w.relayer.Address(), shortfall)
	if err != nil {
		logger.Warn("Proactive relayer top-up failed", zap.Error(err))
		return
	}
	logger.Info("Proactive relayer top-up submitted",
		zap.String("tx_hash", txHash.Hex()),
		zap.String("shortfall_wei", shortfall.String()),
	)
}
