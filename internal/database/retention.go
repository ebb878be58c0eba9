package database

import (
	"context"
	"time"
)

// RetentionResult reports how many rows a retention sweep removed from
// each tier it touched.
type RetentionResult struct {
	HotPruned  int64
	WarmPruned int64
}

// EnforceRetention deletes hot-tier rows older than hotRetention and
// warm-tier rows older than warmRetention. It does not move rows between
// tiers — the tiered storage facade writes each reading to its target tier
// directly at ingest time, so a row already past its tier's retention
// window is simply stale and safe to drop here.
func (db *DB) EnforceRetention(ctx context.Context, now time.Time, hotRetention, warmRetention time.Duration) (RetentionResult, error) {
	hotCutoff := now.Add(-hotRetention).Unix()
	warmCutoff := now.Add(-warmRetention).Unix()

	hotPruned, err := db.PruneHotOlderThan(ctx, hotCutoff)
	if err != nil {
		return RetentionResult{}, err
	}

	warmPruned, err := db.PruneWarmOlderThan(ctx, warmCutoff)
	if err != nil {
		return RetentionResult{HotPruned: hotPruned}, err
	}

	if hotPruned > 0 || warmPruned > 0 {
		db.log.Info().
			Int64("hot_pruned", hotPruned).
			Int64("warm_pruned", warmPruned).
			Msg("retention sweep complete")
	}

	return RetentionResult{HotPruned: hotPruned, WarmPruned: warmPruned}, nil
}
