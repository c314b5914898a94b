package loadcheck

import (
	"context"
	"fmt"

	"github.com/okian/clickrank/internal/domain/types"
)

// verifyCount holds when the counter grew by exactly the successful visits.
// Other traffic against the same server during the run breaks this.
func verifyCount(stats *Stats) error {
	delta := stats.CountAfter - stats.CountBefore
	if delta != int64(stats.VisitsOK) {
		return fmt.Errorf("%w: delta %d, successful visits %d", ErrCountMismatch, delta, stats.VisitsOK)
	}
	return nil
}

// verifyScores checks that every fresh visitor scored exactly one click.
func verifyScores(ctx context.Context, scores ScoreReader, visits []Visit, stats *Stats) error {
	var first error
	for _, v := range visits {
		score, ok, err := scores.ZScore(ctx, types.LeaderboardKey, v.ID)
		if err != nil {
			return fmt.Errorf("read score for %s: %w", v.ID, err)
		}
		stats.ScoresChecked++
		if !ok || score != 1 {
			stats.ScoresMismatch++
			if first == nil {
				first = fmt.Errorf("%w: %s has %v (present=%t)", ErrScoreMismatch, v.ID, score, ok)
			}
		}
	}
	return first
}
