package reservations

import (
	"context"
	"math/rand/v2"
	"time"
)

// backoffCeiling is base*2^(attempt-1), capped at max.
func backoffCeiling(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// fullJitter picks a delay uniformly in [0, ceiling].
func fullJitter(attempt int, base, max time.Duration) time.Duration {
	ceiling := backoffCeiling(attempt, base, max)
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
