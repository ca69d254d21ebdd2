package fulfillment

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/retry"
)

// FetchReport is the per-item outcome of a batch fetch: successes are kept
// even when some bookings fail.
type FetchReport struct {
	Bookings []booking.Booking
	Failed   map[string]error
}

const defaultFetchConcurrency = 10

// FetchAll loads many bookings with bounded concurrency. Each fetch retries
// transient failures on the shared retry policy (two retries, 1s then 2s);
// ErrNotFound is terminal. The report lists which ids failed and why.
func (s *Service) FetchAll(ctx context.Context, ids []string) (FetchReport, error) {
	limit := s.FetchConcurrency
	if limit <= 0 {
		limit = defaultFetchConcurrency
	}

	policy := retry.Default
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, booking.ErrNotFound)
	}

	var mu sync.Mutex
	found := make(map[string]booking.Booking, len(ids))
	failed := map[string]error{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			var b booking.Booking
			err := policy.Do(gctx, func(ctx context.Context) error {
				var ferr error
				b, ferr = s.Repo.Get(ctx, id)
				return ferr
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
				return nil // partial failure, keep going
			}
			found[id] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FetchReport{}, err
	}

	report := FetchReport{Failed: failed}
	for _, id := range ids {
		if b, ok := found[id]; ok {
			report.Bookings = append(report.Bookings, b)
		}
	}
	return report, nil
}
