package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/leakcoach/pkg/logger"
	"github.com/okian/leakcoach/pkg/metrics"
)

const defaultRefillWorkers = 4

// RefillIdle builds a batch for every learner with skills and an empty
// queue, using a fixed pool of workers. It returns the number of batches
// created; per-learner failures are logged and skipped.
func (s *Service) RefillIdle(ctx context.Context) (int, error) {
	users, err := s.store.UsersWithoutPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("refill idle: %w", err)
	}

	jobs := make(chan string)
	var (
		built  atomic.Int64
		failed atomic.Int64
		wg     sync.WaitGroup
	)
	workers := min(s.workers, len(users))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for u := range jobs {
				sum, err := s.BuildQueue(ctx, u)
				if err != nil {
					failed.Add(1)
					s.logger.Error(ctx, "refill build failed",
						logger.Int("worker", id), logger.String("user", u), logger.Error(err))
					continue
				}
				if sum.CreatedCount > 0 {
					built.Add(1)
				}
			}
		}(i)
	}

feed:
	for _, u := range users {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- u:
		}
	}
	close(jobs)
	wg.Wait()

	n := int(built.Load())
	metrics.RecordRefillRun(n)
	s.logger.Info(ctx, "refill finished",
		logger.Int("learners", len(users)),
		logger.Int("batches", n),
		logger.Int("failed", int(failed.Load())),
	)
	if err := ctx.Err(); err != nil {
		return n, fmt.Errorf("refill idle: %w", err)
	}
	return n, nil
}
