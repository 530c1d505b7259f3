package main

import (
	"context"
	"time"

	"github.com/okian/leakcoach/internal/adapters/repository"
	service "github.com/okian/leakcoach/internal/app"
	"github.com/okian/leakcoach/internal/config"
	"github.com/okian/leakcoach/internal/seed"
	"github.com/okian/leakcoach/pkg/logger"
)

func run(ctx context.Context, cfg *config.Config, learners int, seedVal uint64, build bool, log logger.Logger) error {
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, repository.WithMaxOpenConns(cfg.DBMaxOpenConns))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rows := 0
	for _, l := range seed.Generate(learners, seedVal, time.Now().UTC()) {
		for _, s := range l.Skills {
			if err := store.UpsertSkill(ctx, l.ID, s); err != nil {
				return err
			}
			rows++
		}
	}
	log.Info(ctx, "skills seeded", logger.Int("learners", learners), logger.Int("rows", rows))

	if !build {
		return nil
	}
	built, err := service.New(store, service.WithLogger(log)).RefillIdle(ctx)
	if err != nil {
		return err
	}
	log.Info(ctx, "queues built", logger.Int("batches", built))
	return nil
}
