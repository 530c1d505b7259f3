package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/leakcoach/internal/config"
	"github.com/okian/leakcoach/pkg/logger"
)

// Default configuration constants.
const (
	defaultLearners = 50
	defaultSeed     = 1
	defaultTimeout  = 2 * time.Minute
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		learners = flag.Int("learners", defaultLearners, "Number of learners to generate")
		seedVal  = flag.Uint64("seed", defaultSeed, "Random seed")
		build    = flag.Bool("build", false, "Also build the first queue batch for every learner")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	log := logger.Named("seed")

	if err := run(ctx, cfg, *learners, *seedVal, *build, log); err != nil {
		log.Error(ctx, "seeding failed", logger.Error(err))
		return 1
	}
	return 0
}
