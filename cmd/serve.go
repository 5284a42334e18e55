package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/brainspark/engine/internal/analytics"
	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/config"
	"github.com/brainspark/engine/internal/grading"
	"github.com/brainspark/engine/internal/llm"
	"github.com/brainspark/engine/internal/logger"
	"github.com/brainspark/engine/internal/mastery"
	"github.com/brainspark/engine/internal/ratelimit"
	"github.com/brainspark/engine/internal/server"
	"github.com/brainspark/engine/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	dbPath := cfg.DBPath
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		dbPath = p
	}
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return err
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	provider, err := llm.NewProvider(cmd.Context(), cfg.LLM, st)
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}

	grader := grading.NewGrader(provider, grading.GraderConfig{
		MaxTokens:          2048,
		Temperature:        0.2,
		CorrectThreshold:   cfg.Grading.CorrectThreshold,
		IncorrectThreshold: cfg.Grading.IncorrectThreshold,
	})
	orchestrator := grading.NewOrchestrator(st, grader, st, st, log).
		WithDefaultLatency(cfg.Grading.DefaultLatencyMs)

	aggregator := analytics.NewAggregator(st, cfg.Location(), log)
	masterySvc := mastery.NewService(st, cfg.Bands, cfg.Decay)

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit, time.Minute)
	}

	srv := server.New(server.Options{
		Orchestrator: orchestrator,
		Aggregator:   aggregator,
		Mastery:      masterySvc,
		Verifier:     verifier,
		Limiter:      limiter,
		Log:          log,
		Version:      version,
		Mode:         cfg.Mode,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, cfg.Addr)
}
