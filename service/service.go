// Package service wires together the scheduler's components — config,
// auth, queue, task store, engine adapter, batcher, dispatcher, stats and
// router — into a single explicit value, replacing the package-level
// global state a naive port of the teacher's wiring would otherwise carry.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/remiges-tech/batchsched/auth"
	"github.com/remiges-tech/batchsched/batch"
	"github.com/remiges-tech/batchsched/config"
	"github.com/remiges-tech/batchsched/engine"
	"github.com/remiges-tech/batchsched/internal/webservices/inference"
	"github.com/remiges-tech/batchsched/logger"
	"github.com/remiges-tech/batchsched/metrics"
	"github.com/remiges-tech/batchsched/queue"
	"github.com/remiges-tech/batchsched/router"
	"github.com/remiges-tech/batchsched/stats"
	"github.com/remiges-tech/batchsched/taskstore"
)

// Service holds every collaborator the scheduler's HTTP surface needs to
// handle a request: no package in this module reaches for global state, an
// http.Handler closes over a *Service instead.
type Service struct {
	Config      *config.Config
	Logger      logger.Logger
	Router      *gin.Engine
	Issuer      *auth.Issuer
	AuthMW      *router.AuthMiddleware
	Credentials auth.CredentialStore
	Queue       *queue.Queue
	TaskStore   *taskstore.Store
	Stats       *stats.Collector
	Engine      engine.Adapter
	Dispatcher  *batch.Dispatcher
	Batcher     *batch.Batcher
}

// New builds a fully wired Service from cfg. It does not start the Batcher
// loop or bind a listener; callers (typically cmd/server) do that once
// routes are registered.
func New(cfg *config.Config, log logger.Logger, m metrics.Metrics) (*Service, error) {
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecretKey, cfg.Auth.JWTAlgorithm, cfg.Auth.JWTExpirationMinutes)
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}
	credentials := auth.NewStaticCredentialStore(cfg.Auth.Users)

	q := queue.New(cfg.Queue.MaxDepth)
	store := taskstore.NewStore(cfg.TaskStore.RetentionSeconds, cfg.TaskStore.MaxRetained)
	collector := stats.New(m)

	adapter, err := buildEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("build engine adapter: %w", err)
	}

	dispatcher := batch.NewDispatcher(adapter, store, collector, log, cfg.Batch.MaxConcurrentBatches)
	batcher := batch.NewBatcher(q, store, dispatcher, log, cfg.Batch.MaxBatchSize, cfg.Batch.BatchWaitTimeout)

	authMiddleware := router.NewAuthMiddleware(issuer, log)
	r, err := router.SetupRouter(log)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	// Exposes the counters/gauges/histograms recorded through collector's
	// stats.Collector -> metrics.Metrics chain for Prometheus to scrape.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	inference.RegisterRoutes(r, inference.Deps{
		Issuer:      issuer,
		AuthMW:      authMiddleware,
		Credentials: credentials,
		Queue:       q,
		TaskStore:   store,
		Stats:       collector,
		Dispatcher:  dispatcher,
		Engine:      adapter,
		Logger:      log,
		Config:      cfg,
	})

	return &Service{
		Config:      cfg,
		Logger:      log,
		Router:      r,
		Issuer:      issuer,
		AuthMW:      authMiddleware,
		Credentials: credentials,
		Queue:       q,
		TaskStore:   store,
		Stats:       collector,
		Engine:      adapter,
		Dispatcher:  dispatcher,
		Batcher:     batcher,
	}, nil
}

func buildEngine(cfg *config.Config) (engine.Adapter, error) {
	if !cfg.Engine.UseRealVLLM {
		return engine.NewMockAdapter(), nil
	}
	if cfg.Engine.RealVLLMURL == "" {
		return nil, fmt.Errorf("engine.real_vllm_url is required in real mode")
	}
	return engine.NewRealAdapter(cfg.Engine.RealVLLMURL, cfg.Engine.RealVLLMModel, cfg.Engine.RequestTimeout, false), nil
}

// Start runs the Batcher's formation loop until ctx is cancelled. It is
// meant to be launched in its own goroutine by the caller.
func (s *Service) Start(ctx context.Context) {
	s.Batcher.Run(ctx)
}

// Drain marks every task still queued as failed with reason "shutdown",
// giving in-flight batches up to grace to settle through the Dispatcher
// before the process exits. It does not attempt to cancel batches already
// dispatched; those run to completion or timeout on their own.
func (s *Service) Drain(grace time.Duration) {
	deadline := time.Now().Add(grace)
	for _, t := range s.TaskStore.List("", math.MaxInt) {
		if t.Status != taskstore.StatusQueued {
			continue
		}
		_ = s.TaskStore.Transition(t.TaskID, taskstore.StatusQueued, taskstore.StatusFailed, func(task *taskstore.Task) {
			task.CompletedAt = time.Now()
			task.Error = "shutdown"
		})
	}
	if remaining := time.Until(deadline); remaining > 0 {
		time.Sleep(remaining)
	}
}
