package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/remiges-tech/batchsched/config"
	"github.com/remiges-tech/batchsched/logger"
	"github.com/remiges-tech/batchsched/metrics"
	"github.com/remiges-tech/batchsched/service"
)

func main() {
	os.Exit(run())
}

// run wires the scheduler and blocks until shutdown, returning the process
// exit code from spec §6: 0 clean shutdown, 1 fatal configuration error,
// 2 port-bind failure.
func run() int {
	log := logger.LoadLogger("batchsched")

	cfg, err := config.Load(".")
	if err != nil {
		log.Log(fmt.Sprintf("fatal configuration error: %v", err))
		return 1
	}

	m := metrics.NewPrometheusMetrics()

	svc, err := service.New(cfg, log, m)
	if err != nil {
		log.Log(fmt.Sprintf("fatal configuration error: %v", err))
		return 1
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Log(fmt.Sprintf("failed to bind %s: %v", addr, err))
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	httpServer := &http.Server{Handler: svc.Router}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Log(fmt.Sprintf("http server error: %v", err))
		}
	}()

	log.Log(fmt.Sprintf("listening on %s", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Log("shutdown signal received, draining")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	svc.Drain(cfg.Server.ShutdownTimeout)

	log.Log("shutdown complete")
	return 0
}
