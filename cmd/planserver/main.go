// File path: cmd/planserver/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nicodishanthj/planbuilder/internal/api"
	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/data/orchestrator"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("planserver: .env file not loaded", "error", err)
	} else {
		logger.Info("planserver: environment loaded from .env")
	}

	addr := flag.String("addr", defaultAddr(), "listen address")
	driver := flag.String("driver", "", "store driver (sqlite|mongo|memory); overrides PLANS_STORE_DRIVER")
	sqlitePath := flag.String("sqlite", "", "path to the SQLite database; overrides SQLITE_PATH")
	memoryPath := flag.String("memory", "", "path to the JSON-lines store; overrides PLANS_MEMORY_PATH")
	shutdownTimeout := flag.Duration("shutdown-timeout", 15*time.Second, "grace period for in-flight requests on shutdown")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchCfg, err := orchestrator.LoadConfig()
	if err != nil {
		logger.Error("planserver: orchestrator config load failed", "error", err)
		fmt.Println("orchestrator config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*driver); trimmed != "" {
		orchCfg.Driver = trimmed
	}
	if trimmed := strings.TrimSpace(*sqlitePath); trimmed != "" {
		orchCfg.SQLite.Path = trimmed
	}
	if trimmed := strings.TrimSpace(*memoryPath); trimmed != "" {
		orchCfg.MemoryPath = trimmed
	}
	cfg, err := api.LoadConfig()
	if err != nil {
		logger.Error("planserver: api config load failed", "error", err)
		fmt.Println("api config error:", err)
		os.Exit(1)
	}
	logger.Info("planserver: startup initiated", "addr", *addr, "driver", orchCfg.Driver, "collection", orchCfg.Collection)

	orch, err := orchestrator.New(ctx, orchCfg)
	if err != nil {
		logger.Error("planserver: orchestrator initialization failed", "error", err)
		fmt.Println("orchestrator error:", err)
		os.Exit(1)
	}
	defer func() {
		if err := orch.Close(); err != nil {
			logger.Error("planserver: store close failed", "error", err)
		}
	}()

	handler, err := api.NewServer(ctx, orch, &cfg)
	if err != nil {
		logger.Error("planserver: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("planserver: server listening", "addr", *addr, "api", "/api/", "health", "/healthz")
	logger.Info("planserver: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("planserver: server stopped", "error", err)
			fmt.Println("server stopped:", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("planserver: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("planserver: graceful shutdown failed", "error", err)
	}
}

func defaultAddr() string {
	if value := strings.TrimSpace(os.Getenv("PLANS_ADDR")); value != "" {
		return value
	}
	return ":8000"
}
