package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathomsearch/fathom/internal/adapters"
	"github.com/fathomsearch/fathom/internal/api"
	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/buildinfo"
	"github.com/fathomsearch/fathom/internal/config"
	"github.com/fathomsearch/fathom/internal/executor"
	"github.com/fathomsearch/fathom/internal/fuse"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/orchestrator"
	"github.com/fathomsearch/fathom/internal/registry"
	"github.com/fathomsearch/fathom/internal/rescache"
	"github.com/fathomsearch/fathom/internal/telemetry"
)

func main() {
	log.Printf("fathom %s (%s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	// 1. Load and validate environment config.
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 2. Optional config file: fusion weights and per-lane overrides.
	fileCfg, err := config.LoadFileConfig(envCfg.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 3. Resolve lane configs: defaults → file overrides → key gate.
	laneCfgs := registry.DefaultConfigs(envCfg)
	if err := registry.ApplyFileOverrides(laneCfgs, fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if err := registry.ApplyKeyGate(laneCfgs, envCfg); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	reg := registry.New(laneCfgs)

	// 4. Wire the retrieval pipeline.
	settings := make(map[lane.ID]breaker.Settings, len(laneCfgs))
	for id, cfg := range reg.Configs() {
		settings[id] = breaker.Settings{MaxFailures: cfg.MaxFailures, Cooldown: cfg.Cooldown}
	}
	tel := telemetry.New()
	br := breaker.New(breaker.Config{
		Settings: settings,
		OnTransition: func(tr breaker.Transition) {
			log.Printf("[breaker] %s: %s -> %s", tr.Lane, tr.From, tr.To)
			tel.ObserveBreakerTransition(tr.Lane, string(tr.From), string(tr.To))
		},
	})
	cache := rescache.New(envCfg.CacheCapacity)
	defer cache.Close()

	client := adapters.NewClient("fathom/" + buildinfo.Version)
	exec := executor.New(executor.Config{
		Registry:  reg,
		Breaker:   br,
		Cache:     cache,
		Telemetry: tel,
		Adapters:  adapters.Build(envCfg, reg.Configs(), client),
	})

	fusedCap := envCfg.FusedCap
	if fileCfg.FusedCap != nil {
		fusedCap = *fileCfg.FusedCap
	}
	orch := orchestrator.New(orchestrator.Config{
		Registry:     reg,
		Breaker:      br,
		Executor:     exec,
		Telemetry:    tel,
		Weights:      fuse.WeightsFromFile(fileCfg.Weights),
		RetrievalCap: envCfg.GlobalBudget,
		FusedCap:     fusedCap,
	})

	// 5. Warm the lanes in the background.
	warmup := orchestrator.NewWarmup(exec, reg)
	if err := warmup.Start(context.Background(), envCfg.WarmupSchedule); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 6. Create and start the API server.
	srv := api.NewServer(api.ServerConfig{
		ListenAddress: envCfg.ListenAddress,
		Port:          envCfg.Port,
		APIToken:      envCfg.APIToken,
		MaxBodyBytes:  int64(envCfg.APIMaxBodyBytes),
		Orchestrator:  orch,
		Warmup:        warmup,
		Registry:      reg,
		Breaker:       br,
		Telemetry:     tel,
	})
	go func() {
		log.Printf("fathom API server starting on %s:%d", envCfg.ListenAddress, envCfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// 7. Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down...", sig)

	warmup.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
