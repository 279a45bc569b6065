package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/symphovais/voicepipe/pkg/config"
	"github.com/symphovais/voicepipe/pkg/control"
	"github.com/symphovais/voicepipe/pkg/dictation"
	"github.com/symphovais/voicepipe/pkg/guard"
	"github.com/symphovais/voicepipe/pkg/history"
	"github.com/symphovais/voicepipe/pkg/metrics"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/runner"
)

// shutdownGrace bounds the drain of in-flight HTTP requests and queued
// runs after SIGINT or SIGTERM.
const shutdownGrace = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the dictation daemon",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := newConsoleLogger(level)

	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	store, closeStore, err := newHistoryStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	store = history.InstrumentStore(store, cfg.History.Backend, reg)

	sweeper, err := history.NewSweeper(history.SweeperConfig{
		Store:    store,
		Keep:     cfg.History.Keep,
		Schedule: cfg.History.Sweep,
		OnSweep: func(removed int) {
			if removed > 0 {
				log.Infof("history sweep removed %d records", removed)
			}
		},
		OnError: func(err error) {
			log.Warnf("history sweep: %v", err)
		},
	})
	if err != nil {
		return err
	}

	gd, err := guard.New(cfg.GuardConfig())
	if err != nil {
		return err
	}

	runCfg := runner.InstrumentConfig(cfg.RunnerConfig(), dictation.PipelineName, reg)
	workers, err := runner.New(runCfg)
	if err != nil {
		return err
	}

	dcfg := cfg.DictationConfig()
	dcfg.Metrics = reg
	dcfg.Pipeline = pipeline.Config{
		OnRunStart: func(runID string, stages int) {
			log.Debugf("run %s started with %d stages", runID, stages)
		},
		OnRetry: func(runID string, stage pipeline.Stage, attempt int, wait time.Duration) {
			log.Warnf("run %s stage %s attempt %d failed, retrying in %s",
				runID, stage.Name(), attempt, wait)
		},
		OnRunComplete: func(result *pipeline.Result) {
			d := result.Duration.Round(time.Millisecond)
			switch {
			case result.Canceled:
				log.Warnf("run %s canceled after %s", result.RunID, d)
			case result.IsSuccess:
				log.Infof("run %s finished in %s", result.RunID, d)
			default:
				log.Errorf("run %s failed at %s: %s",
					result.RunID, result.FailedStage, result.ErrorMessage)
			}
		},
	}
	pipe, err := dictation.New(dcfg)
	if err != nil {
		return err
	}

	srv, err := control.New(control.Config{
		Addr:     cfg.Listen,
		Pipeline: pipe,
		Runner:   workers,
		Guard:    gd,
		Store:    store,
		Metrics:  reg,
		Gatherer: promReg,
		AudioKey: dictation.KeyAudio,
		TextKey:  dictation.KeyText,
		OnError: func(err error) {
			log.Warnf("%v", err)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sweeper.Start()
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("voicepiped %s listening on %s (history: %s)",
			version, srv.Addr(), cfg.History.Backend)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()

		graceCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
		defer done()
		if err := srv.Shutdown(graceCtx); err != nil {
			log.Warnf("server shutdown: %v", err)
		}

		if n := workers.Active() + workers.QueueDepth(); n > 0 {
			log.Infof("draining %d runs", n)
		}
		select {
		case <-workers.Shutdown():
		case <-graceCtx.Done():
			log.Warnf("gave up waiting for in-flight runs")
		}
		return nil
	})

	err = g.Wait()
	log.Infof("voicepiped stopped")
	return err
}

// newHistoryStore builds the configured history backend. The returned
// cleanup closes the store and, for Redis, its client connection.
func newHistoryStore(cfg config.Config) (history.Store, func(), error) {
	if cfg.History.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.History.Redis.Addr,
			Password: cfg.History.Redis.Password,
			DB:       cfg.History.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.History.Redis.Addr, err)
		}

		store, err := history.NewRedisStore(history.RedisConfig{
			Redis:  client,
			Prefix: cfg.History.Redis.Prefix,
			TTL:    cfg.History.Redis.TTL.Duration(),
		})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			client.Close()
		}, nil
	}

	store := history.NewMemoryStore(cfg.History.Capacity)
	return store, func() { store.Close() }, nil
}
