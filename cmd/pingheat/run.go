package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wellsgz/pingheat/internal/api"
	"github.com/wellsgz/pingheat/internal/collector"
	"github.com/wellsgz/pingheat/internal/config"
	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/logging"
	"github.com/wellsgz/pingheat/internal/replay"
	"github.com/wellsgz/pingheat/internal/storage"
	"github.com/wellsgz/pingheat/internal/sysstat"
	"github.com/wellsgz/pingheat/internal/tui"
)

func newRunCmd() *cobra.Command {
	var (
		withTUI bool
		noAPI   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe every target and serve the dashboard and API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tui") {
				cfg.Server.EnableTUI = withTUI
			}
			if noAPI {
				cfg.Server.EnableAPI = false
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&withTUI, "tui", false, "show the terminal dashboard (overrides server.enable_tui)")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "do not start the HTTP API")
	return cmd
}

// setupLogging applies the log section. The dashboard owns the terminal, so
// with the TUI enabled log lines only go to the file.
func setupLogging(cfg *config.Config) io.Closer {
	logging.SetFormat(logging.Format(cfg.Log.Format))

	file := cfg.Log.File
	if file == "" && cfg.Server.EnableTUI {
		file = filepath.Join(cfg.Global.DataDir, "pingheat.log")
	}
	if file == "" {
		return nil
	}

	var console io.Writer = os.Stderr
	if cfg.Server.EnableTUI {
		console = nil
	}
	return logging.SetupFile(file, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, console)
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if closer := setupLogging(cfg); closer != nil {
		defer closer.Close()
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}
	policy, err := replay.ParseFinalBucketPolicy(cfg.Heatmap.FinalBucket)
	if err != nil {
		return err
	}

	var opts []collector.Option
	if cfg.Storage.RRD.Enabled {
		rrdStore, err := storage.NewRRDStorage(storage.RRDOptions{
			Dir:         filepath.Join(cfg.Global.DataDir, "rrd"),
			Step:        cfg.Global.Interval,
			Retention:   cfg.Storage.RRD.Retention,
			XFF:         cfg.Storage.RRD.XFF,
			Aggregation: cfg.Storage.RRD.Aggregation,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize RRD storage: %w", err)
		}
		opts = append(opts, collector.WithMirror(rrdStore))
	}

	mem := storage.NewMemoryBuffer(cfg.Global.ElementCount)
	coll, err := collector.NewCollector(cfg, mem, opts...)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	store := heatmap.NewStore()
	refresher := replay.NewRefresher(
		replay.NewAggregator(loc, policy),
		afero.NewOsFs(),
		cfg.Global.DataDir,
		store,
		cfg.Heatmap.RefreshInterval,
	)
	cpu := sysstat.NewCPUStats(nil, 0)

	log.Printf("[Main] Monitoring %d targets, logs in %s", len(cfg.Targets), cfg.Global.DataDir)
	coll.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return cpu.Run(gctx) })

	if cfg.Server.EnableAPI {
		server := api.NewServer(cfg)
		server.Handler().SetCollector(coll)
		server.Handler().SetHeatmap(store, refresher)
		server.Handler().SetCPU(cpu)
		server.Hub().SetCollector(coll)
		g.Go(func() error { return server.Run(gctx, cfg.Server.Address) })
	}

	if cfg.Server.EnableTUI {
		apiAddr := ""
		if cfg.Server.EnableAPI {
			apiAddr = cfg.Server.Address
		}
		samples := coll.Subscribe()
		g.Go(func() error {
			// Quitting the dashboard ends the process
			defer stop()
			defer coll.Unsubscribe(samples)
			return tui.Run(gctx, coll, tui.Options{
				Samples: samples,
				Store:   store,
				CPU:     cpu,
				APIAddr: apiAddr,
			})
		})
	}

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Printf("[Main] Shutting down after error: %v", runErr)
	} else {
		runErr = nil
		log.Println("[Main] Shutting down...")
	}

	// Stop flushes every buffered log record
	if err := coll.Stop(); err != nil {
		logging.Error("Main", "Failed to flush logs", err)
		return errors.Join(runErr, err)
	}
	return runErr
}
