package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/christoofar/FogLAMP/internal/config"
	"github.com/christoofar/FogLAMP/internal/handlers"
	"github.com/christoofar/FogLAMP/internal/ingest"
	"github.com/christoofar/FogLAMP/internal/server"
	"github.com/christoofar/FogLAMP/internal/services"
	"github.com/christoofar/FogLAMP/internal/store"
	"github.com/christoofar/FogLAMP/internal/store/migrations"
	"github.com/christoofar/FogLAMP/pkg/management"
	"github.com/christoofar/FogLAMP/pkg/scheduler"
)

var version = "v0.0.0"

func main() {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "foglamp-south",
		Short:        "FogLAMP south service: sensor readings ingest and storage",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the configuration file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingest service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgFile)
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Run: func(cmd *cobra.Command, args []string) {
			color.Green("foglamp-south %s", version)
		},
	}
	rootCmd.AddCommand(runCmd, versionCmd)

	pflag.CommandLine.AddFlagSet(rootCmd.PersistentFlags())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}
	defer zap.L().Sync() //nolint:errcheck

	log := zap.S().Named("south")
	log.Infow("starting service", "service", cfg.Service.Name, "plugin", cfg.Service.Plugin)

	db, err := store.NewDB(store.DSNFromEnv())
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrations.Run(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate storage schema: %w", err)
	}
	st := store.NewStore(db)
	defer st.Close()

	mgmt, err := management.NewClient(cfg.Management.URL, cfg.Management.TokenFile)
	if err != nil {
		return err
	}

	engine := ingest.New(st, mgmt, ingest.Config{
		Timeout:     cfg.QueueTimeout(),
		Threshold:   cfg.Queue.Threshold,
		Requeue:     cfg.Queue.Requeue,
		ServiceName: cfg.Service.Name,
		PluginName:  cfg.Service.Plugin,
	})
	if err := engine.LoadFilters(ctx, cfg.Service.Name); err != nil {
		// A filter that fails to initialize is fatal; a half-built
		// pipeline must not ingest.
		return err
	}
	engine.Start(ctx)

	pool := scheduler.NewScheduler(cfg.NumWorkers)
	purgeSrv := services.NewPurgeService(st, pool,
		cfg.Purge.AgeSeconds, cfg.PurgeFlags(), cfg.PurgeInterval(), nil)
	purgeSrv.Start()

	readingSrv := services.NewReadingService(st)
	handler := handlers.New(readingSrv, purgeSrv)
	srv := server.NewServer(cfg.Server, handler.RegisterRoutes)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Errorw("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Errorw("http server shutdown failed", "error", err)
	}
	engine.Shutdown(shutdownCtx)
	pool.Close()
	log.Infow("service stopped")
	return nil
}

func setupLogger(cfg *config.Configuration) error {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}
