package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"burrow/internal/config"
	"burrow/internal/server"
	"burrow/internal/slogutil"
)

var (
	serveAddr   string
	serveRoutes string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start burrow with the routes from the route file. The server stops
gracefully on SIGINT or SIGTERM, letting in-flight requests finish.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveRoutes, "routes", "", "Route file (overrides routes.file)")
}

func runServe(cmd *cobra.Command, args []string) error {
	result, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := result.Config
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveRoutes != "" {
		cfg.Routes.File = serveRoutes
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOpts, err := logOptions(cfg)
	if err != nil {
		return err
	}
	logger, closer, err := slogutil.Open(logOpts)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	if result.ConfigPath != "" {
		logger.Info("Loaded config", "path", result.ConfigPath)
	}
	for _, ov := range result.EnvOverrides {
		logger.Debug("Environment override", "var", ov.EnvVar, "path", ov.Path)
	}

	a, err := buildApp(cfg, serveRoutes != "", logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := serverOptions(cfg)
	if err != nil {
		return err
	}
	srv := server.New(a.root, opts, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.startBackground(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverErr := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "burrow listening on %s\n", opts.Addr)
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", "error", err.Error())
			return err
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", "signal", sig.String())

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", "error", err.Error())
			return err
		}
		logger.Info("Server stopped gracefully")
	}

	return nil
}

func logOptions(cfg *config.Config) (slogutil.Options, error) {
	maxSize, err := config.ParseSize(cfg.Logging.MaxSize)
	if err != nil {
		return slogutil.Options{}, fmt.Errorf("logging.maxSize: %w", err)
	}
	opts := slogutil.Options{
		Format:     cfg.Logging.Format,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSize:    int64(maxSize),
		MaxBackups: cfg.Logging.MaxBackups,
	}
	if verbosity > 0 || quiet {
		opts.LevelValue = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	return opts, nil
}
