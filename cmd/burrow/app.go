package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"burrow/internal/auth"
	"burrow/internal/config"
	"burrow/internal/routefile"
	"burrow/internal/router"
	"burrow/internal/server"
	"burrow/internal/sessions"
)

// app is everything serve builds from a config.
type app struct {
	root    *router.Router
	routes  *routefile.File
	store   sessions.Store
	limiter *auth.Limiter
	logger  *slog.Logger
}

// buildApp loads the route table and stacks sessions and authentication
// around it as configured. A missing route file is only fatal when one was
// asked for explicitly.
func buildApp(cfg *config.Config, routesExplicit bool, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	routes := router.New(logger)
	f, err := routefile.LoadInto(cfg.Routes.File, routes)
	switch {
	case err == nil:
		a.routes = f
		logger.Info("Loaded routes", "file", cfg.Routes.File, "count", len(f.Routes))
	case !routesExplicit && isNotExist(cfg.Routes.File):
		a.routes = &routefile.File{}
		logger.Warn("No route file, every request will get 404", "file", cfg.Routes.File)
	default:
		return nil, err
	}

	var h router.Handler = routes
	wrapped := false

	if cfg.Sessions.Enabled {
		store, err := openStore(cfg.Sessions, logger)
		if err != nil {
			return nil, err
		}
		a.store = store
		h = sessions.NewManager(store, cfg.Sessions.CookieName, logger).Wrap(h)
		wrapped = true
	}

	if cfg.Auth.UsersFile != "" {
		users, err := auth.LoadUsers(cfg.Auth.UsersFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		limiterCfg := auth.DefaultLimiterConfig()
		limiterCfg.AttemptsPerMinute = cfg.Auth.AttemptsPerMinute
		a.limiter = auth.NewLimiter(limiterCfg, logger)

		h, err = auth.Restrict(cfg.Auth.Pattern, cfg.Auth.Realm, users, h,
			auth.WithLimiter(a.limiter), auth.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, err
		}
		wrapped = true
		logger.Info("Basic auth enabled", "pattern", cfg.Auth.Pattern, "users", len(users))
	}

	if !wrapped {
		a.root = routes
	} else {
		a.root = router.New(logger)
		if err := a.root.AddRoute("^", h); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(cfg config.SessionsConfig, logger *slog.Logger) (sessions.Store, error) {
	ttl := sessions.WithTTL(time.Duration(cfg.TTLSeconds) * time.Second)
	switch cfg.Backend {
	case "sqlite":
		return sessions.OpenSQLite(cfg.Path, logger, ttl)
	case "memory", "":
		return sessions.NewMemoryStore(ttl), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// startBackground runs periodic maintenance until ctx is done.
func (a *app) startBackground(ctx context.Context) {
	a.limiter.StartCleanup(ctx)
	if a.store == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.store.Purge(ctx); err != nil {
					a.logger.Warn("Session purge failed", "error", err.Error())
				}
			}
		}
	}()
}

// Close releases the session store.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Closing session store failed", "error", err.Error())
		}
		a.store = nil
	}
}

// serverOptions converts the server and compression sections.
func serverOptions(cfg *config.Config) (server.Options, error) {
	opts := server.DefaultOptions()
	opts.Addr = cfg.Server.Addr
	opts.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond
	opts.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond
	opts.IdleTimeout = time.Duration(cfg.Server.IdleTimeoutMs) * time.Millisecond
	opts.KeepAlive = cfg.Server.KeepAlive
	opts.Compression = server.CompressionOptions{
		Enabled:  cfg.Compression.Enabled,
		MinBytes: cfg.Compression.MinBytes,
	}

	maxBody, err := config.ParseSize(cfg.Server.MaxBodyBytes)
	if err != nil {
		return opts, fmt.Errorf("server.maxBodyBytes: %w", err)
	}
	maxResponse, err := config.ParseSize(cfg.Server.MaxResponseBytes)
	if err != nil {
		return opts, fmt.Errorf("server.maxResponseBytes: %w", err)
	}
	chunk, err := config.ParseSize(cfg.Server.ReadChunkBytes)
	if err != nil {
		return opts, fmt.Errorf("server.readChunkBytes: %w", err)
	}
	opts.MaxBodyBytes = int64(maxBody)
	opts.MaxResponseBytes = int(maxResponse)
	opts.ReadChunkBytes = int(chunk)
	return opts, nil
}

func isNotExist(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}
