// Package main is the entry point for the metric query server. It serves the
// explore, query and CSV export API over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"metricql/internal/app"
	"metricql/internal/config"
	internaldb "metricql/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	writeDB, readDB, err := internaldb.OpenStore(cfg.MetaDBPath, 0)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer writeDB.Close()
	defer readDB.Close()

	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()
	if err := application.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           application.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metric query server listening",
		"addr", cfg.ListenAddr,
		"warehouse", cfg.Warehouse.Type,
		"try", exploresCurlHint(cfg.ListenAddr, cfg.UserIDHeader, cfg.TLSCertFile != ""))

	if cfg.TLSCertFile != "" {
		err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// exploresCurlHint returns a curl command listing the explores of a project
// on a server listening at addr. Wildcard and empty hosts become localhost.
func exploresCurlHint(addr, userHeader string, tls bool) string {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	host := "localhost:8080"
	if addr = strings.TrimSpace(addr); addr != "" {
		host = addr
		if h, port, err := net.SplitHostPort(addr); err == nil {
			if h == "" || h == "0.0.0.0" || h == "::" {
				h = "localhost"
			}
			host = net.JoinHostPort(h, port)
		}
	}
	return fmt.Sprintf("curl -H '%s: <user>' %s://%s/api/v1/projects/<project>/explores", userHeader, scheme, host)
}
