package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bighogz/Kirana-Predict/internal/bootstrap"
	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/logging"
	"github.com/bighogz/Kirana-Predict/internal/telemetry"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, os.Stderr)

	tracer, shutdownTracing, err := telemetry.Setup(cfg.TraceStdout, os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("tracing setup failed")
	}
	defer shutdownTracing(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, backend, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("could not open sales store")
	}
	defer st.Close()

	s := newServer(cfg, st, backend, bootstrap.OpenCache(ctx, cfg, log), log, tracer)
	go s.startupRefresh()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.Port).Info("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server stopped")
	}
}
