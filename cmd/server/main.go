package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lawchat/internal/app"
	"lawchat/internal/bootstrap"
	httptransport "lawchat/internal/transport/http"
	"lawchat/internal/transport/http/handler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Error("close resources failed", "error", err)
		}
	}()

	go a.Registry.Run(ctx, time.Minute)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Config:   a.Config,
		Registry: a.Registry,
		Admin:    func(token string) app.AdminAPI { return a.Backend.Admin(token) },
		Health:   handler.NewHealthHandler(a.HealthInfo(), a.HealthChecks()...),
		Logger:   a.Logger,
	})
	server := &http.Server{
		Addr:              a.Config.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info("gateway starting", "addr", server.Addr, "backend", a.Config.Backend.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown failed", "error", err)
	}
}
