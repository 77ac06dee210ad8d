package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/Morditux/memsession"
)

func main() {
	// The .env file is optional.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	envCfg, err := memsession.LoadEnvConfig()
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := envCfg.Config(ctx)
	if err != nil {
		logger.Error("failed to open snapshot backend", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.Logger = logger

	mgr := memsession.NewManager(cfg)
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("failed to close session manager", slog.Any("error", err))
		}
	}()

	if cfg.Snapshotter != nil {
		if err := mgr.Restore(ctx); err != nil {
			logger.Error("failed to restore sessions", slog.Any("error", err))
			return
		}
	}

	r := chi.NewRouter()
	r.Use(mgr.Middleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		session, err := mgr.EnsureSession(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		count, _ := session.GetInt("count")
		count++
		session.Set("count", count)

		fmt.Fprintf(w, "Hello! You have visited this page %d times.", count)
	})

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		session, err := mgr.Regenerate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		session.Set("user", r.FormValue("user"))
		fmt.Fprint(w, "Logged in!")
	})

	r.Get("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.Destroy(r); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "Logged out!")
	})

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", slog.Any("error", err))
	}
}
