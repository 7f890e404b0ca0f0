package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/holon-run/buildbridge/pkg/log"
	"github.com/holon-run/buildbridge/pkg/status"
	"github.com/holon-run/buildbridge/pkg/storage"
	"github.com/holon-run/buildbridge/pkg/webhook"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the HTTP server that receives GitHub pull request webhooks.

Endpoints:
  POST /webhook          GitHub webhook receiver
  GET  /healthz          liveness probe
  GET  /metrics          Prometheus metrics
  GET  /runs/{runId}     run status record
  GET  /runs/{runId}/logs  captured build output
  GET  /artifacts/...    published artifacts (local storage backend only)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}
		port, portSource := cfg.ResolvePort(servePort, os.Getenv)
		cfg.Server.Port = port

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{upload: true})
		if err != nil {
			return err
		}
		defer a.Close()

		hook, err := webhook.NewHandler(cfg.GitHub.WebhookSecret, a.pipeline)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           newRouter(a, hook),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server listening", "port", port, "source", portSource)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("server shutdown failed", "error", err)
			}
		}

		// Started runs are never cancelled.
		log.Info("waiting for running builds")
		hook.Wait()
		return nil
	},
}

func newRouter(a *app, hook http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/webhook", hook).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/runs/{runId}", runHandler(a.status)).Methods(http.MethodGet)
	r.HandleFunc("/runs/{runId}/logs", logsHandler(a.status)).Methods(http.MethodGet)

	if ds, ok := a.store.(*storage.DirStore); ok {
		r.PathPrefix("/artifacts/").Handler(http.StripPrefix("/artifacts", ds.Handler()))
	}

	r.Use(accessLog)
	return r
}

func runHandler(store status.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.Get(r.Context(), mux.Vars(r)["runId"])
		if errors.Is(err, status.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rec)
	}
}

func logsHandler(store status.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := store.Logs(r.Context(), mux.Vars(r)["runId"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if lines == nil {
			lines = []string{}
		}
		writeJSON(w, map[string][]string{"lines": lines})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Warn("failed to write response", "error", err)
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", m.Code, "bytes", m.Written, "duration", m.Duration.String())
	})
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen port (default: $PORT or 3000)")
	rootCmd.AddCommand(serveCmd)
}
