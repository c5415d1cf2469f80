package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"chatlytics/internal/config"
	"chatlytics/internal/etl"
	"chatlytics/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	go serveOps(cfg.MetricsAddr, log)

	c := dialTemporal(cfg, log)
	defer c.Close()

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.ActivityWorkers,
	})
	w.RegisterWorkflowWithOptions(etl.ETLWorkflow, workflow.RegisterOptions{Name: etl.WorkflowName})
	w.RegisterActivity(etl.NewActivities(cfg, log))

	log.Info().
		Str("task_queue", cfg.TaskQueue).
		Str("temporal", cfg.TemporalAddress).
		Int("activity_workers", cfg.ActivityWorkers).
		Msg("etl worker started")

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}

// serveOps exposes liveness and Prometheus metrics for the worker process.
func serveOps(addr string, log zerolog.Logger) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("ops endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("ops endpoint failed")
	}
}

// dialTemporal retries until the Temporal frontend is reachable, so the
// worker can start before the server in a compose stack.
func dialTemporal(cfg *config.Config, log zerolog.Logger) client.Client {
	backoff := 2 * time.Second
	for {
		c, err := client.Dial(client.Options{
			HostPort: cfg.TemporalAddress,
			Logger:   logging.NewTemporalAdapter(log),
		})
		if err == nil {
			return c
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("temporal not reachable yet")
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}
