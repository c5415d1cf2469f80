package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"chatlytics/internal/config"
	"chatlytics/internal/extract"
	"chatlytics/internal/metrics"
	"chatlytics/internal/models"
	"chatlytics/internal/repository"
	"chatlytics/internal/source"
	"chatlytics/internal/spill"
	"chatlytics/internal/transform"
)

// Error types carried by non-retryable application errors. A failure of one
// of these kinds will not succeed on a replay, so the workflow fails fast
// instead of retrying.
const (
	errTypeExtractValidation   = "ExtractValidation"
	errTypeTransformValidation = "TransformValidation"
	errTypeLoadValidation      = "LoadValidation"
)

const loadCompleteNote = "ETL completed and all analytical tables refreshed"

// Activities hosts the four pipeline activities. One instance is registered
// on the worker; every method must be safe for concurrent invocations.
type Activities struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewActivities(cfg *config.Config, log zerolog.Logger) *Activities {
	return &Activities{cfg: cfg, log: log}
}

// Extract harvests every source resource into the raw NDJSON spill and
// returns its path. Health-check failures, a first-page failure on a global
// resource, and an empty harvest are non-retryable: none of them recover
// within a retry window.
func (a *Activities) Extract(ctx context.Context, runID string) (string, error) {
	log := a.log.With().Str("activity", "extract").Str("run_id", runID).Logger()

	client := source.NewClient(source.ClientConfig{
		BaseURL:           a.cfg.APIURL,
		Concurrency:       a.cfg.HTTPConcurrency,
		RequestTimeout:    a.cfg.RequestTimeout(),
		RetryTotal:        a.cfg.HTTPRetryTotal,
		RetryBackoff:      a.cfg.RetryBackoff(),
		RequestsPerSecond: a.cfg.RequestsPerSecond,
	}, log)
	pages := source.NewPaginator(client, a.cfg.MaxPageSize, log)

	path := spill.RawPath(a.cfg.SpillDir, runID)
	w, err := spill.NewWriter(path)
	if err != nil {
		return "", err
	}

	ex := extract.NewExtractor(client, pages, a.cfg.MaxChatMessageChats, a.cfg.HeartbeatEveryPages, log)
	ex.Heartbeat = func(p extract.Progress) {
		activity.RecordHeartbeat(ctx, p)
	}

	if err := ex.Run(ctx, w); err != nil {
		w.Close()
		switch {
		case errors.Is(err, source.ErrUnhealthy):
			return "", temporal.NewNonRetryableApplicationError(
				"extract validation failed: source API unhealthy", errTypeExtractValidation, err)
		case errors.Is(err, extract.ErrNoData):
			return "", temporal.NewNonRetryableApplicationError(
				"extract validation failed: no data", errTypeExtractValidation, err)
		case errors.Is(err, source.ErrFirstPage):
			return "", temporal.NewNonRetryableApplicationError(
				"extract validation failed: first page unavailable", errTypeExtractValidation, err)
		}
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("flush spill: %w", err)
	}

	log.Info().Str("path", path).Int64("rows", w.Rows()).Msg("raw spill written")
	return path, nil
}

// Transform streams the raw spill through the aggregator and writes the
// transformed document next to it. The input must be an NDJSON spill and the
// output must contain at least one user row; both gates are non-retryable.
func (a *Activities) Transform(ctx context.Context, rawPath string) (string, error) {
	log := a.log.With().Str("activity", "transform").Str("raw_path", rawPath).Logger()

	if !strings.HasSuffix(rawPath, "-raw.ndjson") {
		return "", temporal.NewNonRetryableApplicationError(
			"transform validation failed: input is not a raw spill", errTypeTransformValidation, nil)
	}
	outPath := strings.TrimSuffix(rawPath, "-raw.ndjson") + "-transformed.json"

	r, err := spill.OpenReader(rawPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	agg := transform.NewAggregator()
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("scan spill: %w", err)
		}
		if err := agg.Consume(rec); err != nil {
			return "", err
		}
		if agg.Rows()%a.cfg.HeartbeatEveryRows == 0 {
			activity.RecordHeartbeat(ctx, agg.Rows())
		}
	}
	if skipped := r.Skipped(); skipped > 0 {
		log.Warn().Int64("skipped", skipped).Msg("malformed spill lines dropped")
	}

	data := agg.Finalize()
	if len(data.UserStatistics) == 0 {
		return "", temporal.NewNonRetryableApplicationError(
			"transform validation failed: output empty", errTypeTransformValidation, nil)
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode transformed data: %w", err)
	}
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		return "", fmt.Errorf("write transformed data: %w", err)
	}

	log.Info().
		Str("path", outPath).
		Int64("rows", agg.Rows()).
		Int("users", len(data.UserStatistics)).
		Int("chats", len(data.ChatStatistics)).
		Msg("transform complete")
	return outPath, nil
}

// Load reads the transformed document and upserts every aggregate table in
// one transaction, then records the success row in etl_runs. The whole call
// is replay-safe: every write is an upsert on a natural PK.
func (a *Activities) Load(ctx context.Context, path string) (int, error) {
	log := a.log.With().Str("activity", "load").Str("path", path).Logger()
	startedAt := time.Now()

	doc, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read transformed data: %w", err)
	}
	var data models.TransformedData
	if err := json.Unmarshal(doc, &data); err != nil {
		return 0, temporal.NewNonRetryableApplicationError(
			"load validation failed: malformed transformed data", errTypeLoadValidation, err)
	}

	// The loader spends its time inside database round-trips, so heartbeat
	// from a ticker instead of the batch loop.
	hbCtx, stopHB := context.WithCancel(ctx)
	defer stopHB()
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, "loading")
			}
		}
	}()

	repo, err := repository.NewRepository(ctx, a.cfg.DatabaseURL(), log)
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	if err := repo.LoadAll(ctx, &data); err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return 0, err
	}
	if err := repo.RecordRun(ctx, startedAt, time.Now(), "success", loadCompleteNote); err != nil {
		return 0, err
	}
	metrics.RunsTotal.WithLabelValues("success").Inc()

	rows := data.RowCount()
	log.Info().Int("rows", rows).Dur("elapsed", time.Since(startedAt)).Msg("load complete")
	return rows, nil
}

// Cleanup removes the spill files best-effort and reports how many were
// actually deleted. It never fails the workflow.
func (a *Activities) Cleanup(ctx context.Context, paths []string) (int, error) {
	removed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil {
			if !os.IsNotExist(err) {
				a.log.Warn().Err(err).Str("path", p).Msg("spill cleanup failed")
			}
			continue
		}
		removed++
	}
	return removed, nil
}
