package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/embedding"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/extraction"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/intake"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/memory"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/storage"
	"github.com/PulseInsights-Org/pulse-application-layer/pkg/textextract"
)

type Config struct {
	PollInterval      time.Duration
	BatchSize         int
	Concurrency       int
	MaxAttempts       int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
	ExtractionTimeout time.Duration
	StaleAfter        time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = 30 * time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = time.Hour
	}
	if c.ExtractionTimeout <= 0 {
		c.ExtractionTimeout = 5 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Minute
	}
}

// Worker is the polling ingest loop. Any number of workers may run
// concurrently against the same database; correctness rests entirely on
// the store's atomic claim, not on coordination between processes.
type Worker struct {
	cfg       Config
	intakes   intake.Store
	memories  memory.Store
	objects   storage.Store
	extractor extraction.Extractor
	embedder  embedding.Embedder // optional
}

func New(cfg Config, intakes intake.Store, memories memory.Store, objects storage.Store, extractor extraction.Extractor, embedder embedding.Embedder) *Worker {
	cfg.applyDefaults()
	return &Worker{
		cfg:       cfg,
		intakes:   intakes,
		memories:  memories,
		objects:   objects,
		extractor: extractor,
		embedder:  embedder,
	}
}

// Run polls until ctx is cancelled. Polling is the only suspension
// point; each tick runs one full cycle.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("ingest worker started",
		"poll_interval", w.cfg.PollInterval,
		"batch_size", w.cfg.BatchSize,
		"concurrency", w.cfg.Concurrency,
		"max_attempts", w.cfg.MaxAttempts,
		"extractor", w.extractor.Name(),
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.RunCycle(ctx)
		}
	}
}

// RunCycle performs one poll cycle synchronously: reclaim stale claims,
// claim a batch of ready intakes and process each in its own goroutine.
// It returns the number of intakes processed, which makes the worker
// directly testable without the ticker.
func (w *Worker) RunCycle(ctx context.Context) int {
	if reclaimed, err := w.intakes.ReclaimStale(ctx, time.Now().UTC().Add(-w.cfg.StaleAfter)); err != nil {
		slog.Error("reclaim stale intakes failed", "error", err)
	} else if reclaimed > 0 {
		slog.Warn("reclaimed stale ingesting intakes", "count", reclaimed)
	}

	claimed, err := w.intakes.ClaimNextReady(ctx, time.Now().UTC(), w.cfg.BatchSize)
	if err != nil {
		slog.Error("claim ready intakes failed", "error", err)
		return 0
	}
	if len(claimed) == 0 {
		return 0
	}

	// Each claimed intake is processed independently; one slow or failing
	// extraction never blocks the others beyond the semaphore.
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, it := range claimed {
		wg.Add(1)
		sem <- struct{}{}
		go func(it *models.Intake) {
			defer wg.Done()
			defer func() { <-sem }()
			w.processIntake(ctx, it)
		}(it)
	}
	wg.Wait()
	return len(claimed)
}

func (w *Worker) processIntake(ctx context.Context, it *models.Intake) {
	attempt := it.Attempts + 1
	slog.Info("processing intake", "intake_id", it.ID, "org_id", it.OrgID, "attempt", attempt)

	data, err := w.objects.Get(ctx, it.StoragePath)
	if err != nil {
		w.fail(ctx, it, fmt.Errorf("fetch content: %w", err))
		return
	}

	// The object is write-once, so a digest that disagrees with the
	// finalized checksum cannot heal on retry.
	if it.Checksum != nil && storage.Checksum(data) != *it.Checksum {
		w.dead(ctx, it, fmt.Errorf("stored content does not match finalized checksum"))
		return
	}

	text, err := textextract.Plain(data)
	if err != nil {
		w.dead(ctx, it, fmt.Errorf("extract text: %w", err))
		return
	}

	checksum := ""
	if it.Checksum != nil {
		checksum = *it.Checksum
	}

	extractCtx, cancel := context.WithTimeout(ctx, w.cfg.ExtractionTimeout)
	result, err := w.extractor.Extract(extractCtx, extraction.Request{
		OrgID:          it.OrgID,
		IntakeID:       it.ID,
		IdempotencyKey: it.IdempotencyKey,
		Content:        text,
		Checksum:       checksum,
	})
	cancel()
	if err != nil {
		if extraction.IsPermanent(err) {
			w.dead(ctx, it, fmt.Errorf("extraction rejected content: %w", err))
			return
		}
		w.fail(ctx, it, fmt.Errorf("extraction: %w", err))
		return
	}

	mem, err := w.buildMemory(ctx, it, result, len(text), attempt)
	if err != nil {
		w.fail(ctx, it, err)
		return
	}

	// Durable write of the result comes first; only then does the status
	// flip. A crash between the two leaves a still-ingesting row for the
	// stale-claim watchdog.
	if err := w.memories.Append(ctx, mem); err != nil {
		w.fail(ctx, it, fmt.Errorf("write memory: %w", err))
		return
	}
	if err := w.intakes.MarkDone(ctx, it.ID); err != nil {
		slog.Error("mark done failed", "intake_id", it.ID, "error", err)
		return
	}

	slog.Info("intake completed", "intake_id", it.ID, "memory_id", mem.ID, "attempt", attempt)
}

func (w *Worker) buildMemory(ctx context.Context, it *models.Intake, result *extraction.Result, contentLen, attempt int) (*models.Memory, error) {
	meta := map[string]interface{}{
		"extraction": result.Metadata,
		"processing": map[string]interface{}{
			"extractor":      w.extractor.Name(),
			"attempt":        attempt,
			"content_length": contentLen,
			"storage_path":   it.StoragePath,
		},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal memory metadata: %w", err)
	}

	mem := &models.Memory{
		IntakeID: it.ID,
		OrgID:    it.OrgID,
		Title:    result.Title,
		Summary:  result.Summary,
		Metadata: metaJSON,
	}

	// Embeddings are best-effort: recall quality is not worth failing an
	// otherwise complete ingest.
	if w.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		vec, err := w.embedder.Embed(embedCtx, result.Title+"\n"+result.Summary)
		cancel()
		if err != nil {
			slog.Warn("embedding failed, storing memory without vector", "intake_id", it.ID, "error", err)
		} else {
			mem.Embedding = vec
		}
	}
	return mem, nil
}

// fail schedules a retry or, once the budget is spent, gives up.
func (w *Worker) fail(ctx context.Context, it *models.Intake, cause error) {
	attempt := it.Attempts + 1
	if attempt >= w.cfg.MaxAttempts {
		w.dead(ctx, it, fmt.Errorf("exceeded %d attempts, last error: %w", w.cfg.MaxAttempts, cause))
		return
	}

	delay := Backoff(w.cfg.BaseRetryDelay, w.cfg.MaxRetryDelay, attempt)
	nextRetry := time.Now().UTC().Add(delay)
	slog.Warn("intake failed, scheduling retry",
		"intake_id", it.ID, "attempt", attempt, "retry_in", delay, "error", cause)

	if err := w.intakes.MarkFailed(ctx, it.ID, cause.Error(), nextRetry); err != nil {
		slog.Error("mark failed errored", "intake_id", it.ID, "error", err)
	}
}

func (w *Worker) dead(ctx context.Context, it *models.Intake, cause error) {
	slog.Error("intake permanently failed", "intake_id", it.ID, "error", cause)
	if err := w.intakes.MarkDead(ctx, it.ID, cause.Error()); err != nil {
		slog.Error("mark dead errored", "intake_id", it.ID, "error", err)
	}
}
