package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/extraction"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/intake"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/memory"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/storage"
)

// fakeExtractor returns queued errors first, then succeeds with a fixed
// result, tracking every call.
type fakeExtractor struct {
	mu     sync.Mutex
	calls  int
	errs   []error
	result extraction.Result
}

func (f *fakeExtractor) Extract(_ context.Context, _ extraction.Request) (*extraction.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	res := f.result
	if res.Metadata == nil {
		res.Metadata = map[string]interface{}{}
	}
	return &res, nil
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

type fixture struct {
	intakes  *intake.MemStore
	memories *memory.MemStore
	objects  *storage.MemStore
	svc      *intake.Service
}

func newFixture() *fixture {
	intakes := intake.NewMemStore()
	objects := storage.NewMemStore()
	return &fixture{
		intakes:  intakes,
		memories: memory.NewMemStore(),
		objects:  objects,
		svc:      intake.NewService(intakes, objects),
	}
}

// readyIntake drives a submission through init/upload/finalize so the
// worker has something to claim.
func (f *fixture) readyIntake(t *testing.T, orgID, key, content string) *models.Intake {
	t.Helper()
	ctx := context.Background()

	it, err := f.svc.Init(ctx, orgID, key)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := f.svc.Upload(ctx, orgID, it.ID, "doc.txt", []byte(content)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	it, err = f.svc.Finalize(ctx, orgID, it.ID, "", 0)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return it
}

func (f *fixture) worker(cfg Config, ext extraction.Extractor, emb *fakeEmbedder) *Worker {
	if emb != nil {
		return New(cfg, f.intakes, f.memories, f.objects, ext, emb)
	}
	return New(cfg, f.intakes, f.memories, f.objects, ext, nil)
}

func TestWorkerEndToEnd(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "quarterly results were strong")

	ext := &fakeExtractor{result: extraction.Result{
		Title:    "Quarterly Results",
		Summary:  "Results were strong.",
		Metadata: map[string]interface{}{"topics": []interface{}{"finance"}},
	}}
	w := fx.worker(Config{}, ext, &fakeEmbedder{vec: []float32{0.1, 0.2}})

	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("RunCycle processed %d, want 1", n)
	}

	got, err := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusDone {
		t.Fatalf("status = %q, want done (last_error=%v)", got.Status, got.LastError)
	}
	if got.LastError != nil {
		t.Errorf("done intake must have no last_error, got %v", *got.LastError)
	}

	mems, err := fx.memories.ListByOrg(ctx, "org-a", &it.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mems) != 1 {
		t.Fatalf("want exactly one memory, got %d", len(mems))
	}
	m := mems[0]
	if m.Title != "Quarterly Results" || m.Summary != "Results were strong." {
		t.Errorf("memory content: %q / %q", m.Title, m.Summary)
	}
	if len(m.Embedding) != 2 {
		t.Errorf("embedding not stored, got %d dims", len(m.Embedding))
	}

	var meta struct {
		Processing struct {
			Extractor string `json:"extractor"`
			Attempt   int    `json:"attempt"`
		} `json:"processing"`
	}
	if err := json.Unmarshal(m.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Processing.Extractor != "fake" || meta.Processing.Attempt != 1 {
		t.Errorf("processing metadata = %+v", meta.Processing)
	}

	// The queue is drained; the next cycle is a no-op.
	if n := w.RunCycle(ctx); n != 0 {
		t.Errorf("second cycle processed %d, want 0", n)
	}
	if total, _ := fx.memories.CountByOrg(ctx, "org-a"); total != 1 {
		t.Errorf("memory count = %d, want 1", total)
	}
}

func TestWorkerTransientFailureThenRecovery(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "flaky content")

	ext := &fakeExtractor{
		errs:   []error{errors.New("upstream 503")},
		result: extraction.Result{Title: "T", Summary: "S"},
	}
	w := fx.worker(Config{BaseRetryDelay: time.Nanosecond, MaxRetryDelay: time.Millisecond}, ext, nil)

	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("first cycle processed %d, want 1", n)
	}

	got, _ := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusReady {
		t.Fatalf("after transient failure status = %q, want ready", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.LastError == nil {
		t.Error("last_error must record the failure")
	}

	time.Sleep(5 * time.Millisecond)
	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("retry cycle processed %d, want 1", n)
	}

	got, _ = fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusDone {
		t.Fatalf("after retry status = %q, want done", got.Status)
	}
	if ext.callCount() != 2 {
		t.Errorf("extractor called %d times, want 2", ext.callCount())
	}
	if total, _ := fx.memories.CountByOrg(ctx, "org-a"); total != 1 {
		t.Errorf("memory count = %d, want exactly 1", total)
	}
}

func TestWorkerPermanentFailureShortCircuits(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "rejected content")

	ext := &fakeExtractor{errs: []error{
		&extraction.Error{Permanent: true, Err: errors.New("content policy violation")},
	}}
	w := fx.worker(Config{}, ext, nil)

	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("cycle processed %d, want 1", n)
	}

	got, _ := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusError {
		t.Fatalf("status = %q, want error", got.Status)
	}
	if ext.callCount() != 1 {
		t.Errorf("permanent failure must not burn the retry budget, calls = %d", ext.callCount())
	}

	// Terminal: nothing to claim anymore.
	if n := w.RunCycle(ctx); n != 0 {
		t.Errorf("cycle after terminal failure processed %d, want 0", n)
	}
}

func TestWorkerDeadAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "always failing")

	ext := &fakeExtractor{errs: []error{
		errors.New("timeout"),
		errors.New("timeout"),
		errors.New("timeout"),
	}}
	w := fx.worker(Config{
		MaxAttempts:    2,
		BaseRetryDelay: time.Nanosecond,
		MaxRetryDelay:  time.Millisecond,
	}, ext, nil)

	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("first cycle processed %d, want 1", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("second cycle processed %d, want 1", n)
	}

	got, _ := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusError {
		t.Fatalf("after exhausting budget status = %q, want error", got.Status)
	}
	if got.LastError == nil {
		t.Error("terminal failure must keep the last error")
	}
	if total, _ := fx.memories.CountByOrg(ctx, "org-a"); total != 0 {
		t.Errorf("failed intake must produce no memory, got %d", total)
	}
}

func TestWorkerChecksumMismatchIsPermanent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "original content")

	// Corrupt the stored object out of band; the finalized checksum no
	// longer matches, which retrying can never fix.
	if err := fx.objects.Put(ctx, it.StoragePath, []byte("tampered"), true); err != nil {
		t.Fatal(err)
	}

	ext := &fakeExtractor{result: extraction.Result{Title: "T", Summary: "S"}}
	w := fx.worker(Config{}, ext, nil)

	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("cycle processed %d, want 1", n)
	}

	got, _ := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusError {
		t.Fatalf("status = %q, want error", got.Status)
	}
	if ext.callCount() != 0 {
		t.Error("extraction must not run on corrupt content")
	}
}

func TestWorkerReclaimsAbandonedClaim(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "abandoned mid-flight")

	// Simulate a worker that claimed the row and crashed.
	claimed, err := fx.intakes.ClaimNextReady(ctx, time.Now().UTC(), 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("setup claim: n=%d err=%v", len(claimed), err)
	}

	ext := &fakeExtractor{result: extraction.Result{Title: "T", Summary: "S"}}
	w := fx.worker(Config{StaleAfter: time.Nanosecond}, ext, nil)

	time.Sleep(5 * time.Millisecond)
	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("cycle processed %d, want 1 (reclaimed row)", n)
	}

	got, _ := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusDone {
		t.Fatalf("status = %q, want done after recovery", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("reclaim must count as an attempt, got %d", got.Attempts)
	}
}

func TestWorkerEmbeddingFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	it := fx.readyIntake(t, "org-a", "key-1", "embed me")

	ext := &fakeExtractor{result: extraction.Result{Title: "T", Summary: "S"}}
	w := fx.worker(Config{}, ext, &fakeEmbedder{err: errors.New("embedding down")})

	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("cycle processed %d, want 1", n)
	}

	got, _ := fx.intakes.GetByID(ctx, "org-a", it.ID)
	if got.Status != models.StatusDone {
		t.Fatalf("embedding failure must not fail the ingest, status = %q", got.Status)
	}
	mems, _ := fx.memories.ListByOrg(ctx, "org-a", &it.ID, 10, 0)
	if len(mems) != 1 {
		t.Fatalf("want one memory, got %d", len(mems))
	}
	if len(mems[0].Embedding) != 0 {
		t.Error("memory must be stored without a vector when embedding fails")
	}
}

func TestWorkerBatchRespectsLimit(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	for i := 0; i < 5; i++ {
		fx.readyIntake(t, "org-a", "key-"+string(rune('a'+i)), "content")
	}

	ext := &fakeExtractor{result: extraction.Result{Title: "T", Summary: "S"}}
	w := fx.worker(Config{BatchSize: 2, Concurrency: 2}, ext, nil)

	if n := w.RunCycle(ctx); n != 2 {
		t.Fatalf("first cycle processed %d, want batch of 2", n)
	}
	if n := w.RunCycle(ctx); n != 2 {
		t.Fatalf("second cycle processed %d, want 2", n)
	}
	if n := w.RunCycle(ctx); n != 1 {
		t.Fatalf("third cycle processed %d, want 1", n)
	}

	counts, _ := fx.intakes.CountByStatus(ctx, "org-a")
	if counts[models.StatusDone] != 5 {
		t.Errorf("done = %d, want 5", counts[models.StatusDone])
	}
}
