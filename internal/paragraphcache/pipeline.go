// Package paragraphcache shields the paragraph generator behind a TTL cache
// with background prefetching and warmup.
package paragraphcache

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vytor/lingorun/internal/adaptive"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/ttlstore"
	"github.com/vytor/lingorun/internal/worker"
)

const keyPrefix = "paragraph:cache:"

// Generator produces paragraph text. Implementations are network bound.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (string, error)
}

// RateGate decides whether a user may trigger another generation.
type RateGate interface {
	CanGenerate(ctx context.Context, userID int64) (bool, error)
	Record(ctx context.Context, userID int64) error
}

// Options tunes the pipeline. Zero values fall back to the defaults.
type Options struct {
	TTL             time.Duration
	WarmupDelay     time.Duration
	GenerateTimeout time.Duration
	StatsEvery      int64
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if o.WarmupDelay < 0 {
		o.WarmupDelay = 0
	}
	if o.StatsEvery <= 0 {
		o.StatsEvery = 100
	}
	return o
}

// DefaultOptions returns the stock pipeline settings.
func DefaultOptions() Options {
	return Options{
		TTL:             24 * time.Hour,
		WarmupDelay:     time.Second,
		GenerateTimeout: 20 * time.Second,
		StatsEvery:      100,
	}
}

// Request describes one paragraph lookup. UserID is charged against the rate gate.
type Request struct {
	UserID       int64
	Difficulty   int
	Language     string
	ErrorSummary string
	VocabHint    string
	PreviousText string
}

func (r Request) generation() models.GenerationRequest {
	return models.GenerationRequest{
		Difficulty:   r.Difficulty,
		Language:     r.Language,
		ErrorSummary: r.ErrorSummary,
		VocabHint:    r.VocabHint,
		PreviousText: r.PreviousText,
	}
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// WarmupResult reports what a warmup pass did per level.
type WarmupResult struct {
	Language  string `json:"language"`
	Generated []int  `json:"generated"`
	Skipped   []int  `json:"skipped"`
	Failed    []int  `json:"failed"`
}

// Pipeline is safe for concurrent use. Background work runs on the worker pool
// it was given; Close stops that pool.
type Pipeline struct {
	store ttlstore.Store
	gen   Generator
	gate  RateGate
	pool  *worker.Pool
	opts  Options
	sleep func(context.Context, time.Duration) error

	hits      atomic.Int64
	misses    atomic.Int64
	requests  atomic.Int64
	latencyUs atomic.Int64
}

// New wires a pipeline. The pool must already be started.
func New(store ttlstore.Store, gen Generator, gate RateGate, pool *worker.Pool, opts Options) *Pipeline {
	return &Pipeline{
		store: store,
		gen:   gen,
		gate:  gate,
		pool:  pool,
		opts:  opts.withDefaults(),
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Key returns the cache key for a difficulty and language.
func Key(difficulty int, language string) string {
	if language == "" {
		language = models.DefaultLanguage
	}
	return keyPrefix + strconv.Itoa(difficulty) + ":" + language
}

// Get returns paragraph text for the request. Personalized requests always go
// to the generator and are never cached. Otherwise a cached value is served
// when present, and a miss generates, stores and schedules prefetch of the two
// next levels. A denied rate gate yields a RATE_LIMITED error and a generator
// failure a GENERATION_FAILED error; callers fall back to static content.
func (p *Pipeline) Get(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	defer p.observe(ctx, start)

	req.Difficulty = adaptive.Clamp(req.Difficulty)
	if req.Language == "" {
		req.Language = models.DefaultLanguage
	}
	log := logger.FromContext(ctx).WithPrefix("paragraph-cache").WithFields(map[string]any{
		"difficulty": req.Difficulty,
		"language":   req.Language,
		"user_id":    req.UserID,
	})

	gen := req.generation()
	if gen.Personalized() {
		p.misses.Add(1)
		log.Info("generating personalized paragraph (cache bypassed)")
		return p.generateFor(ctx, req.UserID, gen)
	}

	key := Key(req.Difficulty, req.Language)
	cached, ok, err := p.store.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed, treating as miss: %v", err)
	}
	if ok {
		p.hits.Add(1)
		log.Debug("cache hit")
		return cached, nil
	}

	p.misses.Add(1)
	log.Info("cache miss")

	text, err := p.generateFor(ctx, req.UserID, gen)
	if err != nil {
		return "", err
	}
	if err := p.store.Set(ctx, key, text, p.opts.TTL); err != nil {
		log.Warn("failed to store generated paragraph: %v", err)
	}

	p.prefetch(req.UserID, req.Language, []int{req.Difficulty + 1, req.Difficulty + 2})
	return text, nil
}

// generateFor runs gate check, generation and gate record for one user.
func (p *Pipeline) generateFor(ctx context.Context, userID int64, req models.GenerationRequest) (string, error) {
	log := logger.FromContext(ctx)

	allowed, err := p.gate.CanGenerate(ctx, userID)
	if err != nil {
		log.Warn("rate gate unavailable, denying generation: %v", err)
		allowed = false
	}
	if !allowed {
		return "", errors.NewRateLimitedError(userID)
	}

	text, err := p.generate(ctx, req)
	if err != nil {
		return "", err
	}

	if err := p.gate.Record(ctx, userID); err != nil {
		log.Warn("failed to record generation for user %d: %v", userID, err)
	}
	return text, nil
}

func (p *Pipeline) generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	if p.opts.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.GenerateTimeout)
		defer cancel()
	}
	text, err := p.gen.Generate(ctx, req)
	if err != nil {
		return "", errors.NewGenerationFailedError(err)
	}
	if text == "" {
		return "", errors.NewGenerationFailedError(fmt.Errorf("generator returned empty text"))
	}
	return text, nil
}

// PrefetchTentative predicts the next difficulty from an in-progress accuracy
// and queues background generation for it and its neighbours. Prefetched
// levels land in the shared cache, so they are generated without the
// learner's hints; hinted content is only produced on demand by Get. It never
// blocks and never fails.
func (p *Pipeline) PrefetchTentative(ctx context.Context, userID int64, current int, language string, tentativeAccuracy float64, errorSummary, vocabHint string) int {
	if language == "" {
		language = models.DefaultLanguage
	}
	predicted := adaptive.Predict(current, tentativeAccuracy)
	log := logger.FromContext(ctx).WithPrefix("paragraph-cache")
	log.Info("prefetching difficulty %d (current %d, tentative accuracy %.1f)", predicted, current, tentativeAccuracy)
	if errorSummary != "" || vocabHint != "" {
		log.Debug("hints not applied to shared prefetch")
	}

	p.prefetch(userID, language, []int{predicted, predicted - 1, predicted + 1})
	return predicted
}

// prefetch queues one job per distinct clamped level.
func (p *Pipeline) prefetch(userID int64, language string, levels []int) {
	seen := make(map[int]bool, len(levels))
	for _, lvl := range levels {
		lvl = adaptive.Clamp(lvl)
		if seen[lvl] {
			continue
		}
		seen[lvl] = true
		p.pool.TrySubmit(&prefetchJob{pipeline: p, userID: userID, req: models.GenerationRequest{Difficulty: lvl, Language: language}})
	}
}

// fill generates and stores a level when it is not cached yet. A zero userID
// bypasses the rate gate. Personalized requests are refused since the key is
// shared by every user.
func (p *Pipeline) fill(ctx context.Context, userID int64, req models.GenerationRequest) (bool, error) {
	if req.Personalized() {
		return false, fmt.Errorf("refusing to cache personalized paragraph for difficulty %d", req.Difficulty)
	}
	key := Key(req.Difficulty, req.Language)
	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	if exists {
		return false, nil
	}

	var text string
	if userID != 0 {
		text, err = p.generateFor(ctx, userID, req)
	} else {
		text, err = p.generate(ctx, req)
	}
	if err != nil {
		return false, err
	}
	if err := p.store.Set(ctx, key, text, p.opts.TTL); err != nil {
		return false, fmt.Errorf("store %s: %w", key, err)
	}
	return true, nil
}

// Warmup fills every difficulty level for language in order, pausing between
// generations. Per-level failures are logged and the pass continues.
func (p *Pipeline) Warmup(ctx context.Context, language string) WarmupResult {
	if language == "" {
		language = models.DefaultLanguage
	}
	log := logger.FromContext(ctx).WithPrefix("paragraph-cache").WithField("language", language)
	log.Info("starting cache warmup")

	res := WarmupResult{Language: language}
	for lvl := models.MinDifficulty; lvl <= models.MaxDifficulty; lvl++ {
		if ctx.Err() != nil {
			log.Warn("warmup interrupted at difficulty %d: %v", lvl, ctx.Err())
			return res
		}

		generated, err := p.fill(ctx, 0, models.GenerationRequest{Difficulty: lvl, Language: language})
		switch {
		case err != nil:
			log.Error("warmup failed for difficulty %d: %v", lvl, err)
			res.Failed = append(res.Failed, lvl)
			continue
		case !generated:
			res.Skipped = append(res.Skipped, lvl)
			continue
		}

		res.Generated = append(res.Generated, lvl)
		log.Info("warmed difficulty %d", lvl)
		if err := p.sleep(ctx, p.opts.WarmupDelay); err != nil {
			log.Warn("warmup interrupted: %v", err)
			return res
		}
	}

	log.Info("cache warmup completed: generated=%d skipped=%d failed=%d", len(res.Generated), len(res.Skipped), len(res.Failed))
	return res
}

// ScheduleWarmup queues a warmup pass on the worker pool.
func (p *Pipeline) ScheduleWarmup(language string) bool {
	return p.pool.TrySubmit(&warmupJob{pipeline: p, language: language})
}

func (p *Pipeline) observe(ctx context.Context, start time.Time) {
	p.latencyUs.Add(time.Since(start).Microseconds())
	if n := p.requests.Add(1); n%p.opts.StatsEvery == 0 {
		s := p.Stats()
		logger.FromContext(ctx).Info("cache stats: hits=%d misses=%d hit_rate=%.2f%% avg_latency=%.2fms",
			s.Hits, s.Misses, s.HitRate, s.AverageLatencyMs)
	}
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	hits := p.hits.Load()
	misses := p.misses.Load()
	requests := p.requests.Load()

	s := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total) * 100
	}
	if requests > 0 {
		s.AverageLatencyMs = float64(p.latencyUs.Load()) / float64(requests) / 1000
	}
	return s
}

// Close stops background work.
func (p *Pipeline) Close() {
	p.pool.Stop()
}
