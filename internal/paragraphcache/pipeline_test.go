package paragraphcache_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/paragraphcache"
	"github.com/vytor/lingorun/internal/testutil/mocks"
	"github.com/vytor/lingorun/internal/ttlstore"
	"github.com/vytor/lingorun/internal/worker"
)

type fixture struct {
	store    *ttlstore.MemoryStore
	gen      *mocks.MockGenerator
	gate     *mocks.MockRateGate
	pipeline *paragraphcache.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ttlstore.NewMemoryStore(nil)
	gen := new(mocks.MockGenerator)
	gate := new(mocks.MockRateGate)
	pool := worker.NewPool("test-prefetch", 2, 16)
	pool.Start(context.Background())

	p := paragraphcache.New(store, gen, gate, pool, paragraphcache.Options{
		TTL:             time.Hour,
		WarmupDelay:     0,
		GenerateTimeout: time.Second,
	})
	t.Cleanup(p.Close)
	return &fixture{store: store, gen: gen, gate: gate, pipeline: p}
}

func (f *fixture) allowAll() {
	f.gate.On("CanGenerate", mock.Anything, mock.Anything).Return(true, nil).Maybe()
	f.gate.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (f *fixture) cached(key string) bool {
	ok, _ := f.store.Exists(context.Background(), key)
	return ok
}

func TestGet_MissGeneratesCachesAndPrefetches(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return r.Difficulty == 2
	})).Return("level two text", nil).Once()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("prefetched", nil).Maybe()

	ctx := context.Background()
	text, err := f.pipeline.Get(ctx, paragraphcache.Request{UserID: 1, Difficulty: 2, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "level two text", text)

	v, ok, err := f.store.Get(ctx, "paragraph:cache:2:en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "level two text", v)

	require.Eventually(t, func() bool {
		return f.cached("paragraph:cache:3:en") && f.cached("paragraph:cache:4:en")
	}, 2*time.Second, 10*time.Millisecond)

	text, err = f.pipeline.Get(ctx, paragraphcache.Request{UserID: 1, Difficulty: 2, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "level two text", text)

	stats := f.pipeline.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.HitRate, 1e-9)
}

func TestGet_DefaultsLanguageAndClampsDifficulty(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("text", nil)

	_, err := f.pipeline.Get(context.Background(), paragraphcache.Request{UserID: 1, Difficulty: 42})
	require.NoError(t, err)

	assert.True(t, f.cached("paragraph:cache:10:en"))
}

func TestGet_PersonalizedRequestBypassesCache(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return r.ErrorSummary != ""
	})).Return("personal text", nil)

	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "paragraph:cache:3:en", "shared text", time.Hour))

	text, err := f.pipeline.Get(ctx, paragraphcache.Request{
		UserID: 1, Difficulty: 3, Language: "en", ErrorSummary: "grammar=2 word_choice=0 naturalness=1",
	})
	require.NoError(t, err)
	assert.Equal(t, "personal text", text, "cached value must not be served")

	v, _, _ := f.store.Get(ctx, "paragraph:cache:3:en")
	assert.Equal(t, "shared text", v, "cached value must not be overwritten")

	_, err = f.pipeline.Get(ctx, paragraphcache.Request{UserID: 1, Difficulty: 5, Language: "en", ErrorSummary: "grammar=1"})
	require.NoError(t, err)
	assert.False(t, f.cached("paragraph:cache:5:en"))

	assert.Equal(t, int64(0), f.pipeline.Stats().Hits)
	f.gate.AssertNumberOfCalls(t, "Record", 2)
}

func TestGet_RateLimitedOnMiss(t *testing.T) {
	f := newFixture(t)
	f.gate.On("CanGenerate", mock.Anything, int64(7)).Return(false, nil)

	_, err := f.pipeline.Get(context.Background(), paragraphcache.Request{UserID: 7, Difficulty: 1, Language: "en"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRateLimited))
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	f.gate.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestGet_RateGateErrorDenies(t *testing.T) {
	f := newFixture(t)
	f.gate.On("CanGenerate", mock.Anything, int64(7)).Return(false, stderrors.New("redis down"))

	_, err := f.pipeline.Get(context.Background(), paragraphcache.Request{UserID: 7, Difficulty: 1, Language: "en"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeRateLimited))
}

func TestGet_GeneratorFailureIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("", stderrors.New("upstream 500"))

	_, err := f.pipeline.Get(context.Background(), paragraphcache.Request{UserID: 1, Difficulty: 4, Language: "en"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationFailed))
	assert.False(t, f.cached("paragraph:cache:4:en"))
	f.gate.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestGet_GeneratorTimeout(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "generator call must carry a deadline")
		})

	_, err := f.pipeline.Get(context.Background(), paragraphcache.Request{UserID: 1, Difficulty: 4, Language: "en"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationFailed))
}

func TestPrefetchTentative_PredictsAndFillsNeighbours(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return r.Personalized()
	})).Return("hinted text for user 1", nil).Maybe()
	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return !r.Personalized()
	})).Return("shared text", nil)

	predicted := f.pipeline.PrefetchTentative(context.Background(), 1, 3, "en", 95, "grammar=4", "commute")
	assert.Equal(t, 4, predicted)

	require.Eventually(t, func() bool {
		return f.cached("paragraph:cache:3:en") && f.cached("paragraph:cache:4:en") && f.cached("paragraph:cache:5:en")
	}, 2*time.Second, 10*time.Millisecond)

	text, err := f.pipeline.Get(context.Background(), paragraphcache.Request{UserID: 2, Difficulty: 4, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "shared text", text)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return r.Personalized()
	}))
}

func TestPrefetchTentative_SkipsCachedLevels(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	ctx := context.Background()
	for _, lvl := range []int{1, 2} {
		require.NoError(t, f.store.Set(ctx, paragraphcache.Key(lvl, "en"), "x", time.Hour))
	}

	predicted := f.pipeline.PrefetchTentative(ctx, 1, 1, "en", 10, "", "")
	assert.Equal(t, 1, predicted)

	// Give the workers a chance to run; nothing should be generated.
	time.Sleep(50 * time.Millisecond)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestWarmup_FillsMissingLevelsAndContinuesOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, paragraphcache.Key(3, "es"), "cached", time.Hour))

	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(r models.GenerationRequest) bool {
		return r.Difficulty == 5
	})).Return("", stderrors.New("flaky"))
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("warm", nil)

	res := f.pipeline.Warmup(ctx, "es")

	assert.Equal(t, "es", res.Language)
	assert.Equal(t, []int{3}, res.Skipped)
	assert.Equal(t, []int{5}, res.Failed)
	assert.Equal(t, []int{1, 2, 4, 6, 7, 8, 9, 10}, res.Generated)
	for _, lvl := range res.Generated {
		assert.True(t, f.cached(paragraphcache.Key(lvl, "es")))
	}
	f.gate.AssertNotCalled(t, "CanGenerate", mock.Anything, mock.Anything)
}

func TestWarmup_StopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.pipeline.Warmup(ctx, "en")
	assert.Empty(t, res.Generated)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestScheduleWarmup_RunsInBackground(t *testing.T) {
	f := newFixture(t)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("warm", nil)

	require.True(t, f.pipeline.ScheduleWarmup("fr"))
	require.Eventually(t, func() bool {
		return f.cached(paragraphcache.Key(10, "fr"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "paragraph:cache:3:en", paragraphcache.Key(3, ""))
	assert.Equal(t, "paragraph:cache:7:vi", paragraphcache.Key(7, "vi"))
}
