// Package collector orchestrates one collection run: it fans queries out to
// the configured sources, pipes every candidate through normalize, enrich and
// score, and lands the survivors in the dedup store.
package collector

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vikabot-systems/leadscout/internal/enrich"
	"github.com/vikabot-systems/leadscout/internal/model"
	"github.com/vikabot-systems/leadscout/internal/normalize"
	"github.com/vikabot-systems/leadscout/internal/resilience"
	"github.com/vikabot-systems/leadscout/internal/score"
	"github.com/vikabot-systems/leadscout/internal/source"
	"github.com/vikabot-systems/leadscout/internal/store"
)

// Options bounds one run.
type Options struct {
	// Target is how many new leads the run tries to accept.
	Target int

	// MaxAttemptsMul caps total candidate attempts at Target*MaxAttemptsMul;
	// hitting the ceiling aborts the run rather than hammering sources all day.
	MaxAttemptsMul int

	// MinDelay/MaxDelay bound the jittered pause between queries on one source.
	MinDelay time.Duration
	MaxDelay time.Duration

	// MaxRetries is the attempt budget per source fetch (first try included).
	MaxRetries int

	// PerQueryResults caps how many candidates one query may yield.
	PerQueryResults int

	Titles       []string
	Locations    []string
	CompanySizes []string
}

func (o Options) withDefaults() Options {
	if o.Target <= 0 {
		o.Target = 50
	}
	if o.MaxAttemptsMul <= 0 {
		o.MaxAttemptsMul = 3
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.PerQueryResults <= 0 {
		o.PerQueryResults = 5
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	return o
}

// Collector runs the collection pipeline over a set of sources.
type Collector struct {
	store      store.Store
	sources    []source.Source
	normalizer *normalize.Normalizer
	enricher   *enrich.Enricher
	engine     *score.Engine
	opts       Options
	retry      resilience.RetryConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New assembles a collector. The sources slice order is irrelevant; each
// source works through its own shuffled query queue.
func New(st store.Store, sources []source.Source, n *normalize.Normalizer, e *enrich.Enricher, eng *score.Engine, opts Options) *Collector {
	opts = opts.withDefaults()
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	return &Collector{
		store:      st,
		sources:    sources,
		normalizer: n,
		enricher:   e,
		engine:     eng,
		opts:       opts,
		retry:      retry,
		sleep:      ctxSleep,
	}
}

type candidate struct {
	src string
	raw model.RawCandidate
}

// Run executes one collection pass and persists its Run record. The returned
// Run is also persisted when the pass aborts; the error reports only store
// failures and context cancellation, not individual source failures.
func (c *Collector) Run(ctx context.Context) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Target:    c.opts.Target,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	queries := c.buildQueries()
	for _, q := range queries {
		run.Queries = append(run.Queries, q.Describe())
	}
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return nil, eris.Wrap(err, "collector: save run")
	}

	zap.L().Info("collection run started",
		zap.String("run_id", run.ID),
		zap.Int("target", run.Target),
		zap.Int("queries", len(queries)),
		zap.Int("sources", len(c.sources)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var retries, sourceFailures atomic.Int64
	candidates := make(chan candidate, 64)

	g, gctx := errgroup.WithContext(runCtx)
	for _, src := range c.sources {
		g.Go(func() error {
			c.drainSource(gctx, src, queries, candidates, &retries, &sourceFailures)
			return nil
		})
	}
	go func() {
		g.Wait() //nolint:errcheck
		close(candidates)
	}()

	storeErr := c.consume(runCtx, cancel, run, candidates)

	run.Counters.Retries = int(retries.Load())
	run.Counters.SourceFailures = int(sourceFailures.Load())
	run.FinishedAt = time.Now().UTC()

	ceiling := run.Target * c.opts.MaxAttemptsMul
	switch {
	case storeErr != nil:
		run.Status = model.RunStatusAborted
		run.Error = storeErr.Error()
	case ctx.Err() != nil:
		run.Status = model.RunStatusAborted
		run.Error = ctx.Err().Error()
	case run.Counters.Accepted < run.Target && run.Counters.Attempted >= ceiling:
		run.Status = model.RunStatusAborted
		run.Error = "attempt ceiling reached before target"
	default:
		run.Status = model.RunStatusCompleted
	}

	// Persist outside the cancelled run context so an aborted run still
	// records its outcome.
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return run, eris.Wrap(err, "collector: save run")
	}

	zap.L().Info("collection run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("accepted", run.Counters.Accepted),
		zap.Int("duplicates", run.Counters.Duplicates),
		zap.Int("attempted", run.Counters.Attempted),
	)

	if storeErr != nil {
		return run, storeErr
	}
	return run, nil
}

// consume owns the run counters: it is the only goroutine touching them. It
// cancels the producers once the target or the attempt ceiling is reached.
func (c *Collector) consume(ctx context.Context, cancel context.CancelFunc, run *model.Run, candidates <-chan candidate) error {
	ceiling := run.Target * c.opts.MaxAttemptsMul
	now := time.Now().UTC()

	for cand := range candidates {
		if ctx.Err() != nil {
			for range candidates {
			}
			break
		}
		run.Counters.Attempted++

		lead, err := c.normalizer.Normalize(cand.raw, now)
		if err != nil {
			if eris.Is(err, normalize.ErrRejected) {
				run.Counters.Rejected++
				continue
			}
			return eris.Wrap(err, "collector: normalize")
		}

		c.enricher.Enrich(&lead)
		c.engine.Apply(&lead)

		stored, wasNew, err := c.store.UpsertLead(ctx, lead)
		if err != nil {
			cancel()
			return eris.Wrap(err, "collector: upsert lead")
		}
		if wasNew {
			run.Counters.Accepted++
			run.Delta = append(run.Delta, stored)
		} else {
			run.Counters.Duplicates++
		}

		if run.Counters.Accepted >= run.Target || run.Counters.Attempted >= ceiling {
			cancel()
			// Drain remaining buffered candidates without processing so
			// producers can exit.
			for range candidates {
			}
			break
		}
	}
	return nil
}

// drainSource works through its shuffled query queue. A retryable fetch
// failure is retried up to the budget; a permanent one abandons the source
// without touching the other sources.
func (c *Collector) drainSource(ctx context.Context, src source.Source, queries []source.Query, out chan<- candidate, retries, sourceFailures *atomic.Int64) {
	shuffled := make([]source.Query, len(queries))
	copy(shuffled, queries)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	log := zap.L().With(zap.String("source", src.Name()))
	for i, q := range shuffled {
		if i > 0 {
			if err := c.sleep(ctx, c.jitter()); err != nil {
				return
			}
		}

		cfg := c.retry
		cfg.ShouldRetry = sourceRetryable
		cfg.OnRetry = func(attempt int, err error) {
			retries.Add(1)
			log.Warn("source fetch retry",
				zap.Int("attempt", attempt),
				zap.String("query", q.Describe()),
				zap.Error(err),
			)
		}
		raws, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.RawCandidate, error) {
			return src.FetchCandidates(ctx, q, c.opts.PerQueryResults)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sourceFailures.Add(1)
			log.Error("source abandoned", zap.String("query", q.Describe()), zap.Error(err))
			return
		}

		for _, raw := range raws {
			select {
			case out <- candidate{src: src.Name(), raw: raw}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// buildQueries crosses titles with locations; sizes ride along on every query.
func (c *Collector) buildQueries() []source.Query {
	titles := c.opts.Titles
	if len(titles) == 0 {
		titles = []string{""}
	}
	locations := c.opts.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	var queries []source.Query
	for _, title := range titles {
		for _, loc := range locations {
			queries = append(queries, source.Query{
				Title:        title,
				Location:     loc,
				CompanySizes: c.opts.CompanySizes,
			})
		}
	}
	return queries
}

func (c *Collector) jitter() time.Duration {
	span := c.opts.MaxDelay - c.opts.MinDelay
	if span <= 0 {
		return c.opts.MinDelay
	}
	return c.opts.MinDelay + rand.N(span)
}

func sourceRetryable(err error) bool {
	var srcErr *source.Error
	if eris.As(err, &srcErr) {
		return srcErr.Retryable
	}
	return resilience.IsTransient(err)
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
