// Package app orchestrates grammar builds: it turns the config into a
// catalog, builds every job's grammar, records metrics and history, and keeps
// rebuilding while the watcher reports config edits.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gramspace/internal/core/config"
	coreerrors "gramspace/internal/core/errors"
	"gramspace/internal/core/watcher"
	"gramspace/internal/data/history"
	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/grammar"
	"gramspace/internal/engine/pruning"
	"gramspace/internal/engine/types"
	"gramspace/internal/shared/observability"
	"gramspace/internal/shared/util"
)

// BuildResult is the outcome of one job's build. Err is set when the job
// failed; the other jobs of the same run are unaffected.
type BuildResult struct {
	BuildID   string
	Job       config.Job
	Grammar   *grammar.Grammar
	Programs  *big.Int
	Duration  time.Duration
	Timestamp time.Time
	Err       error
}

type App struct {
	Config     *config.Config
	configPath string

	store   *history.Store
	watcher *watcher.Watcher
	limiter *util.Limiter

	mu        sync.RWMutex
	results   map[string]BuildResult
	lastBuild time.Time
}

// New wires an app from a validated config. configPath may be empty when the
// config did not come from a file; watch mode then only covers watch.paths.
func New(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	a := &App{
		Config:     cfg,
		configPath: configPath,
		limiter:    util.NewLimiter(cfg.Watch.RebuildsPerSecond, cfg.Watch.Burst),
		results:    make(map[string]BuildResult),
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeStorage, "open history store")
		}
		a.store = store
	}

	return a, nil
}

// Catalog assembles the DSL from the config: parsed primitives plus the
// expanded forbidding rules.
func (a *App) Catalog() (*dsl.DSL, error) {
	a.mu.RLock()
	cfg := a.Config
	a.mu.RUnlock()

	primitives := make([]*dsl.Primitive, 0, len(cfg.Primitives))
	for _, p := range cfg.Primitives {
		t, err := types.Parse(p.Type)
		if err != nil {
			return nil, coreerrors.AddContext(
				coreerrors.Wrap(err, coreerrors.CodeBadType, "parse primitive type"),
				coreerrors.CtxPrimitive, p.Name)
		}
		primitives = append(primitives, dsl.NewPrimitive(p.Name, t))
	}
	d := dsl.New(primitives)

	rules := make([]pruning.Rule, 0, len(cfg.Forbid))
	for _, r := range cfg.Forbid {
		rules = append(rules, pruning.Rule{Producer: r.Producer, Successors: r.Successors})
	}
	if _, err := pruning.Apply(d, rules); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "expand forbidding rules")
	}
	return d, nil
}

// BuildAll builds every configured job, one goroutine per job. Job failures
// are recorded per result; the returned error joins them.
func (a *App) BuildAll(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "app.BuildAll",
		trace.WithAttributes(attribute.Int("jobs", len(a.Config.Jobs))))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	d, err := a.Catalog()
	if err != nil {
		return err
	}

	a.mu.RLock()
	jobs := append([]config.Job(nil), a.Config.Jobs...)
	a.mu.RUnlock()

	results := make([]BuildResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job config.Job) {
			defer wg.Done()
			results[i] = a.buildJob(ctx, d, job)
		}(i, job)
	}
	wg.Wait()

	now := time.Now().UTC()
	var errs []error
	a.mu.Lock()
	for _, r := range results {
		a.results[r.Job.Name] = r
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", r.Job.Name, r.Err))
		}
	}
	a.lastBuild = now
	a.mu.Unlock()

	observability.RebuildsTotal.Inc()
	return errors.Join(errs...)
}

func (a *App) buildJob(ctx context.Context, d *dsl.DSL, job config.Job) BuildResult {
	ctx, span := observability.Tracer.Start(ctx, "app.buildJob",
		trace.WithAttributes(attribute.String("job", job.Name)))
	defer span.End()

	result := BuildResult{
		BuildID:   uuid.NewString(),
		Job:       job,
		Timestamp: time.Now().UTC(),
	}

	request, err := types.Parse(job.TypeRequest)
	if err != nil {
		result.Err = coreerrors.Wrap(err, coreerrors.CodeBadType, "parse type request")
		return result
	}
	constantTypes := make([]types.Type, 0, len(job.ConstantTypes))
	for _, ct := range job.ConstantTypes {
		t, err := types.Parse(ct)
		if err != nil {
			result.Err = coreerrors.Wrap(err, coreerrors.CodeBadType, "parse constant type")
			return result
		}
		constantTypes = append(constantTypes, t)
	}

	start := time.Now()
	g, err := grammar.Build(d, request, grammar.Options{
		MaxDepth:         job.MaxDepth,
		NGram:            job.NGram,
		MinVariableDepth: job.MinVariableDepth,
		Recursive:        job.Recursive,
		ConstantTypes:    constantTypes,
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}

	result.Grammar = g
	result.Programs = g.Size()

	observability.BuildDuration.WithLabelValues(job.Name).Observe(result.Duration.Seconds())
	observability.GrammarStates.WithLabelValues(job.Name).Set(float64(g.StateCount()))
	observability.GrammarRules.WithLabelValues(job.Name).Set(float64(g.RuleCount()))

	slog.Info("grammar built",
		"job", job.Name,
		"states", g.StateCount(),
		"rules", g.RuleCount(),
		"programs", result.Programs.String(),
		"duration", result.Duration)

	a.saveSnapshot(result, g)
	return result
}

// saveSnapshot persists one build to history. Failures are counted and
// logged, never fatal to the build.
func (a *App) saveSnapshot(result BuildResult, g *grammar.Grammar) {
	if a.store == nil {
		return
	}

	snapshot := history.Snapshot{
		BuildID:             result.BuildID,
		Job:                 result.Job.Name,
		Timestamp:           result.Timestamp,
		TypeRequest:         result.Job.TypeRequest,
		MaxDepth:            result.Job.MaxDepth,
		NGram:               result.Job.NGram,
		MinVariableDepth:    result.Job.MinVariableDepth,
		Recursive:           result.Job.Recursive,
		StateCount:          g.StateCount(),
		RuleCount:           g.RuleCount(),
		PrunedNonProductive: g.PrunedNonProductive(),
		PrunedUnreachable:   g.PrunedUnreachable(),
		Programs:            result.Programs.String(),
		Fingerprint:         fmt.Sprintf("%016x", g.Fingerprint()),
		Duration:            result.Duration,
	}
	if err := a.store.SaveSnapshot(a.Config.History.Project, snapshot); err != nil {
		observability.HistoryWriteErrorsTotal.Inc()
		slog.Warn("history snapshot write failed", "job", result.Job.Name, "error", err)
	}
}

// Result returns the latest build of a job.
func (a *App) Result(job string) (BuildResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.results[job]
	return r, ok
}

// Results lists the latest builds sorted by job name.
func (a *App) Results() []BuildResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]BuildResult, 0, len(a.results))
	for _, r := range a.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Job.Name < out[j].Job.Name
	})
	return out
}

// History exposes the snapshot store; nil when history is disabled.
func (a *App) History() *history.Store { return a.store }

// StartWatcher begins rebuilding on config and catalog edits. Rebuild bursts
// are bounded by the configured rate limit.
func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Watch.Exclude, func(paths []string) {
		a.onFilesChanged(ctx, paths)
	})
	if err != nil {
		return err
	}
	a.watcher = w

	watchPaths := append([]string(nil), a.Config.Watch.Paths...)
	if a.configPath != "" {
		watchPaths = append(watchPaths, a.configPath)
	}
	return w.Watch(watchPaths)
}

func (a *App) onFilesChanged(ctx context.Context, paths []string) {
	if !a.limiter.Allow(1) {
		observability.RebuildsThrottledTotal.Inc()
		slog.Warn("rebuild throttled", "changed", len(paths))
		return
	}

	slog.Info("config changed, rebuilding", "paths", paths)

	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			slog.Error("config reload failed, keeping previous config", "error", err)
		} else {
			a.mu.Lock()
			a.Config = cfg
			a.mu.Unlock()
		}
	}

	if err := a.BuildAll(ctx); err != nil {
		slog.Error("rebuild failed", "error", err)
	}
}

// Health summarizes the last build run for the observability server.
func (a *App) Health() observability.Health {
	a.mu.RLock()
	defer a.mu.RUnlock()

	h := observability.Health{
		Status:    "up",
		Jobs:      len(a.results),
		LastBuild: a.lastBuild,
	}
	if len(a.results) == 0 {
		h.Status = "starting"
		return h
	}
	for _, r := range a.results {
		if r.Err != nil {
			h.Status = "degraded"
			break
		}
	}
	return h
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
