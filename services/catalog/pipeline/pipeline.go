package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"easypce-backend/lib/scrapers/core"
	"easypce-backend/lib/scrapers/evals"
	"easypce-backend/lib/scrapers/registrar"
	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/lib/telemetry"
	"easypce-backend/lib/timezone"
	"easypce-backend/services/catalog/reconcile"

	"github.com/cenkalti/backoff/v4"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

var tracer = telemetry.Tracer("easypce.services.catalog.pipeline")
var meter = telemetry.Meter("easypce.services.catalog.pipeline")

var (
	ErrDependencyFailed = errors.New("a unit this one depends on did not succeed")
	ErrCancelled        = errors.New("cancelled before it started")
)

type FeedAPI interface {
	Terms(ctx context.Context, sel string) ([]webfeeds.TermRecord, error)
	Subjects(ctx context.Context, sel string) ([]webfeeds.SubjectRecord, error)
	Courses(ctx context.Context, term, subject string) ([]webfeeds.CourseRecord, error)
}

type DetailsAPI interface {
	CourseDetails(ctx context.Context, term, courseId string) (registrar.DetailRecord, error)
}

type EvalsAPI interface {
	Evaluations(ctx context.Context, term, courseId string) (evals.Stats, []string, error)
}

type Deps struct {
	Feed    FeedAPI
	Details DetailsAPI
	Evals   EvalsAPI
	Store   *reconcile.Store
}

type Options struct {
	// units running at once, defaults to 8
	Workers int
	// deadline of a single attempt, defaults to a minute
	UnitTimeout time.Duration
	// defaults to 3
	MaxAttempts int
	// first wait between attempts, defaults to a second
	RetryInterval time.Duration
	// when true a courses unit does not schedule details and evaluations
	// for the offerings it imported
	SkipFollowUps bool
	// when true follow-ups are only scheduled for offerings that have not
	// completed them yet
	Incremental bool
}

type runFunc func(ctx context.Context, t *task) error

type task struct {
	// guarded by Pipeline.mutex
	unit   Unit
	deps   []*task
	run    runFunc
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Pipeline runs units of work with a bounded number of workers. A unit
// waits for the units it depends on, and a failed unit never affects its
// siblings.
type Pipeline struct {
	deps    Deps
	opts    Options
	runId   string
	started time.Time
	metrics metrics

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	keys   *keyLock
	wg     sync.WaitGroup

	mutex sync.Mutex
	tasks []*task
	// latest unit per kind and scope, a unit is not scheduled twice
	// unless the earlier one did not succeed
	scheduled map[string]*task
}

func New(ctx context.Context, deps Deps, opts Options) (*Pipeline, error) {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}

	runId, err := random.String(10)
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Pipeline{
		deps:      deps,
		opts:      opts,
		runId:     runId,
		started:   timezone.Now(),
		metrics:   newMetrics(),
		ctx:       ctx,
		cancel:    cancel,
		sem:       semaphore.NewWeighted(int64(opts.Workers)),
		keys:      newKeyLock(),
		scheduled: map[string]*task{},
	}, nil
}

func (p *Pipeline) RunId() string {
	return p.runId
}

func (p *Pipeline) submit(unit Unit, after []*task, run runFunc) *task {
	p.mutex.Lock()
	key := string(unit.Kind) + ":" + unit.Scope()
	if existing, ok := p.scheduled[key]; ok {
		state := existing.unit.State
		if state != Failed && state != Cancelled {
			p.mutex.Unlock()
			return existing
		}
	}

	unit.Id = len(p.tasks) + 1
	unit.State = Queued
	for _, dep := range after {
		unit.DependsOn = append(unit.DependsOn, dep.unit.Id)
	}
	ctx, cancel := context.WithCancel(p.ctx)
	t := &task{
		unit:   unit,
		deps:   after,
		run:    run,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.tasks = append(p.tasks, t)
	p.scheduled[key] = t
	p.wg.Add(1)
	p.mutex.Unlock()

	slog.DebugContext(p.ctx, "queued unit", "id", unit.Id, "kind", unit.Kind, "scope", unit.Scope())
	go p.execute(t)
	return t
}

func (p *Pipeline) lookup(ids []int) []*task {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var found []*task
	for _, id := range ids {
		if id < 1 || id > len(p.tasks) {
			slog.Warn("ignoring dependency on unknown unit", "id", id)
			continue
		}
		found = append(found, p.tasks[id-1])
	}
	return found
}

func (p *Pipeline) execute(t *task) {
	defer p.wg.Done()
	defer close(t.done)
	defer t.cancel()

	for _, dep := range t.deps {
		select {
		case <-dep.done:
		case <-t.ctx.Done():
		}
		if t.ctx.Err() != nil {
			p.finish(t, Cancelled, ErrCancelled)
			return
		}
		p.mutex.Lock()
		state, id := dep.unit.State, dep.unit.Id
		p.mutex.Unlock()
		if state == Cancelled {
			p.finish(t, Cancelled, fmt.Errorf("%w: unit %d was cancelled", ErrCancelled, id))
			return
		}
		if state != Succeeded {
			p.finish(t, Failed, fmt.Errorf("%w: unit %d %s", ErrDependencyFailed, id, state))
			return
		}
	}

	err := p.sem.Acquire(t.ctx, 1)
	if err != nil {
		p.finish(t, Cancelled, ErrCancelled)
		return
	}
	defer p.sem.Release(1)

	if !p.start(t) {
		return
	}
	err = p.attempt(t)
	if err != nil {
		p.finish(t, Failed, err)
		return
	}
	p.finish(t, Succeeded, nil)
}

func (p *Pipeline) start(t *task) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if t.unit.State != Queued {
		return false
	}
	t.unit.State = Running
	t.unit.Started = timezone.Now()
	return true
}

func (p *Pipeline) finish(t *task, state State, err error) {
	p.mutex.Lock()
	if t.unit.State.Done() {
		p.mutex.Unlock()
		return
	}
	t.unit.State = state
	t.unit.Err = err
	t.unit.Finished = timezone.Now()
	unit := t.unit
	p.mutex.Unlock()

	p.metrics.recordState(p.ctx, unit.Kind, state)
	p.metrics.recordDuration(p.ctx, unit.Kind, unit.Duration())
	switch state {
	case Failed:
		slog.ErrorContext(p.ctx, "unit failed", "id", unit.Id, "kind", unit.Kind, "scope", unit.Scope(), "attempts", unit.Attempts, "err", err)
	case Cancelled:
		slog.InfoContext(p.ctx, "unit cancelled", "id", unit.Id, "kind", unit.Kind, "scope", unit.Scope())
	default:
		slog.DebugContext(p.ctx, "unit succeeded", "id", unit.Id, "kind", unit.Kind, "scope", unit.Scope(), "duration", unit.Duration())
	}
}

func (p *Pipeline) note(t *task, format string, args ...any) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	t.unit.Notes = append(t.unit.Notes, fmt.Sprintf(format, args...))
}

// attempt runs a unit until it succeeds, fails with an error that is not
// a transport error, or runs out of attempts. Every attempt gets its own
// deadline.
func (p *Pipeline) attempt(t *task) error {
	p.mutex.Lock()
	kind, scope := t.unit.Kind, t.unit.Scope()
	p.mutex.Unlock()

	ctx, span := tracer.Start(t.ctx, fmt.Sprintf("unit:%s", kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", p.runId),
		attribute.String("scope", scope),
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.opts.RetryInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.opts.MaxAttempts-1)), ctx)

	err := backoff.RetryNotify(func() error {
		p.mutex.Lock()
		t.unit.Attempts++
		t.unit.Notes = nil
		p.mutex.Unlock()

		attemptCtx, cancel := context.WithTimeout(ctx, p.opts.UnitTimeout)
		defer cancel()
		err := t.run(attemptCtx, t)
		if err == nil {
			return nil
		}
		if !core.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, retry, func(err error, wait time.Duration) {
		p.metrics.recordRetry(ctx, kind)
		slog.WarnContext(ctx, "retrying unit", "kind", kind, "scope", scope, "wait", wait, "err", err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unit failed")
	}
	return err
}

// Cancel abandons a unit that has not started yet and reports whether it
// did. Running units always run to completion.
func (p *Pipeline) Cancel(id int) bool {
	p.mutex.Lock()
	if id < 1 || id > len(p.tasks) {
		p.mutex.Unlock()
		return false
	}
	t := p.tasks[id-1]
	if t.unit.State != Queued {
		p.mutex.Unlock()
		return false
	}
	t.unit.State = Cancelled
	t.unit.Err = ErrCancelled
	t.unit.Finished = timezone.Now()
	kind := t.unit.Kind
	p.mutex.Unlock()

	t.cancel()
	p.metrics.recordState(p.ctx, kind, Cancelled)
	return true
}

// CancelAll abandons every unit that has not started and interrupts the
// running ones at their next blocking call.
func (p *Pipeline) CancelAll() {
	p.cancel()
}

func (p *Pipeline) Units() []Unit {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	units := make([]Unit, len(p.tasks))
	for i, t := range p.tasks {
		unit := t.unit
		unit.DependsOn = slices.Clone(unit.DependsOn)
		unit.Notes = slices.Clone(unit.Notes)
		units[i] = unit
	}
	return units
}

// Wait blocks until every scheduled unit, including the ones scheduled
// along the way, is done or ctx ends. The report is partial in the latter
// case.
func (p *Pipeline) Wait(ctx context.Context) Report {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "stopped waiting on an unfinished run", "err", ctx.Err())
	}

	return Report{
		RunId:    p.runId,
		Started:  p.started,
		Finished: timezone.Now(),
		Units:    p.Units(),
	}
}
