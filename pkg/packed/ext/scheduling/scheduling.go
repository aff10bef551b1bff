// Package scheduling runs bean methods and functions annotated with
// schedule periodically while the application is running.
//
//	//packed::schedule -Every=30s -Delay=5s -MaxFailures=3
//	func (r *Reports) Flush(ctx context.Context, job *scheduling.JobContext) error
//
// Job operations may take a context.Context, a *JobContext, the scheduled
// time.Time and any service of the container.
package scheduling

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/toyz/packed/pkg/packed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Annotation is the hook annotation owned by the extension
const Annotation packed.AnnotationType = "schedule"

func init() {
	if err := packed.RegisterHook[*Extension](Annotation); err != nil {
		panic(err)
	}
}

// JobContext describes one run of a job
type JobContext struct {
	Name      string
	RunID     uuid.UUID
	Run       int64
	Scheduled time.Time
}

// JobInfo is a snapshot of a job
type JobInfo struct {
	Name     string        `json:"name" yaml:"name"`
	Every    time.Duration `json:"every" yaml:"every"`
	Delay    time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
	Runs     int64         `json:"runs" yaml:"runs"`
	Failures int64         `json:"failures" yaml:"failures"`
	Skipped  int64         `json:"skipped" yaml:"skipped"`
	Breaker  string        `json:"breaker" yaml:"breaker"`
}

type job struct {
	name    string
	every   time.Duration
	delay   time.Duration
	op      *packed.Operation
	breaker *gobreaker.CircuitBreaker

	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
}

var jobInfuser = func() *packed.Infuser {
	b := packed.NewInfuser(
		reflect.TypeFor[context.Context](),
		reflect.TypeFor[*JobContext](),
	)
	_ = b.Direct(packed.KeyOf[context.Context](), 0)
	_ = b.Direct(packed.KeyOf[*JobContext](), 1)
	_ = b.Transform(packed.KeyOf[time.Time](), func(jc *JobContext) time.Time { return jc.Scheduled }, 1)
	in, err := b.Build()
	if err != nil {
		panic(err)
	}
	return in
}()

// Extension schedules the jobs of one container
type Extension struct {
	handle *packed.ExtensionHandle
	logger *zap.Logger

	mu     sync.Mutex
	jobs   []*job
	cancel context.CancelFunc
	group  *errgroup.Group
}

// OnNew stores the extension handle
func (e *Extension) OnNew(h *packed.ExtensionHandle) error {
	e.handle = h
	e.logger = h.Logger()
	return nil
}

// IntrospectBean creates a job per schedule hook
func (e *Extension) IntrospectBean(b *packed.BeanHandle, agg *packed.Aggregate) error {
	switch b.Kind() {
	case packed.Managed, packed.Unmanaged:
		return fmt.Errorf("bean %s: jobs need a singleton, static or functional bean, not %s", b.Name(), b.Kind())
	}

	for _, site := range agg.Sites() {
		op, err := b.NewOperation(site, jobInfuser)
		if err != nil {
			return err
		}
		a := site.Annotation
		maxFailures := a.GetInt("MaxFailures", 3)
		if maxFailures < 1 {
			return fmt.Errorf("%s: MaxFailures must be at least 1", site)
		}
		j := &job{
			name:  op.Name(),
			every: a.GetDuration("Every"),
			delay: a.GetDuration("Delay"),
			op:    op,
		}
		j.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    j.name,
			Timeout: j.every * time.Duration(maxFailures),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(maxFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				e.logger.Warn("job breaker state changed",
					zap.String("job", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		})
		e.jobs = append(e.jobs, j)
	}
	return nil
}

// OnStart starts one goroutine per job
func (e *Extension) OnStart(ctx context.Context, _ *packed.Application) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.jobs) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.group = &errgroup.Group{}
	for _, j := range e.jobs {
		e.group.Go(func() error {
			e.loop(runCtx, j)
			return nil
		})
	}
	e.logger.Info("scheduler started", zap.Int("jobs", len(e.jobs)))
	return nil
}

// OnStop cancels the jobs and waits for running executions to return
func (e *Extension) OnStop(ctx context.Context, info packed.StopInfo) error {
	e.mu.Lock()
	cancel, group := e.cancel, e.group
	e.cancel, e.group = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("scheduler stopped", zap.Bool("now", info.Now))
		return nil
	case <-ctx.Done():
		if info.Now {
			<-done
			return nil
		}
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

// Jobs returns a snapshot of the jobs, sorted by name
func (e *Extension) Jobs() []JobInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	infos := make([]JobInfo, 0, len(e.jobs))
	for _, j := range e.jobs {
		infos = append(infos, JobInfo{
			Name:     j.name,
			Every:    j.every,
			Delay:    j.delay,
			Runs:     j.runs.Load(),
			Failures: j.failures.Load(),
			Skipped:  j.skipped.Load(),
			Breaker:  j.breaker.State().String(),
		})
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].Name < infos[k].Name })
	return infos
}

func (e *Extension) loop(ctx context.Context, j *job) {
	if j.delay > 0 {
		timer := time.NewTimer(j.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	scheduled := time.Now()
	for {
		e.execute(ctx, j, scheduled)
		select {
		case <-ctx.Done():
			return
		case scheduled = <-ticker.C:
		}
	}
}

func (e *Extension) execute(ctx context.Context, j *job, scheduled time.Time) {
	jc := &JobContext{
		Name:      j.name,
		RunID:     uuid.New(),
		Run:       j.runs.Add(1),
		Scheduled: scheduled,
	}
	_, err := j.breaker.Execute(func() (any, error) {
		_, err := j.op.Invoke(ctx, reflect.ValueOf(ctx), reflect.ValueOf(jc))
		return nil, err
	})
	switch {
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		j.skipped.Add(1)
		e.logger.Debug("job skipped", zap.String("job", j.name), zap.Error(err))
	case err != nil:
		j.failures.Add(1)
		e.logger.Warn("job failed",
			zap.String("job", j.name),
			zap.Stringer("run_id", jc.RunID),
			zap.Error(err))
	}
}
