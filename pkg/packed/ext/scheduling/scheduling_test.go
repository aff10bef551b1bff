package scheduling_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyz/packed/pkg/packed"
	"github.com/toyz/packed/pkg/packed/ext/scheduling"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type Counter struct {
	mu    sync.Mutex
	names []string
	runs  []int64
}

func (c *Counter) record(job *scheduling.JobContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, job.Name)
	c.runs = append(c.runs, job.Run)
}

func (c *Counter) snapshot() ([]string, []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...), append([]int64(nil), c.runs...)
}

type Reports struct{}

func (r *Reports) Flush(ctx context.Context, job *scheduling.JobContext, at time.Time, counter *Counter) error {
	if ctx == nil || at.IsZero() {
		return errors.New("missing arguments")
	}
	counter.record(job)
	return nil
}

type Broken struct {
	calls atomic.Int32
}

func (b *Broken) Fail() error {
	b.calls.Add(1)
	return errors.New("boom")
}

type Sessions struct{}

func (s *Sessions) Sweep() {}

func init() {
	must(packed.DeclareMethodHooks[Reports](map[string][]string{
		"Flush": {"schedule -Every=5ms"},
	}))
	must(packed.DeclareMethodHooks[Broken](map[string][]string{
		"Fail": {"schedule 5ms -MaxFailures=2"},
	}))
	must(packed.DeclareMethodHooks[Sessions](map[string][]string{
		"Sweep": {"schedule 1m"},
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	ctx := context.Background()
	counter := &Counter{}
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		if _, err := c.InstallInstance(counter); err != nil {
			return err
		}
		_, err := packed.Install[Reports](c)
		return err
	}))
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))

	require.Eventually(t, func() bool {
		_, runs := counter.snapshot()
		return len(runs) >= 3
	}, time.Second, time.Millisecond)
	require.NoError(t, app.Stop(ctx))

	names, runs := counter.snapshot()
	assert.Equal(t, "Reports.Flush", names[0])
	assert.Equal(t, []int64{1, 2, 3}, runs[:3])

	ext, ok := packed.ExtensionOf[*scheduling.Extension](app)
	require.True(t, ok)
	jobs := ext.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Reports.Flush", jobs[0].Name)
	assert.Equal(t, 5*time.Millisecond, jobs[0].Every)
	assert.Equal(t, int64(len(runs)), jobs[0].Runs)
	assert.Zero(t, jobs[0].Failures)
	assert.Equal(t, "closed", jobs[0].Breaker)
}

func TestScheduler_BreakerSkipsRuns(t *testing.T) {
	ctx := context.Background()
	broken := &Broken{}
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		_, err := c.InstallInstance(broken)
		return err
	}))
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))

	ext, ok := packed.ExtensionOf[*scheduling.Extension](app)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return ext.Jobs()[0].Skipped > 0
	}, time.Second, time.Millisecond)
	require.NoError(t, app.Stop(ctx))

	job := ext.Jobs()[0]
	assert.GreaterOrEqual(t, job.Failures, int64(2))
	assert.Equal(t, int64(broken.calls.Load()), job.Failures)
	assert.Equal(t, job.Runs, job.Failures+job.Skipped)
}

func TestScheduler_FunctionalJob(t *testing.T) {
	ctx := context.Background()
	var ticks atomic.Int32
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		fb, err := c.InstallFunctional("cron")
		if err != nil {
			return err
		}
		fb.AddFunction("schedule 5ms -Delay=1ms", func(job *scheduling.JobContext) {
			ticks.Add(1)
		})
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, app.Stop(ctx, packed.StopNow()))
}

func TestScheduler_RejectsManagedBeans(t *testing.T) {
	_, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		b, err := packed.Install[Sessions](c)
		if err != nil {
			return err
		}
		b.Kind(packed.Managed)
		return nil
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs need a singleton")
}

func TestScheduler_NoJobsNoGoroutines(t *testing.T) {
	ctx := context.Background()
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		_, err := packed.Use[*scheduling.Extension](c)
		return err
	}))
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Stop(ctx))
}
