package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/frame"
	"pytestlab/internal/instrument"
)

// BackgroundTask runs for the session's whole duration and must check ctx
// cooperatively.
type BackgroundTask func(ctx context.Context, instruments map[string]instrument.Driver) error

// NamedTask pairs a background task with its registration name, used to
// report which tasks were force-closed as TaskAbandoned.
type NamedTask struct {
	Name string
	Fn   BackgroundTask
}

// ConcurrentOptions configures a timed acquisition loop.
type ConcurrentOptions struct {
	Duration    time.Duration
	Interval    time.Duration
	GracePeriod time.Duration // default 2s when zero
}

// RunConcurrent starts every background task in parallel with an
// acquisition loop that ticks every Interval up to Duration. On
// expiry it cancels the shared context, waits GracePeriod for tasks to
// exit cooperatively, then abandons any still running.
func (s *Session) RunConcurrent(parent context.Context, opts ConcurrentOptions, acquisitions []NamedAcquisition, tasks []NamedTask) (*frame.Result, error) {
	if opts.GracePeriod == 0 {
		opts.GracePeriod = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(parent, opts.Duration)
	defer cancel()

	var wg sync.WaitGroup
	done := make(chan struct{})
	var taskDone sync.Map // index -> struct{}
	var taskErrs sync.Map // index -> error

	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t NamedTask) {
			defer wg.Done()
			if err := t.Fn(ctx, s.Instruments); err != nil {
				taskErrs.Store(i, err)
			}
			taskDone.Store(i, struct{}{})
		}(i, t)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	out := frame.New()
	units := map[string]string{"wall_clock": "ns", "monotonic": "s", "skew": "s"}
	start := time.Now()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	tickCount := 0
	var lastTick time.Time
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			tickCount++
			skew := 0.0
			if !lastTick.IsZero() {
				actualGap := now.Sub(lastTick).Seconds()
				skew = actualGap - opts.Interval.Seconds()
				if skew > opts.Interval.Seconds()*0.5 {
					s.Log.WithFields(logrus.Fields{"tick": tickCount, "skew_s": skew}).Warn("acquisition tick ran behind schedule")
				}
			}
			lastTick = now

			row := map[string]any{
				"wall_clock": now.UnixNano(),
				"monotonic":  now.Sub(start).Seconds(),
				"skew":       skew,
			}
			order := []string{"wall_clock", "monotonic", "skew"}
			ctxA := &AcquisitionContext{Params: map[string]any{}, Instruments: s.Instruments}
			for _, acq := range acquisitions {
				vals, err := acq.Fn(ctxA)
				if err != nil {
					s.Log.WithError(err).WithField("acquisition", acq.Name).Warn("acquisition failed during tick, recording null")
					continue
				}
				ownKeys := make([]string, 0, len(vals))
				for k := range vals {
					ownKeys = append(ownKeys, k)
				}
				sort.Strings(ownKeys)
				order = append(order, ownKeys...)
				for k, v := range vals {
					row[k] = v
				}
			}
			out.AppendRow(row, order, units)
		}
	}

	graceTimer := time.NewTimer(opts.GracePeriod)
	defer graceTimer.Stop()
	select {
	case <-done:
	case <-graceTimer.C:
	}

	var firstErr error
	var abandoned []string
	for i, t := range tasks {
		if _, ok := taskDone.Load(i); !ok {
			abandoned = append(abandoned, t.Name)
			if firstErr == nil {
				firstErr = pterrors.NewSessionError(pterrors.TaskAbandoned, t.Name, nil)
			}
		}
	}
	if len(abandoned) > 0 {
		s.Log.WithField("tasks", abandoned).Warn("background tasks force-closed at grace period expiry")
	}

	taskErrs.Range(func(key, value any) bool {
		idx := key.(int)
		s.Log.WithError(value.(error)).WithField("task", tasks[idx].Name).Warn("background task returned an error")
		return true
	})

	result := &frame.Result{Kind: frame.KindTabular, Tabular: out}
	return result, firstErr
}
