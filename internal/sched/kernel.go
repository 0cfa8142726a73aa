// internal/sched/kernel.go

package sched

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"stridesched/internal/logging"
	"stridesched/internal/telemetry"
)

var ErrAlreadyRunning = errors.New("kernel already running")

// Kernel owns the task table, the stride scheduler and the tick clock, and
// runs the dispatch loop on a single simulated CPU. Status changes are
// streamed to the logger, an optional CSV trace and the metrics recorder.
type Kernel struct {
	cfg      Config
	runID    string
	log      *slog.Logger
	clock    *TickClock // slice ticks
	now      Clock      // millisecond time seen by tasks
	observer func(StatusEvent)
	table    *TaskTable
	manager  *TaskManager
	recorder *telemetry.Recorder
	statusCh chan StatusEvent

	mu      sync.RWMutex // guards running/started and sends on statusCh
	running bool
	started bool

	// trace output, touched only under traceMu
	traceMu   sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer
}

// Option configures a Kernel.
type Option func(k *Kernel)

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) { k.log = logger }
}

func WithRecorder(recorder *telemetry.Recorder) Option {
	return func(k *Kernel) { k.recorder = recorder }
}

// WithClock replaces the tick clock as the source of task time
// (first launch, runtime, get_time). Slices are still measured in ticks.
func WithClock(clock Clock) Option {
	return func(k *Kernel) { k.now = clock }
}

// WithObserver receives every event, ticks included, before it is logged.
// It runs on the goroutine consuming events and must not block.
func WithObserver(fn func(StatusEvent)) Option {
	return func(k *Kernel) { k.observer = fn }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(k *Kernel) { k.runID = id }
}

// NewKernel builds an idle kernel. Nothing runs until Run is called.
func NewKernel(cfg Config, opts ...Option) *Kernel {
	cfg.clamp()
	clock := NewTickClock(256, cfg.TickMS)

	k := &Kernel{
		cfg:      cfg,
		runID:    uuid.NewString(),
		log:      logging.Discard(),
		clock:    clock,
		now:      clock,
		statusCh: make(chan StatusEvent, 256),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.table = NewTaskTable(cfg.BigStride, k.now)
	k.manager = NewTaskManager(k.table)
	k.log = k.log.With("run_id", k.runID)
	return k
}

func (k *Kernel) RunID() string { return k.runID }
func (k *Kernel) Clock() Clock { return k.now }
func (k *Kernel) Table() *TaskTable { return k.table }
func (k *Kernel) Manager() *TaskManager { return k.manager }
func (k *Kernel) Config() Config { return k.cfg }

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (k *Kernel) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv trace: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"run_id", "timestamp", "tick", "event", "task_id", "stride", "priority", "ran_ticks"}); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()

	k.traceMu.Lock()
	k.csvFile = f
	k.csvWriter = w
	k.traceMu.Unlock()
	return nil
}

// Spawn creates a task and puts it on the ready queue.
// A priority of 0 selects the configured default.
func (k *Kernel) Spawn(priority uint64, work Work) (TaskID, error) {
	if priority == 0 {
		priority = k.cfg.DefaultPriority
	}
	if priority < MinPriority {
		return 0, fmt.Errorf("spawn: priority %d below %d: %w", priority, MinPriority, ErrInvalidPriority)
	}

	tcb := k.table.Spawn(priority, work)
	if err := tcb.Transition(StatusReady); err != nil {
		return 0, fmt.Errorf("spawn: %w", err)
	}
	k.AddTask(tcb.ID)

	k.emit(StatusEvent{
		Kind:     EventEnqueue,
		TaskID:   tcb.ID,
		Stride:   tcb.Stride(),
		Priority: priority,
	})
	return tcb.ID, nil
}

// AddTask returns a Ready task to the scheduler.
func (k *Kernel) AddTask(id TaskID) {
	k.manager.Add(id)
	k.recorder.Enqueue(context.Background())
}

// FetchTask takes the scheduler's next choice off the ready queue.
func (k *Kernel) FetchTask() (TaskID, bool) {
	return k.manager.Fetch()
}

// Info reports the task_info view of any task in the table.
func (k *Kernel) Info(id TaskID) (TaskInfo, error) {
	tcb, ok := k.table.Get(id)
	if !ok {
		return TaskInfo{}, fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	return infoOf(tcb), nil
}

// SetPriority reweights a task from outside; it takes effect at its next dispatch.
func (k *Kernel) SetPriority(id TaskID, priority uint64) error {
	tcb, ok := k.table.Get(id)
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrUnknownTask)
	}
	if err := tcb.SetPriority(priority); err != nil {
		return err
	}
	k.emit(StatusEvent{
		Kind:     EventPriorityUpdate,
		TaskID:   id,
		Stride:   tcb.Stride(),
		Priority: priority,
	})
	return nil
}

// Run drives the dispatch loop until ctx is done or, with ExitWhenIdle,
// until the ready queue drains. A kernel runs at most once.
func (k *Kernel) Run(ctx context.Context) error {
	k.mu.Lock()
	if k.started {
		k.mu.Unlock()
		return ErrAlreadyRunning
	}
	k.started = true
	k.mu.Unlock()

	k.traceMu.Lock()
	needTrace := k.cfg.CSVPath != "" && k.csvWriter == nil
	k.traceMu.Unlock()
	if needTrace {
		if err := k.EnableCSVLogging(k.cfg.CSVPath); err != nil {
			return err
		}
	}

	k.mu.Lock()
	k.running = true
	k.mu.Unlock()

	k.log.Info("kernel started",
		"tick_ms", k.cfg.TickMS,
		"slice_ticks", k.cfg.SliceTicks,
		"big_stride", k.cfg.BigStride,
		"ready", k.manager.Len())

	k.clock.Start()
	go k.loop(ctx)

	// consume events
	for ev := range k.statusCh {
		k.handleEvent(ev)
	}

	k.log.Info("kernel stopped", "ticks", k.clock.Count(), "live", k.table.Live())

	k.traceMu.Lock()
	defer k.traceMu.Unlock()
	if k.csvFile != nil {
		k.csvWriter.Flush()
		err := errors.Join(k.csvWriter.Error(), k.csvFile.Close())
		k.csvFile, k.csvWriter = nil, nil
		if err != nil {
			return fmt.Errorf("close csv trace: %w", err)
		}
	}
	return nil
}

// loop runs the main dispatch loop, which is responsible for selecting the next task
func (k *Kernel) loop(ctx context.Context) {
	defer func() {
		// stop the underlying clock to release its goroutine
		k.clock.Stop()
		k.mu.Lock()
		k.running = false
		close(k.statusCh)
		k.mu.Unlock()
	}()

	for {
		// 1) check shutdown
		if ctx.Err() != nil {
			return
		}

		// 2) idle case: nothing runnable, wait out one tick
		id, ok := k.FetchTask()
		if !ok {
			if k.cfg.ExitWhenIdle {
				return
			}
			select {
			case <-k.clock.Ch:
			case <-ctx.Done():
				return
			}
			k.emit(StatusEvent{Kind: EventIdle})
			continue
		}

		// 3) dispatch next task
		k.dispatch(ctx, id)
	}
}

func (k *Kernel) dispatch(ctx context.Context, id TaskID) {
	tcb, ok := k.table.Get(id)
	if !ok {
		panic(fmt.Sprintf("sched: fetched task %d which is not in the task table", id))
	}
	if err := tcb.Transition(StatusRunning); err != nil {
		// only Ready tasks may be queued
		panic(fmt.Sprintf("sched: dispatch: %v", err))
	}
	tcb.RecordFirstLaunchTime()
	k.recorder.Dispatch(ctx, uint64(id))

	// emit dispatch event
	k.emit(StatusEvent{
		Kind:     EventDispatch,
		TaskID:   id,
		Stride:   tcb.Stride(),
		Priority: tcb.Priority(),
	})

	// 4) run at most sliceTicks
	startTick := k.clock.Count()
	runCtx, cancel := context.WithCancel(ctx)
	watcherDone := make(chan struct{})
	// watcher: cancel the dispatched context(task) after sliceTicks
	go func() {
		defer close(watcherDone)
		defer cancel()
		// ticks may be buffered from before the dispatch, so count the clock
		for k.clock.Count()-startTick < int64(k.cfg.SliceTicks) {
			select {
			case <-k.clock.Ch:
			case <-runCtx.Done():
				return
			}
			k.emit(StatusEvent{Kind: EventTick, TaskID: id})
		}
	}()

	var err error
	if tcb.Work != nil {
		err = tcb.Work(runCtx, &taskSyscalls{ctx: runCtx, k: k, tcb: tcb})
	}
	cancel()
	<-watcherDone

	// how many ticks did we really run?
	ranTicks := k.clock.Count() - startTick
	if ranTicks <= 0 {
		ranTicks = 1
	}
	tcb.saveContext(ranTicks)

	// 5) requeue or finish
	//    - nil means the task is done.
	//    - ErrYield or a cancelled slice puts it back on the ready queue.
	//    - anything else kills it.
	ev := StatusEvent{TaskID: id, RanTicks: ranTicks, Priority: tcb.Priority()}
	switch {
	case err == nil:
		ev.Kind = EventExit
		k.mustTransition(tcb, StatusExited)
	case errors.Is(err, ErrYield):
		ev.Kind = EventYield
		k.mustTransition(tcb, StatusReady)
		k.AddTask(id)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ev.Kind = EventPreempt
		k.mustTransition(tcb, StatusReady)
		k.AddTask(id)
	default:
		ev.Kind = EventFail
		ev.Err = err
		k.mustTransition(tcb, StatusExited)
	}
	ev.Stride = tcb.Stride()
	k.recorder.Slice(ctx, uint64(id), ranTicks, ev.Kind.String())

	// 6) emit final event
	k.emit(ev)
}

func (k *Kernel) mustTransition(tcb *TaskControlBlock, next TaskStatus) {
	if err := tcb.Transition(next); err != nil {
		panic(fmt.Sprintf("sched: %v", err))
	}
}

// emit hands an event to the Run consumer, or handles it inline when no
// consumer is running.
func (k *Kernel) emit(ev StatusEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	k.mu.RLock()
	if k.running {
		k.statusCh <- ev
		k.mu.RUnlock()
		return
	}
	k.mu.RUnlock()
	k.handleEvent(ev)
}

func (k *Kernel) handleEvent(ev StatusEvent) {
	if k.observer != nil {
		k.observer(ev)
	}
	// ticks are frequent and carry nothing the slice events don't
	if ev.Kind == EventTick {
		return
	}

	tick := k.clock.Count()

	attrs := []any{
		"tick", tick,
		"event", ev.Kind.String(),
	}
	if ev.Kind != EventIdle {
		attrs = append(attrs, "task_id", ev.TaskID, "stride", ev.Stride, "priority", ev.Priority)
	}
	if ev.RanTicks > 0 {
		attrs = append(attrs, "ran_ticks", ev.RanTicks)
	}

	switch ev.Kind {
	case EventIdle:
		// idle ticks are frequent, keep them out of the default output
		k.log.Debug("scheduler idle", attrs...)
	case EventFail:
		k.log.Error("task failed", append(attrs, "error", ev.Err)...)
	default:
		k.log.Info("scheduler event", attrs...)
	}

	// CSV output
	k.traceMu.Lock()
	defer k.traceMu.Unlock()
	if k.csvWriter != nil && ev.Kind != EventIdle {
		rec := []string{
			k.runID,
			ev.Time.Format(time.RFC3339Nano),
			strconv.FormatInt(tick, 10),
			ev.Kind.String(),
			strconv.FormatUint(uint64(ev.TaskID), 10),
			strconv.FormatUint(ev.Stride, 10),
			strconv.FormatUint(ev.Priority, 10),
			strconv.FormatInt(ev.RanTicks, 10),
		}
		if err := k.csvWriter.Write(rec); err != nil {
			k.log.Warn("csv trace write failed", "error", err)
		}
		k.csvWriter.Flush()
	}
}
