// Package telemetry exposes scheduler activity as OpenTelemetry metrics.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "stridesched/internal/sched"

// Recorder holds the scheduler's instruments. A nil *Recorder records nothing.
type Recorder struct {
	dispatches metric.Int64Counter
	syscalls   metric.Int64Counter
	ready      metric.Int64UpDownCounter
	slices     metric.Int64Histogram
}

// NewRecorder creates the instruments on provider, or on the global provider
// when provider is nil.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	dispatches, err := meter.Int64Counter("sched.dispatches",
		metric.WithDescription("Tasks handed out by the stride scheduler"))
	if err != nil {
		return nil, fmt.Errorf("create dispatch counter: %w", err)
	}
	syscalls, err := meter.Int64Counter("sched.syscalls",
		metric.WithDescription("Syscalls issued by running tasks"))
	if err != nil {
		return nil, fmt.Errorf("create syscall counter: %w", err)
	}
	ready, err := meter.Int64UpDownCounter("sched.ready_queue.depth",
		metric.WithDescription("Tasks waiting in the ready queue"))
	if err != nil {
		return nil, fmt.Errorf("create ready queue gauge: %w", err)
	}
	slices, err := meter.Int64Histogram("sched.slice.ticks",
		metric.WithDescription("Ticks a task ran per dispatch"),
		metric.WithUnit("{tick}"))
	if err != nil {
		return nil, fmt.Errorf("create slice histogram: %w", err)
	}

	return &Recorder{
		dispatches: dispatches,
		syscalls:   syscalls,
		ready:      ready,
		slices:     slices,
	}, nil
}

func (r *Recorder) Dispatch(ctx context.Context, taskID uint64) {
	if r == nil {
		return
	}
	r.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.Int64("task.id", int64(taskID))))
	r.ready.Add(ctx, -1)
}

func (r *Recorder) Enqueue(ctx context.Context) {
	if r == nil {
		return
	}
	r.ready.Add(ctx, 1)
}

func (r *Recorder) Syscall(ctx context.Context, taskID uint64, id int) {
	if r == nil {
		return
	}
	r.syscalls.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.Int("syscall.id", id),
	))
}

// Slice records how long one dispatch ran and how it ended.
func (r *Recorder) Slice(ctx context.Context, taskID uint64, ticks int64, outcome string) {
	if r == nil {
		return
	}
	r.slices.Record(ctx, ticks, metric.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.String("outcome", outcome),
	))
}

// NewStdoutMeterProvider exports every interval to w as JSON.
// Callers must Shutdown the provider to flush the last batch.
func NewStdoutMeterProvider(w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil
}
