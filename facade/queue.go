// File: facade/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Public facade: the one programmatic surface spec.md §6 describes,
// orchestrating internal/shm, internal/framing (via internal/ringqueue),
// codec, pool, and internal/fanout behind New/Open. Grounded on the
// teacher's facade.HioloadWS: one constructor wiring every subsystem, plus
// Start/Stop-style lifecycle methods, narrowed to this domain's surface.

package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/shmqueue/affinity"
	"github.com/momentics/shmqueue/api"
	"github.com/momentics/shmqueue/codec"
	"github.com/momentics/shmqueue/control"
	"github.com/momentics/shmqueue/internal/fanout"
	"github.com/momentics/shmqueue/internal/ringqueue"
	"github.com/momentics/shmqueue/internal/shm"
	"go.uber.org/zap"
)

// Queue is an attached shared-memory FIFO queue. It owns a default Handle
// so Queue.Put/Get/etc. work directly for single-goroutine callers;
// callers that want per-goroutine scratch isolation should call Handle()
// once per goroutine instead of sharing the Queue's default handle.
type Queue struct {
	def *Handle

	region *shm.Region
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	dispatcher *fanout.Dispatcher
	probes     *control.DebugProbes
	metrics    *control.MetricsRegistry // nil unless cfg.EnableMetrics
	runtime    *control.ConfigStore
}

// New creates (or attaches to, if another process got there first) the
// backing region named by cfg.Path and returns a ready-to-use Queue. The
// process-shared mutex/condvars are initialized exactly once regardless
// of how many processes race into New/Open for the same path.
func New(cfg Config) (*Queue, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("facade: Config.Path must be set")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.Codec == "" {
		cfg.Codec = "json"
	}
	if cfg.ScratchInit == 0 {
		cfg.ScratchInit = DefaultConfig().ScratchInit
	}

	region, _, err := shm.OpenOrCreate(cfg.Path, int(cfg.Capacity.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("facade: open region: %w", err)
	}
	if err := ringqueue.EnsureInitialized(region); err != nil {
		region.Close()
		return nil, fmt.Errorf("facade: initialize sync objects: %w", err)
	}

	cdc, err := codec.Default().Lookup(cfg.Codec)
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("facade: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ring := ringqueue.New(region)
	q := &Queue{
		def:     newHandle(region.Path(), cfg.Capacity, cfg.Codec, ring, cdc, int(cfg.ScratchInit.Bytes())),
		region:  region,
		cfg:     cfg,
		logger:  logger,
		probes:  control.NewDebugProbes(),
		runtime: control.NewConfigStore(),
	}
	control.RegisterPlatformProbes(q.probes)
	q.probes.RegisterProbe("shmqueue.path", func() any { return region.Path() })
	q.probes.RegisterProbe("shmqueue.capacity_bytes", func() any { return cfg.Capacity.Bytes() })
	q.runtime.SetConfig(map[string]any{
		"get_timeout": cfg.GetTimeout,
		"put_timeout": cfg.PutTimeout,
	})
	q.runtime.OnReload(func() {
		q.logger.Info("runtime config reloaded", zap.Any("config", q.runtime.GetSnapshot()))
	})
	if cfg.EnableMetrics {
		q.metrics = control.NewMetricsRegistry()
	}
	logger.Info("shmqueue attached", zap.String("path", region.Path()), zap.Uint64("capacity", cfg.Capacity.Bytes()))
	return q, nil
}

// Open reattaches to an existing queue using a Handle previously obtained
// from Queue.Handle() in another process (typically round-tripped through
// JSON/gob). Open does not check that the region exists: like New, it
// creates and initializes a fresh region if nothing is at h.Path.
func Open(h Handle) (*Queue, error) {
	cfg := Config{
		Path:        h.Path,
		Capacity:    h.Capacity,
		Codec:       h.Codec,
		ScratchInit: DefaultConfig().ScratchInit,
	}
	return New(cfg)
}

// Handle returns a fresh, independently-scratched attachment to this
// queue's shared region, suitable for handing to another goroutine or for
// serializing (its Path/Capacity/Codec fields only) to another process.
func (q *Queue) Handle() *Handle {
	return newHandle(q.region.Path(), q.cfg.Capacity, q.cfg.Codec, q.def.ring, q.def.cdc, int(q.cfg.ScratchInit.Bytes()))
}

// Put, PutMany, PutNowait, Get, GetMany, Size, Empty, Full, IsClosed, and
// Close forward to the Queue's default Handle, so single-goroutine callers
// never need to call Handle() themselves.

func (q *Queue) Put(ctx context.Context, value any) error {
	ctx, cancel := q.withPutDeadline(ctx)
	defer cancel()
	err := q.def.Put(ctx, value)
	q.tickMetric("put.last_error", err)
	return err
}
func (q *Queue) PutMany(ctx context.Context, values []any) error {
	ctx, cancel := q.withPutDeadline(ctx)
	defer cancel()
	err := q.def.PutMany(ctx, values)
	q.tickMetric("put_many.last_error", err)
	return err
}

func (q *Queue) PutNowait(value any) error { return q.def.PutNowait(value) }
func (q *Queue) Get(ctx context.Context) (any, error) {
	v, err := q.def.Get(ctx)
	q.tickMetric("get.last_error", err)
	return v, err
}
func (q *Queue) GetMany(ctx context.Context, maxMessages int) ([]any, error) {
	values, err := q.def.GetMany(ctx, maxMessages)
	q.tickMetric("get_many.last_error", err)
	return values, err
}
func (q *Queue) Size() (int, error)      { return q.def.Size() }
func (q *Queue) Empty() (bool, error)    { return q.def.Empty() }
func (q *Queue) Full() (bool, error)     { return q.def.Full() }
func (q *Queue) IsClosed() (bool, error) { return q.def.IsClosed() }
func (q *Queue) Close() error            { return q.def.Close() }

// withPutDeadline applies cfg.PutTimeout as a default deadline when ctx
// doesn't already carry one, so a caller that passes context.Background()
// still gets PutTimeout's bound on how long Put/PutMany will block waiting
// for room in the ring, rather than blocking indefinitely. A caller that
// already set its own deadline/cancellation is never overridden.
func (q *Queue) withPutDeadline(ctx context.Context) (context.Context, func()) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	q.mu.Lock()
	timeout := q.cfg.PutTimeout
	q.mu.Unlock()
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// tickMetric records the most recent outcome of a call under key, a
// no-op unless Config.EnableMetrics was set. control.MetricsRegistry is a
// last-value snapshot store rather than a cumulative counter, so this
// surfaces "is the last call of this kind failing" rather than a rate.
func (q *Queue) tickMetric(key string, err error) {
	if q.metrics == nil {
		return
	}
	if err != nil {
		q.metrics.Set(key, err.Error())
		return
	}
	q.metrics.Set(key, nil)
}

// RunConsumers starts a background fan-out: a dedicated goroutine drains
// GetMany batches from the queue and dispatches each value to handler
// across an internal/fanout.Dispatcher worker pool with one worker per
// cfg.CPUSet entry (at least one). If cfg.CPUSet was set, the drain
// goroutine calls affinity.SetAffinity(cfg.CPUSet[0]) on its current OS
// thread when it starts, mirroring the teacher's facade.Start()
// CPUAffinity/NUMANode pinning; the dispatcher's workers are not pinned.
// RunConsumers returns a stop function; calling it stops the drain loop
// and the dispatcher, but does not Close the queue itself.
func (q *Queue) RunConsumers(ctx context.Context, batchSize int, handler fanout.Handler) (stop func(), err error) {
	numWorkers := len(q.cfg.CPUSet)
	if numWorkers == 0 {
		numWorkers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	q.mu.Lock()
	if q.dispatcher != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("facade: consumers already running")
	}
	d := fanout.NewDispatcher(numWorkers, 1024, handler)
	q.dispatcher = d
	q.mu.Unlock()

	drainCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h := q.Handle()
		for i, cpu := range q.cfg.CPUSet {
			if i == 0 {
				if err := affinity.SetAffinity(cpu); err != nil {
					q.logger.Warn("affinity pin failed", zap.Int("cpu", cpu), zap.Error(err))
				}
			}
		}
		for {
			select {
			case <-drainCtx.Done():
				return
			default:
			}
			// A robust pthread_cond_wait cannot be interrupted by context
			// cancellation mid-wait, only by another signal/broadcast or its
			// own deadline; bound each wait so stop() is noticed promptly
			// instead of blocking indefinitely on an otherwise-empty queue.
			// Re-read the timeout every iteration so SetRuntimeConfig takes
			// effect on a running consumer without a restart.
			waitCtx, cancelWait := context.WithTimeout(context.Background(), q.pollTimeout())
			values, err := h.GetMany(waitCtx, batchSize)
			cancelWait()
			if err != nil {
				// ErrEmpty covers both a genuinely empty ring and a
				// closed-and-drained one (Handle.GetMany's mapping);
				// either way the drain loop just waits for drainCtx to
				// end or more records to arrive.
				if err != api.ErrEmpty {
					q.logger.Warn("consumer drain error", zap.Error(err))
				}
				continue
			}
			for _, v := range values {
				d.Submit(v)
			}
		}
	}()

	stop = func() {
		cancel()
		wg.Wait()
		q.mu.Lock()
		if q.dispatcher != nil {
			q.dispatcher.Close()
			q.dispatcher = nil
		}
		q.mu.Unlock()
	}
	return stop, nil
}

var _ api.Debug = (*Queue)(nil)

// DumpState reports the ring's current occupancy and closed state plus
// every registered probe and (if Config.EnableMetrics) metric, following
// the teacher's api.Debug contract over control.DebugProbes/MetricsRegistry.
func (q *Queue) DumpState() map[string]any {
	size, _ := q.Size()
	closed, _ := q.IsClosed()
	state := q.probes.DumpState()
	state["path"] = q.region.Path()
	state["capacity"] = q.cfg.Capacity.Bytes()
	state["size"] = size
	state["closed"] = closed
	state["codec"] = q.cfg.Codec
	for k, v := range q.runtime.GetSnapshot() {
		state["runtime."+k] = v
	}
	if q.metrics != nil {
		for k, v := range q.metrics.GetSnapshot() {
			state["metric."+k] = v
		}
	}
	return state
}

// RegisterProbe registers an additional named diagnostic surfaced by
// DumpState.
func (q *Queue) RegisterProbe(name string, fn func() any) {
	q.probes.RegisterProbe(name, fn)
}

// SetRuntimeConfig hot-reloads GetTimeout/PutTimeout for a running queue
// without restarting RunConsumers, via control.ConfigStore. A running
// drain loop picks up a new "get_timeout" on its next poll iteration.
// Unrecognized keys are stored in the snapshot (visible via DumpState)
// but have no effect.
func (q *Queue) SetRuntimeConfig(updates map[string]any) {
	q.runtime.SetConfig(updates)
	q.mu.Lock()
	if v, ok := updates["get_timeout"].(time.Duration); ok {
		q.cfg.GetTimeout = v
	}
	if v, ok := updates["put_timeout"].(time.Duration); ok {
		q.cfg.PutTimeout = v
	}
	q.mu.Unlock()
}

func (q *Queue) pollTimeout() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cfg.GetTimeout <= 0 {
		return DefaultConfig().GetTimeout
	}
	return q.cfg.GetTimeout
}

// Detach unmaps this process's view of the region without flipping the
// logical closed flag or removing the backing file — for a short-lived
// attacher (e.g. shmqctl produce) that is done without being the queue's
// owner.
func (q *Queue) Detach() error {
	return q.region.Close()
}

// Unlink removes the backing region's filesystem path. Call it only after
// every attaching process has Closed; it does not invalidate mappings
// already held elsewhere, matching internal/shm.Region.Unlink's contract.
func (q *Queue) Unlink() error {
	return q.region.Unlink()
}

// Destroy is the last holder's teardown: it logically Closes the queue,
// unmaps this process's view of the region, and removes the backing
// file. Other processes still attached keep a valid mapping until they
// Close their own Region, per internal/shm.Region's contract.
func (q *Queue) Destroy() error {
	if err := q.def.Close(); err != nil {
		return err
	}
	if err := q.region.Close(); err != nil {
		return err
	}
	return q.region.Unlink()
}
