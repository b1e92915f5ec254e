package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sysdash/internal/models"
	"sysdash/internal/utils"
)

// Tick interval bounds in seconds. Out-of-range requests are clamped.
const (
	MinIntervalSeconds     = 1
	MaxIntervalSeconds     = 30
	DefaultIntervalSeconds = 10
)

// DefaultCPUWindow matches the original dashboard's one-second blocking CPU
// read. The CPU read blocks inside the tick, so the effective tick period is
// max(interval, cpu window): while a tick runs, the ticker buffers at most
// one pending tick, which fires immediately after; any further ticks are
// dropped.
const DefaultCPUWindow = time.Second

// ClampIntervalSeconds clamps a requested tick interval to the supported bounds.
func ClampIntervalSeconds(n int) int {
	if n < MinIntervalSeconds {
		return MinIntervalSeconds
	}
	if n > MaxIntervalSeconds {
		return MaxIntervalSeconds
	}
	return n
}

// Renderer turns series snapshots into a dashboard frame. Implemented by
// render.Renderer.
type Renderer interface {
	Frame(snapshots map[string][]models.Sample, at time.Time) (models.DashboardFrame, error)
}

// Sink receives the rendered frame once per tick. A sink must not block the
// next tick; broadcast-style sinks should drop slow consumers instead.
type Sink interface {
	PublishFrame(frame models.DashboardFrame) error
}

// Sampler drives the sample → store → render cycle. One goroutine owns the
// whole cycle: no parallel ticks, and the store is mutated only from here.
type Sampler struct {
	source   Source
	store    *Store
	renderer Renderer
	sink     Sink
	clock    Clock
	logger   *utils.Logger

	mu        sync.Mutex
	interval  time.Duration
	cpuWindow time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSampler wires a sampler over the given collaborators. intervalSeconds is
// clamped to the supported bounds.
func NewSampler(source Source, store *Store, renderer Renderer, sink Sink, clock Clock, logger *utils.Logger, intervalSeconds int) *Sampler {
	return &Sampler{
		source:    source,
		store:     store,
		renderer:  renderer,
		sink:      sink,
		clock:     clock,
		logger:    logger,
		interval:  time.Duration(ClampIntervalSeconds(intervalSeconds)) * time.Second,
		cpuWindow: DefaultCPUWindow,
		stopCh:    make(chan struct{}),
	}
}

// SetCPUWindow overrides the blocking CPU sampling window. Intended for
// configuration at startup; takes effect on the next tick.
func (s *Sampler) SetCPUWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultCPUWindow
	}
	s.mu.Lock()
	s.cpuWindow = window
	s.mu.Unlock()
}

// SetIntervalSeconds changes the tick interval, clamped to the supported
// bounds. Takes effect at the next tick boundary without restarting the loop.
func (s *Sampler) SetIntervalSeconds(n int) int {
	clamped := ClampIntervalSeconds(n)
	if clamped != n {
		s.logf("Tick interval %ds out of range, clamped to %ds", n, clamped)
	}
	s.mu.Lock()
	s.interval = time.Duration(clamped) * time.Second
	s.mu.Unlock()
	return clamped
}

// IntervalSeconds returns the currently configured tick interval.
func (s *Sampler) IntervalSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.interval / time.Second)
}

// SetHistoryLength changes the per-series capacity, clamped, trimming
// immediately when shrinking.
func (s *Sampler) SetHistoryLength(n int) int {
	clamped := ClampHistory(n)
	if clamped != n {
		s.logf("History length %d out of range, clamped to %d", n, clamped)
	}
	s.store.SetCapacity(clamped)
	return clamped
}

// HistoryLength returns the current per-series capacity.
func (s *Sampler) HistoryLength() int {
	return s.store.Capacity()
}

// Start launches the sampling loop. The first tick runs immediately so the
// dashboard is populated before the first interval elapses.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Stop signals the loop to terminate at the next idle boundary and waits for
// it to finish. Safe to call more than once.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Sampler) run() {
	ctx := context.Background()
	interval := s.currentInterval()
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C():
			s.tick(ctx)
			// Interval changes apply here, at the idle boundary.
			if next := s.currentInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sampler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Sampler) currentCPUWindow() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cpuWindow
}

// sampleResult pairs one tick's snapshot with which metrics were actually
// read; a failed metric leaves its flag false and its field zero.
type sampleResult struct {
	snapshot models.SystemSnapshot
	gotProcs bool
	gotCPU   bool
	gotMem   bool
}

// sample reads every tracked metric into a transient snapshot. A failing
// metric is skipped for this tick; the rest are still collected.
func (s *Sampler) sample(ctx context.Context) sampleResult {
	res := sampleResult{snapshot: models.SystemSnapshot{SampledAt: s.clock.Now()}}

	if procs, err := s.source.ProcessCount(ctx); err != nil {
		s.logf("Skipping process sample: %v", err)
	} else {
		res.snapshot.ProcessCount = procs
		res.gotProcs = true
	}

	if cpuPct, err := s.source.CPUPercent(ctx, s.currentCPUWindow()); err != nil {
		s.logf("Skipping cpu sample: %v", err)
	} else {
		res.snapshot.CPUPercent = cpuPct
		res.gotCPU = true
	}

	if usedMB, err := s.source.MemoryUsedMB(ctx); err != nil {
		s.logf("Skipping memory sample: %v", err)
	} else {
		res.snapshot.MemoryUsedMB = usedMB
		res.gotMem = true
	}

	return res
}

// tick folds one sample into the rolling series and publishes a rendered
// frame. Render or publish failures leave the display stale but never stop
// the loop.
func (s *Sampler) tick(ctx context.Context) {
	res := s.sample(ctx)
	at := res.snapshot.SampledAt
	if res.gotProcs {
		s.store.Append(models.MetricProcesses, at, float64(res.snapshot.ProcessCount))
	}
	if res.gotCPU {
		s.store.Append(models.MetricCPU, at, res.snapshot.CPUPercent)
	}
	if res.gotMem {
		s.store.Append(models.MetricMemory, at, float64(res.snapshot.MemoryUsedMB))
	}

	frame, err := s.renderer.Frame(s.store.Snapshots(), s.clock.Now())
	if err != nil {
		s.logf("Render failed, keeping previous frame: %v", err)
		return
	}
	if err := s.sink.PublishFrame(frame); err != nil {
		s.logf("Publish failed: %v", err)
	}
}

func (s *Sampler) logf(format string, args ...interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.Write(fmt.Sprintf(format, args...))
}
