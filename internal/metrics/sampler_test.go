package metrics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"sysdash/internal/models"
)

type fakeSource struct {
	mu      sync.Mutex
	procs   []int
	procIdx int
	procErr error
	cpu     float64
	cpuErr  error
	windows []time.Duration
	mem     uint64
	memErr  error
}

func (f *fakeSource) ProcessCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.procErr != nil {
		return 0, f.procErr
	}
	if f.procIdx >= len(f.procs) {
		return f.procs[len(f.procs)-1], nil
	}
	v := f.procs[f.procIdx]
	f.procIdx++
	return v, nil
}

func (f *fakeSource) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, window)
	if f.cpuErr != nil {
		return 0, f.cpuErr
	}
	return f.cpu, nil
}

func (f *fakeSource) MemoryUsedMB(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memErr != nil {
		return 0, f.memErr
	}
	return f.mem, nil
}

func (f *fakeSource) StaticInfo(ctx context.Context) (models.StaticInfo, error) {
	return models.StaticInfo{OSName: "testos", CoreCount: 4, TotalRAMMB: 16000}, nil
}

func (f *fakeSource) setCPUErr(err error) {
	f.mu.Lock()
	f.cpuErr = err
	f.mu.Unlock()
}

func (f *fakeSource) recordedWindows() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.windows))
	copy(out, f.windows)
	return out
}

type fakeTicker struct {
	mu     sync.Mutex
	ch     chan time.Time
	resets []time.Duration
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Reset(d time.Duration) {
	f.mu.Lock()
	f.resets = append(f.resets, d)
	f.mu.Unlock()
}

func (f *fakeTicker) Stop() {}

func (f *fakeTicker) recordedResets() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.resets))
	copy(out, f.resets)
	return out
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    baseTime(),
		ticker: &fakeTicker{ch: make(chan time.Time, 1)},
	}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(d time.Duration) Ticker { return f.ticker }

// tryFire advances the clock and delivers one tick only if the ticker can
// accept it, mirroring time.Ticker's one-slot buffer.
func (f *fakeClock) tryFire() bool {
	f.mu.Lock()
	f.now = f.now.Add(time.Second)
	now := f.now
	f.mu.Unlock()
	select {
	case f.ticker.ch <- now:
		return true
	default:
		return false
	}
}

// fire advances the clock and delivers one tick.
func (f *fakeClock) fire(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	f.now = f.now.Add(time.Second)
	now := f.now
	f.mu.Unlock()
	select {
	case f.ticker.ch <- now:
	case <-time.After(time.Second):
		t.Fatal("sampler did not consume tick")
	}
}

type stubRenderer struct{}

func (stubRenderer) Frame(snapshots map[string][]models.Sample, at time.Time) (models.DashboardFrame, error) {
	return models.DashboardFrame{GeneratedAt: at}, nil
}

type errRenderer struct{}

func (errRenderer) Frame(snapshots map[string][]models.Sample, at time.Time) (models.DashboardFrame, error) {
	return models.DashboardFrame{}, fmt.Errorf("render exploded")
}

type chanSink struct {
	frames chan models.DashboardFrame
}

func newChanSink() *chanSink {
	return &chanSink{frames: make(chan models.DashboardFrame, 32)}
}

func (s *chanSink) PublishFrame(frame models.DashboardFrame) error {
	s.frames <- frame
	return nil
}

// wait blocks until the sampler finishes a tick and publishes its frame.
func (s *chanSink) wait(t *testing.T) models.DashboardFrame {
	t.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame published")
		return models.DashboardFrame{}
	}
}

func newTestSampler(source Source, store *Store, renderer Renderer, sink Sink, clock Clock) *Sampler {
	return NewSampler(source, store, renderer, sink, clock, nil, 1)
}

func TestSamplerRollingWindowEndToEnd(t *testing.T) {
	source := &fakeSource{procs: []int{100, 101, 102, 103}, cpu: 5, mem: 500}
	store := NewStore(3, models.MetricNames...)
	sink := newChanSink()
	clock := newFakeClock()

	s := newTestSampler(source, store, stubRenderer{}, sink, clock)
	s.Start()
	defer s.Stop()

	sink.wait(t) // immediate first tick
	clock.fire(t)
	sink.wait(t)
	clock.fire(t)
	sink.wait(t)

	assertValues(t, store.Snapshot(models.MetricProcesses), 100, 101, 102)

	clock.fire(t)
	sink.wait(t)

	assertValues(t, store.Snapshot(models.MetricProcesses), 101, 102, 103)
}

func TestSamplerPartialFailureSkipsOnlyFailedMetric(t *testing.T) {
	source := &fakeSource{procs: []int{100, 101}, cpu: 5, mem: 500}
	store := NewStore(10, models.MetricNames...)
	sink := newChanSink()
	clock := newFakeClock()

	s := newTestSampler(source, store, stubRenderer{}, sink, clock)
	s.Start()
	defer s.Stop()

	sink.wait(t)

	source.setCPUErr(fmt.Errorf("%w: cpu busy", ErrMetricUnavailable))
	clock.fire(t)
	sink.wait(t)

	if got := store.Len(models.MetricCPU); got != 1 {
		t.Fatalf("cpu series should be unchanged by the failed tick, len %d", got)
	}
	if got := store.Len(models.MetricProcesses); got != 2 {
		t.Fatalf("process series should still update, len %d", got)
	}
	if got := store.Len(models.MetricMemory); got != 2 {
		t.Fatalf("memory series should still update, len %d", got)
	}

	source.setCPUErr(nil)
	clock.fire(t)
	sink.wait(t)

	if got := store.Len(models.MetricCPU); got != 2 {
		t.Fatalf("cpu series should resume, len %d", got)
	}
}

func TestSamplerRenderFailureKeepsLoopAlive(t *testing.T) {
	source := &fakeSource{procs: []int{100, 101, 102}, cpu: 5, mem: 500}
	store := NewStore(10, models.MetricNames...)
	clock := newFakeClock()

	s := newTestSampler(source, store, errRenderer{}, newChanSink(), clock)
	s.Start()

	// Ticks still append even though every render fails.
	clock.fire(t)
	clock.fire(t)
	s.Stop()

	if got := store.Len(models.MetricProcesses); got < 2 {
		t.Fatalf("expected at least 2 process samples despite render failures, got %d", got)
	}
}

func TestSamplerStopTerminatesAtIdleBoundary(t *testing.T) {
	source := &fakeSource{procs: []int{100}, cpu: 5, mem: 500}
	store := NewStore(10, models.MetricNames...)
	sink := newChanSink()
	clock := newFakeClock()

	s := newTestSampler(source, store, stubRenderer{}, sink, clock)
	s.Start()
	sink.wait(t)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	// Stop is idempotent.
	s.Stop()

	if got := store.Len(models.MetricProcesses); got != 1 {
		t.Fatalf("no ticks should run after stop, len %d", got)
	}
}

func TestSamplerIntervalClampedAndAppliedNextTick(t *testing.T) {
	source := &fakeSource{procs: []int{100}, cpu: 5, mem: 500}
	store := NewStore(10, models.MetricNames...)
	sink := newChanSink()
	clock := newFakeClock()

	s := newTestSampler(source, store, stubRenderer{}, sink, clock)
	s.Start()
	defer s.Stop()
	sink.wait(t)

	if got := s.SetIntervalSeconds(99); got != MaxIntervalSeconds {
		t.Fatalf("expected clamp to %d, got %d", MaxIntervalSeconds, got)
	}
	if got := s.SetIntervalSeconds(0); got != MinIntervalSeconds {
		t.Fatalf("expected clamp to %d, got %d", MinIntervalSeconds, got)
	}
	s.SetIntervalSeconds(25)

	// The new interval is picked up at the tick boundary, not mid-cycle.
	clock.fire(t)
	sink.wait(t)
	clock.fire(t)
	sink.wait(t)

	resets := clock.ticker.recordedResets()
	if len(resets) == 0 || resets[len(resets)-1] != 25*time.Second {
		t.Fatalf("expected ticker reset to 25s, got %v", resets)
	}
}

func TestSamplerHistoryLengthClamped(t *testing.T) {
	source := &fakeSource{procs: []int{100}, cpu: 5, mem: 500}
	store := NewStore(30, models.MetricNames...)
	s := newTestSampler(source, store, stubRenderer{}, newChanSink(), newFakeClock())

	if got := s.SetHistoryLength(5); got != MinHistory {
		t.Fatalf("expected clamp to %d, got %d", MinHistory, got)
	}
	if got := s.SetHistoryLength(999); got != MaxHistory {
		t.Fatalf("expected clamp to %d, got %d", MaxHistory, got)
	}
	if got := s.HistoryLength(); got != MaxHistory {
		t.Fatalf("expected capacity %d, got %d", MaxHistory, got)
	}
}

func TestSamplerSampleBuildsSnapshot(t *testing.T) {
	source := &fakeSource{procs: []int{250}, cpu: 12.5, mem: 4096}
	store := NewStore(10, models.MetricNames...)
	clock := newFakeClock()
	s := newTestSampler(source, store, stubRenderer{}, newChanSink(), clock)

	res := s.sample(context.Background())
	if !res.gotProcs || !res.gotCPU || !res.gotMem {
		t.Fatalf("all metrics should be collected: %+v", res)
	}
	snap := res.snapshot
	if snap.ProcessCount != 250 || snap.CPUPercent != 12.5 || snap.MemoryUsedMB != 4096 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.SampledAt.Equal(clock.Now()) {
		t.Fatalf("sampled at = %v, want clock time %v", snap.SampledAt, clock.Now())
	}
}

func TestSamplerSampleMarksFailedMetric(t *testing.T) {
	source := &fakeSource{procs: []int{250}, cpu: 12.5, mem: 4096}
	source.setCPUErr(fmt.Errorf("%w: cpu busy", ErrMetricUnavailable))
	store := NewStore(10, models.MetricNames...)
	s := newTestSampler(source, store, stubRenderer{}, newChanSink(), newFakeClock())

	res := s.sample(context.Background())
	if !res.gotProcs || !res.gotMem {
		t.Fatalf("healthy metrics should still be collected: %+v", res)
	}
	if res.gotCPU {
		t.Fatal("failed cpu read should not be marked collected")
	}
	if res.snapshot.CPUPercent != 0 {
		t.Fatalf("failed metric should stay zero, got %v", res.snapshot.CPUPercent)
	}
}

// blockingSource parks every CPU read on a channel so tests can hold a tick
// open longer than the tick interval.
type blockingSource struct {
	mu         sync.Mutex
	inCPU      bool
	overlapped bool
	cpuReads   int
	release    chan struct{}
}

func (b *blockingSource) ProcessCount(ctx context.Context) (int, error) { return 100, nil }

func (b *blockingSource) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	b.mu.Lock()
	if b.inCPU {
		b.overlapped = true
	}
	b.inCPU = true
	b.cpuReads++
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.inCPU = false
	b.mu.Unlock()
	return 5, nil
}

func (b *blockingSource) MemoryUsedMB(ctx context.Context) (uint64, error) { return 500, nil }

func (b *blockingSource) StaticInfo(ctx context.Context) (models.StaticInfo, error) {
	return models.StaticInfo{}, nil
}

func (b *blockingSource) reads() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cpuReads, b.overlapped
}

func waitForCPUReads(t *testing.T, source *blockingSource, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		if got, _ := source.reads(); got >= want {
			return
		}
		if time.Now().After(deadline) {
			got, _ := source.reads()
			t.Fatalf("expected %d cpu reads, got %d", want, got)
		}
		time.Sleep(time.Millisecond)
	}
}

// A CPU window longer than the tick interval throttles the loop to the
// window: ticks never overlap, one delayed tick runs immediately after the
// blocked tick finishes, and everything beyond that is dropped.
func TestSamplerLongCPUWindowThrottlesTicks(t *testing.T) {
	source := &blockingSource{release: make(chan struct{})}
	store := NewStore(10, models.MetricNames...)
	sink := newChanSink()
	clock := newFakeClock()

	s := newTestSampler(source, store, stubRenderer{}, sink, clock)
	s.Start()

	// The immediate first tick is now parked inside its CPU read.
	waitForCPUReads(t, source, 1)

	if !clock.tryFire() {
		t.Fatal("one tick should buffer while the cpu read blocks")
	}
	if clock.tryFire() {
		t.Fatal("further ticks should be dropped while the cpu read blocks")
	}

	source.release <- struct{}{}
	sink.wait(t)

	// The buffered tick starts immediately once the blocked tick finishes.
	waitForCPUReads(t, source, 2)
	source.release <- struct{}{}
	sink.wait(t)

	s.Stop()

	reads, overlapped := source.reads()
	if overlapped {
		t.Fatal("cpu reads overlapped; ticks must never run in parallel")
	}
	if reads != 2 {
		t.Fatalf("expected exactly 2 cpu reads (blocked + buffered), got %d", reads)
	}
	// The dropped tick never ran: only the first tick and the buffered one
	// appended, so the amortized period is the cpu window, not the interval.
	if got := store.Len(models.MetricProcesses); got != 2 {
		t.Fatalf("expected 2 process samples, got %d", got)
	}
}

func TestSamplerUsesConfiguredCPUWindow(t *testing.T) {
	source := &fakeSource{procs: []int{100}, cpu: 5, mem: 500}
	store := NewStore(10, models.MetricNames...)
	sink := newChanSink()
	clock := newFakeClock()

	s := newTestSampler(source, store, stubRenderer{}, sink, clock)
	s.SetCPUWindow(250 * time.Millisecond)
	s.Start()
	defer s.Stop()
	sink.wait(t)

	windows := source.recordedWindows()
	if len(windows) != 1 || windows[0] != 250*time.Millisecond {
		t.Fatalf("expected one cpu read with 250ms window, got %v", windows)
	}
}
