package watcher

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"logwatch/internal/metrics"
)

type dispatcherFixture struct {
	source     *fakeSource
	registry   *Registry
	recorder   *recorder
	clock      *fakeClock
	metrics    *metrics.Registry
	dispatcher *Dispatcher
	root       int
}

func newDispatcherFixture(t *testing.T, maxWatches int) *dispatcherFixture {
	t.Helper()
	source := newFakeSource()
	registry := NewRegistry(source, maxWatches)
	root, err := registry.Add("/data")
	if err != nil {
		t.Fatalf("add root: %v", err)
	}
	clock := newFakeClock()
	rec := newRecorder()
	counters := &metrics.Registry{}
	dispatcher, err := NewDispatcher(Options{
		Source:   source,
		Registry: registry,
		Throttle: NewThrottleCache(DefaultThrottleWindow, DefaultThrottleCapacity, clock.Now),
		Recorder: rec,
		Metrics:  counters,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return &dispatcherFixture{
		source:     source,
		registry:   registry,
		recorder:   rec,
		clock:      clock,
		metrics:    counters,
		dispatcher: dispatcher,
		root:       root,
	}
}

func TestDispatchClassifiesEveryKindAndFlag(t *testing.T) {
	cases := []struct {
		kind     EventKind
		isDir    bool
		expected string
	}{
		{KindCreated, false, DescFileCreated},
		{KindCreated, true, DescDirectoryCreated},
		{KindDeleted, false, DescFileDeleted},
		{KindDeleted, true, DescDirectoryDeleted},
		{KindModified, false, DescFileModified},
		{KindModified, true, DescDirectoryModified},
		{KindAccessed, false, DescFileAccessed},
		{KindAccessed, true, DescDirectoryAccessed},
	}
	for _, tc := range cases {
		t.Run(tc.expected, func(t *testing.T) {
			fixture := newDispatcherFixture(t, DefaultMaxWatches)
			fixture.dispatcher.Dispatch(RawEvent{Handle: fixture.root, Kinds: tc.kind, IsDir: tc.isDir, Name: "entry"})

			expected := []recordedActivity{{description: tc.expected, path: "/data/entry"}}
			if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
				t.Fatalf("expected %v, got %v", expected, got)
			}
		})
	}
}

func TestDispatchChecksEveryBit(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)

	fixture.dispatcher.Dispatch(RawEvent{
		Handle: fixture.root,
		Kinds:  KindCreated | KindModified | KindAccessed,
		Name:   "f.txt",
	})

	expected := []recordedActivity{
		{description: DescFileCreated, path: "/data/f.txt"},
		{description: DescFileModified, path: "/data/f.txt"},
		{description: DescFileAccessed, path: "/data/f.txt"},
	}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestDispatchEmptyNameUsesDirectoryPath(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)

	fixture.dispatcher.Dispatch(RawEvent{Handle: fixture.root, Kinds: KindAccessed, IsDir: true})

	expected := []recordedActivity{{description: DescDirectoryAccessed, path: "/data/"}}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestDispatchThrottlesAccessOnly(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)
	access := RawEvent{Handle: fixture.root, Kinds: KindAccessed, Name: "b.txt"}
	modify := RawEvent{Handle: fixture.root, Kinds: KindModified, Name: "b.txt"}

	fixture.dispatcher.Dispatch(access)
	fixture.dispatcher.Dispatch(modify)
	fixture.clock.advance(500 * time.Millisecond)
	fixture.dispatcher.Dispatch(access)
	fixture.dispatcher.Dispatch(modify)
	fixture.clock.advance(2500 * time.Millisecond)
	fixture.dispatcher.Dispatch(access)

	expected := []recordedActivity{
		{description: DescFileAccessed, path: "/data/b.txt"},
		{description: DescFileModified, path: "/data/b.txt"},
		{description: DescFileModified, path: "/data/b.txt"},
		{description: DescFileAccessed, path: "/data/b.txt"},
	}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if throttled := fixture.metrics.Snapshot().Throttled; throttled != 1 {
		t.Fatalf("expected 1 throttled access, got %d", throttled)
	}
}

func TestDispatchExtendsWatchSetOnNewDirectory(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)

	fixture.dispatcher.Dispatch(RawEvent{Handle: fixture.root, Kinds: KindCreated, IsDir: true, Name: "sub"})

	if fixture.registry.Len() != 2 {
		t.Fatalf("expected 2 watches, got %d", fixture.registry.Len())
	}
	child := fixture.source.nextHandle
	if path, err := fixture.registry.Resolve(child); err != nil || path != "/data/sub" {
		t.Fatalf("expected new watch on /data/sub, got %q, %v", path, err)
	}

	fixture.dispatcher.Dispatch(RawEvent{Handle: child, Kinds: KindCreated, Name: "inner.txt"})

	expected := []recordedActivity{
		{description: DescDirectoryCreated, path: "/data/sub"},
		{description: DescFileCreated, path: "/data/sub/inner.txt"},
	}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestDispatchAtCapacityLogsWithoutWatching(t *testing.T) {
	fixture := newDispatcherFixture(t, 1)

	fixture.dispatcher.Dispatch(RawEvent{Handle: fixture.root, Kinds: KindCreated, IsDir: true, Name: "sub"})

	expected := []recordedActivity{{description: DescDirectoryCreated, path: "/data/sub"}}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if fixture.registry.Len() != 1 || fixture.source.nextHandle != 1 {
		t.Fatalf("expected no new watch, registry=%d source adds=%d", fixture.registry.Len(), fixture.source.nextHandle)
	}
	if failures := fixture.metrics.Snapshot().WatchFailures; failures != 1 {
		t.Fatalf("expected 1 watch failure, got %d", failures)
	}
}

func TestDispatchSkipsUnknownHandle(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)

	fixture.dispatcher.Dispatch(RawEvent{Handle: 99, Kinds: KindCreated, Name: "ghost"})
	fixture.dispatcher.Dispatch(RawEvent{Handle: -1, Overflow: true})

	if got := fixture.recorder.list(); len(got) != 0 {
		t.Fatalf("expected no records, got %v", got)
	}
	snapshot := fixture.metrics.Snapshot()
	if snapshot.Unresolved != 1 || snapshot.Overflows != 1 {
		t.Fatalf("unexpected counters %+v", snapshot)
	}
}

func TestDispatchIgnoredForgetsHandle(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)

	fixture.dispatcher.Dispatch(RawEvent{Handle: fixture.root, Ignored: true})

	if fixture.registry.Len() != 0 {
		t.Fatalf("expected released handle to be forgotten")
	}
	if err := fixture.registry.RemoveAll(); err != nil {
		t.Fatalf("remove all: %v", err)
	}
	if removed := fixture.source.removedHandles(); len(removed) != 0 {
		t.Fatalf("expected no release for kernel-dropped watch, got %v", removed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- fixture.dispatcher.Run(ctx)
	}()

	fixture.source.batches <- []RawEvent{{Handle: fixture.root, Kinds: KindCreated, Name: "x"}}
	select {
	case <-fixture.recorder.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for record")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestRunReturnsReadError(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)
	readErr := errors.New("bad descriptor")
	fixture.source.readErr = readErr
	fixture.source.batches <- []RawEvent{{Handle: fixture.root, Kinds: KindDeleted, Name: "gone"}}

	err := fixture.dispatcher.Run(context.Background())
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	expected := []recordedActivity{{description: DescFileDeleted, path: "/data/gone"}}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	if _, err := NewDispatcher(Options{}); err == nil {
		t.Fatalf("expected missing source to fail")
	}
}

func TestDispatchCreateOfWatchedDirectoryAddsNothing(t *testing.T) {
	fixture := newDispatcherFixture(t, DefaultMaxWatches)
	if _, err := fixture.registry.Add("/data/sub"); err != nil {
		t.Fatalf("add: %v", err)
	}

	fixture.dispatcher.Dispatch(RawEvent{Handle: fixture.root, Kinds: KindCreated, IsDir: true, Name: "sub"})

	expected := []recordedActivity{{description: DescDirectoryCreated, path: "/data/sub"}}
	if got := fixture.recorder.list(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	snapshot := fixture.metrics.Snapshot()
	if snapshot.WatchesAdded != 0 || snapshot.WatchFailures != 0 {
		t.Fatalf("expected no watch counters for a shared handle, got %+v", snapshot)
	}
	if fixture.registry.Len() != 2 {
		t.Fatalf("expected 2 watches, got %d", fixture.registry.Len())
	}
}
