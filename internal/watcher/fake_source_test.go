package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mutex      sync.Mutex
	nextHandle int
	added      map[int]string
	removed    []int
	failPaths  map[string]error
	batches    chan []RawEvent
	readErr    error
	closed     bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		added:     make(map[int]string),
		failPaths: make(map[string]error),
		batches:   make(chan []RawEvent, 16),
	}
}

func (source *fakeSource) AddWatch(path string) (int, error) {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	if err := source.failPaths[path]; err != nil {
		return -1, err
	}
	// Like inotify, a directory that is still watched keeps its handle.
	for handle, added := range source.added {
		if added == path && !source.released(handle) {
			return handle, nil
		}
	}
	source.nextHandle++
	source.added[source.nextHandle] = path
	return source.nextHandle, nil
}

func (source *fakeSource) RemoveWatch(handle int) error {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	source.removed = append(source.removed, handle)
	return nil
}

// Read returns queued batches; once drained it reports readErr if set,
// otherwise it blocks until ctx is done.
func (source *fakeSource) Read(ctx context.Context) ([]RawEvent, error) {
	select {
	case batch := <-source.batches:
		return batch, nil
	default:
	}
	if source.readErr != nil {
		return nil, source.readErr
	}
	select {
	case batch := <-source.batches:
		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (source *fakeSource) Close() error {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	source.closed = true
	return nil
}

func (source *fakeSource) released(handle int) bool {
	for _, removed := range source.removed {
		if removed == handle {
			return true
		}
	}
	return false
}

func (source *fakeSource) removedHandles() []int {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return append([]int(nil), source.removed...)
}

var errPermission = errors.New("permission denied")

type recordedActivity struct {
	description string
	path        string
}

type recorder struct {
	mutex   sync.Mutex
	records []recordedActivity
	notify  chan recordedActivity
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan recordedActivity, 64)}
}

func (r *recorder) Record(description, path string) {
	r.mutex.Lock()
	r.records = append(r.records, recordedActivity{description: description, path: path})
	r.mutex.Unlock()
	select {
	case r.notify <- recordedActivity{description: description, path: path}:
	default:
	}
}

func (r *recorder) list() []recordedActivity {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]recordedActivity(nil), r.records...)
}

type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	return clock.current
}

func (clock *fakeClock) advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func waitForRecord(t *testing.T, rec *recorder, description, path string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-rec.notify:
			if got.description == description && got.path == path {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q on %s; have %v", description, path, rec.list())
		}
	}
}
