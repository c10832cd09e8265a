package metrics

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	eventsRead    atomic.Int64
	throttled     atomic.Int64
	unresolved    atomic.Int64
	overflows     atomic.Int64
	watchesAdded  atomic.Int64
	watchFailures atomic.Int64
	logged        sync.Map
}

type Snapshot struct {
	EventsRead    int64
	Throttled     int64
	Unresolved    int64
	Overflows     int64
	WatchesAdded  int64
	WatchFailures int64
	Logged        map[string]int64
}

func (r *Registry) AddEventsRead(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.eventsRead.Add(int64(count))
}

func (r *Registry) IncThrottled() {
	if r == nil {
		return
	}
	r.throttled.Add(1)
}

func (r *Registry) IncUnresolved() {
	if r == nil {
		return
	}
	r.unresolved.Add(1)
}

func (r *Registry) IncOverflow() {
	if r == nil {
		return
	}
	r.overflows.Add(1)
}

func (r *Registry) AddWatches(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.watchesAdded.Add(int64(count))
}

func (r *Registry) AddWatchFailures(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.watchFailures.Add(int64(count))
}

func (r *Registry) IncLogged(description string) {
	if r == nil {
		return
	}
	if strings.TrimSpace(description) == "" {
		description = "unknown"
	}
	r.loggedCounter(description).Add(1)
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	logged := make(map[string]int64)
	r.logged.Range(func(key, value interface{}) bool {
		if name, ok := key.(string); ok {
			logged[name] = value.(*atomic.Int64).Load()
		}
		return true
	})
	return Snapshot{
		EventsRead:    r.eventsRead.Load(),
		Throttled:     r.throttled.Load(),
		Unresolved:    r.unresolved.Load(),
		Overflows:     r.overflows.Load(),
		WatchesAdded:  r.watchesAdded.Load(),
		WatchFailures: r.watchFailures.Load(),
		Logged:        logged,
	}
}

// Fields flattens the counters for a diagnostic log line.
func (s Snapshot) Fields() map[string]string {
	var total int64
	for _, count := range s.Logged {
		total += count
	}
	return map[string]string{
		"events_read":    strconv.FormatInt(s.EventsRead, 10),
		"events_logged":  strconv.FormatInt(total, 10),
		"throttled":      strconv.FormatInt(s.Throttled, 10),
		"unresolved":     strconv.FormatInt(s.Unresolved, 10),
		"overflows":      strconv.FormatInt(s.Overflows, 10),
		"watches_added":  strconv.FormatInt(s.WatchesAdded, 10),
		"watch_failures": strconv.FormatInt(s.WatchFailures, 10),
	}
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}
	snapshot := r.Snapshot()

	writeCounter(writer, "logwatch_events_read_total", "Notification records read", snapshot.EventsRead)
	writeCounter(writer, "logwatch_access_throttled_total", "Access records suppressed by the throttle", snapshot.Throttled)
	writeCounter(writer, "logwatch_unresolved_total", "Records for unknown watch handles", snapshot.Unresolved)
	writeCounter(writer, "logwatch_queue_overflows_total", "Notification queue overflows", snapshot.Overflows)
	writeCounter(writer, "logwatch_watches_added_total", "Directory watches registered", snapshot.WatchesAdded)
	writeCounter(writer, "logwatch_watch_failures_total", "Directory watches that could not be registered", snapshot.WatchFailures)

	descriptions := make([]string, 0, len(snapshot.Logged))
	for description := range snapshot.Logged {
		descriptions = append(descriptions, description)
	}
	sort.Strings(descriptions)

	writeHelp(writer, "logwatch_activity_logged_total", "Activity records logged by description")
	fmt.Fprintln(writer, "# TYPE logwatch_activity_logged_total counter")
	for _, description := range descriptions {
		fmt.Fprintf(writer, "logwatch_activity_logged_total{event=%s} %d\n", formatLabel(description), snapshot.Logged[description])
	}

	return nil
}

func (r *Registry) loggedCounter(description string) *atomic.Int64 {
	value, _ := r.logged.LoadOrStore(description, &atomic.Int64{})
	return value.(*atomic.Int64)
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
