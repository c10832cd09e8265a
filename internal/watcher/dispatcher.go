package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"logwatch/internal/logging"
	"logwatch/internal/metrics"
)

// Options wires a Dispatcher to its collaborators.
type Options struct {
	Source   Source
	Registry *Registry
	Throttle AccessThrottle
	Recorder Recorder
	Logger   *logging.Logger
	Metrics  *metrics.Registry
}

// Dispatcher classifies notification records and emits activity records.
type Dispatcher struct {
	source   Source
	registry *Registry
	throttle AccessThrottle
	recorder Recorder
	logger   *logging.Logger
	metrics  *metrics.Registry
}

func NewDispatcher(options Options) (*Dispatcher, error) {
	if options.Source == nil {
		return nil, errors.New("source is required")
	}
	if options.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if options.Recorder == nil {
		return nil, errors.New("recorder is required")
	}
	throttle := options.Throttle
	if throttle == nil {
		throttle = NewThrottleCache(DefaultThrottleWindow, DefaultThrottleCapacity, nil)
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		source:   options.Source,
		registry: options.Registry,
		throttle: throttle,
		recorder: options.Recorder,
		logger:   logger,
		metrics:  options.Metrics,
	}, nil
}

// Run reads and dispatches records until ctx is done, returning nil, or
// until the source fails, returning the read error.
func (dispatcher *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		events, err := dispatcher.source.Read(ctx)
		dispatcher.metrics.AddEventsRead(len(events))
		for _, event := range events {
			dispatcher.Dispatch(event)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read events: %w", err)
		}
	}
}

// Dispatch handles a single record. Kinds are tested independently, so one
// record can produce several activity records.
func (dispatcher *Dispatcher) Dispatch(event RawEvent) {
	if event.Overflow {
		dispatcher.metrics.IncOverflow()
		dispatcher.logger.Warn("notification queue overflow; events were dropped", nil)
		return
	}

	base, err := dispatcher.registry.Resolve(event.Handle)
	if err != nil {
		dispatcher.metrics.IncUnresolved()
		return
	}
	if event.Ignored {
		dispatcher.registry.Forget(event.Handle)
		dispatcher.logger.Debug("watch released", map[string]string{
			"path":           base,
			"active_watches": strconv.Itoa(dispatcher.registry.Len()),
		})
		return
	}

	fullPath := base + "/" + event.Name

	if event.Kinds.Has(KindCreated) {
		if event.IsDir {
			dispatcher.watchDirectory(fullPath)
			dispatcher.emit(DescDirectoryCreated, fullPath)
		} else {
			dispatcher.emit(DescFileCreated, fullPath)
		}
	}

	if event.Kinds.Has(KindDeleted) {
		if event.IsDir {
			dispatcher.emit(DescDirectoryDeleted, fullPath)
		} else {
			dispatcher.emit(DescFileDeleted, fullPath)
		}
	}

	if event.Kinds.Has(KindModified) {
		if event.IsDir {
			dispatcher.emit(DescDirectoryModified, fullPath)
		} else {
			dispatcher.emit(DescFileModified, fullPath)
		}
	}

	if event.Kinds.Has(KindAccessed) {
		if dispatcher.throttle.ShouldThrottle(fullPath) {
			dispatcher.metrics.IncThrottled()
		} else if event.IsDir {
			dispatcher.emit(DescDirectoryAccessed, fullPath)
		} else {
			dispatcher.emit(DescFileAccessed, fullPath)
		}
	}
}

func (dispatcher *Dispatcher) watchDirectory(path string) {
	handle, err := dispatcher.registry.Add(path)
	if errors.Is(err, ErrAlreadyWatched) {
		dispatcher.logger.Debug("watch already present", map[string]string{
			"path":   path,
			"handle": strconv.Itoa(handle),
		})
		return
	}
	if err != nil {
		dispatcher.metrics.AddWatchFailures(1)
		dispatcher.logger.Debug("watch add failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	dispatcher.metrics.AddWatches(1)
	dispatcher.logger.Info("new directory watched", map[string]string{
		"path":           path,
		"handle":         strconv.Itoa(handle),
		"active_watches": strconv.Itoa(dispatcher.registry.Len()),
	})
}

func (dispatcher *Dispatcher) emit(description, path string) {
	dispatcher.metrics.IncLogged(description)
	dispatcher.recorder.Record(description, path)
}
