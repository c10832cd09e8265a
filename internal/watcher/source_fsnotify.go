package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var errSourceClosed = errors.New("notification source closed")

// fsnotifySource adapts fsnotify to the handle-based Source contract. Handles
// are issued per directory by the source itself. fsnotify does not report
// reads, so this backend never produces access records.
type fsnotifySource struct {
	watcher    *fsnotify.Watcher
	handles    map[string]int
	paths      map[int]string
	nextHandle int
}

func NewFSNotifySource() (Source, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifySource{
		watcher: watcher,
		handles: make(map[string]int),
		paths:   make(map[int]string),
	}, nil
}

func (source *fsnotifySource) AddWatch(path string) (int, error) {
	if handle, ok := source.handles[path]; ok {
		return handle, nil
	}
	if err := source.watcher.Add(path); err != nil {
		return -1, err
	}
	source.nextHandle++
	source.handles[path] = source.nextHandle
	source.paths[source.nextHandle] = path
	return source.nextHandle, nil
}

func (source *fsnotifySource) RemoveWatch(handle int) error {
	path, ok := source.paths[handle]
	if !ok {
		return nil
	}
	delete(source.paths, handle)
	delete(source.handles, path)
	err := source.watcher.Remove(path)
	if errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return nil
	}
	return err
}

func (source *fsnotifySource) Read(ctx context.Context) ([]RawEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event, ok := <-source.watcher.Events:
		if !ok {
			return nil, errSourceClosed
		}
		return source.translate(event), nil
	case err, ok := <-source.watcher.Errors:
		if !ok {
			return nil, errSourceClosed
		}
		if errors.Is(err, fsnotify.ErrEventOverflow) {
			return []RawEvent{{Handle: -1, Overflow: true}}, nil
		}
		return nil, err
	}
}

func (source *fsnotifySource) Close() error {
	return source.watcher.Close()
}

func (source *fsnotifySource) translate(event fsnotify.Event) []RawEvent {
	parent, ok := source.handles[filepath.Dir(event.Name)]
	if !ok {
		parent = -1
	}
	raw := RawEvent{Handle: parent, Name: filepath.Base(event.Name)}
	var events []RawEvent

	if event.Has(fsnotify.Create) {
		raw.Kinds |= KindCreated
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			raw.IsDir = true
		}
	}
	if event.Has(fsnotify.Write) {
		raw.Kinds |= KindModified
	}
	if event.Has(fsnotify.Remove) {
		raw.Kinds |= KindDeleted
		// fsnotify reports a watched directory's removal once and has
		// already dropped its watch, so the handle is released here.
		if own, watched := source.handles[event.Name]; watched {
			raw.IsDir = true
			delete(source.handles, event.Name)
			delete(source.paths, own)
			events = append(events, RawEvent{Handle: own, Ignored: true})
		}
	}

	if raw.Kinds != 0 {
		events = append([]RawEvent{raw}, events...)
	}
	return events
}
