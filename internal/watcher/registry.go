package watcher

import (
	"errors"
	"fmt"
	"sort"
)

const (
	DefaultMaxWatches = 1024
	MaxWatchLimit     = 1 << 20
)

var (
	ErrWatchLimitExceeded      = errors.New("watch limit exceeded")
	ErrWatchRegistrationFailed = errors.New("watch registration failed")
	ErrUnknownHandle           = errors.New("unknown watch handle")
	ErrAlreadyWatched          = errors.New("directory already watched")
)

// Registry maps live watch handles to the directories they observe.
type Registry struct {
	source     Source
	maxWatches int
	paths      map[int]string
}

func NewRegistry(source Source, maxWatches int) *Registry {
	if maxWatches <= 0 {
		maxWatches = DefaultMaxWatches
	}
	maxWatches = min(maxWatches, MaxWatchLimit)
	return &Registry{
		source:     source,
		maxWatches: maxWatches,
		paths:      make(map[int]string),
	}
}

// Add registers path with the source. On error the registry is unchanged.
// When the source hands back a live handle, Add returns it together with
// ErrAlreadyWatched.
func (registry *Registry) Add(path string) (int, error) {
	if len(registry.paths) >= registry.maxWatches {
		return -1, ErrWatchLimitExceeded
	}
	handle, err := registry.source.AddWatch(path)
	if err != nil {
		return -1, fmt.Errorf("%w: %s: %w", ErrWatchRegistrationFailed, path, err)
	}
	// The first path stays authoritative for a shared handle.
	if existing, ok := registry.paths[handle]; ok {
		return handle, fmt.Errorf("%w: %s as %s", ErrAlreadyWatched, path, existing)
	}
	registry.paths[handle] = path
	return handle, nil
}

func (registry *Registry) Resolve(handle int) (string, error) {
	path, ok := registry.paths[handle]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	return path, nil
}

// Forget drops a handle the source has already released.
func (registry *Registry) Forget(handle int) {
	delete(registry.paths, handle)
}

// RemoveAll releases every live watch once and clears the registry.
func (registry *Registry) RemoveAll() error {
	var removeErr error
	for _, handle := range registry.Handles() {
		if err := registry.source.RemoveWatch(handle); err != nil {
			removeErr = errors.Join(removeErr, fmt.Errorf("remove watch %s: %w", registry.paths[handle], err))
		}
		delete(registry.paths, handle)
	}
	return removeErr
}

func (registry *Registry) Len() int {
	return len(registry.paths)
}

func (registry *Registry) Capacity() int {
	return registry.maxWatches
}

// Handles returns the live handles in ascending order.
func (registry *Registry) Handles() []int {
	handles := make([]int, 0, len(registry.paths))
	for handle := range registry.paths {
		handles = append(handles, handle)
	}
	sort.Ints(handles)
	return handles
}
