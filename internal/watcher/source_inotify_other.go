//go:build !linux

package watcher

import (
	"errors"
	"runtime"
)

// NewInotifySource is only available on Linux; use the fsnotify backend
// elsewhere.
func NewInotifySource() (Source, error) {
	return nil, errors.New("inotify backend unsupported on " + runtime.GOOS)
}
