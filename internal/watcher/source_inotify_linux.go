//go:build linux

package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	watchMask      = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MODIFY | unix.IN_ACCESS | unix.IN_ONLYDIR | unix.IN_DONT_FOLLOW
	readBufferSize = 1024 * (unix.SizeofInotifyEvent + 16)
)

type inotifySource struct {
	fd   int
	file *os.File
	buf  []byte
}

// NewInotifySource opens a non-blocking inotify descriptor. The descriptor
// is handed to the runtime poller so Read can be interrupted through a read
// deadline instead of closing the descriptor under the reader.
func NewInotifySource() (Source, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	return &inotifySource{
		fd:   fd,
		file: os.NewFile(uintptr(fd), "inotify"),
		buf:  make([]byte, readBufferSize),
	}, nil
}

func (source *inotifySource) AddWatch(path string) (int, error) {
	wd, err := unix.InotifyAddWatch(source.fd, path, watchMask)
	if err != nil {
		return -1, err
	}
	return wd, nil
}

func (source *inotifySource) RemoveWatch(handle int) error {
	_, err := unix.InotifyRmWatch(source.fd, uint32(handle))
	// EINVAL means the kernel already dropped the watch.
	if errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}

func (source *inotifySource) Read(ctx context.Context) ([]RawEvent, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = source.file.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := source.file.Read(source.buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return DecodeEvents(source.buf[:n])
}

func (source *inotifySource) Close() error {
	return source.file.Close()
}
