package watcher

import "context"

// EventKind is a bitset; one record may carry several kinds at once.
type EventKind uint8

const (
	KindCreated EventKind = 1 << iota
	KindDeleted
	KindModified
	KindAccessed
)

func (kind EventKind) Has(other EventKind) bool {
	return kind&other == other && other != 0
}

// RawEvent is one decoded notification record.
type RawEvent struct {
	Handle int
	Kinds  EventKind
	IsDir  bool
	// Name is relative to the watched directory; empty when the event
	// concerns the directory itself.
	Name string
	// Ignored reports that the facility released the watch on its own,
	// for example because the directory was deleted.
	Ignored bool
	// Overflow reports that the facility dropped events.
	Overflow bool
}

// Source is the notification facility behind the registry and dispatcher.
type Source interface {
	AddWatch(path string) (int, error)
	RemoveWatch(handle int) error
	// Read blocks until records are available, the source fails, or ctx is
	// done. Records decoded before a failure are returned with the error.
	Read(ctx context.Context) ([]RawEvent, error)
	Close() error
}

// Recorder receives one call per logged activity.
type Recorder interface {
	Record(description, path string)
}

const (
	DescDirectoryCreated  = "Directory created"
	DescFileCreated       = "File created"
	DescDirectoryDeleted  = "Directory deleted"
	DescFileDeleted       = "File deleted"
	DescDirectoryModified = "Directory modified"
	DescFileModified      = "File modified"
	DescDirectoryAccessed = "Directory accessed"
	DescFileAccessed      = "File accessed"
)
