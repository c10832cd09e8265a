//go:build linux

package watcher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrTruncatedEvent is returned when a buffer ends inside a record.
var ErrTruncatedEvent = errors.New("truncated inotify event")

// DecodeEvents splits a buffer read from an inotify descriptor into records.
// Each record is a fixed header (wd, mask, cookie, len) followed by len bytes
// of NUL padded name. Records decoded before a truncated one are returned
// together with ErrTruncatedEvent.
func DecodeEvents(buf []byte) ([]RawEvent, error) {
	var events []RawEvent
	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < unix.SizeofInotifyEvent {
			return events, fmt.Errorf("%w: %d header bytes at offset %d", ErrTruncatedEvent, len(buf)-offset, offset)
		}
		wd := int32(binary.NativeEndian.Uint32(buf[offset:]))
		mask := binary.NativeEndian.Uint32(buf[offset+4:])
		nameLen := int(binary.NativeEndian.Uint32(buf[offset+12:]))

		start := offset + unix.SizeofInotifyEvent
		end := start + nameLen
		if nameLen < 0 || end > len(buf) {
			return events, fmt.Errorf("%w: name of %d bytes at offset %d", ErrTruncatedEvent, nameLen, offset)
		}
		name := buf[start:end]
		if index := bytes.IndexByte(name, 0); index >= 0 {
			name = name[:index]
		}

		events = append(events, eventFromMask(int(wd), mask, string(name)))
		offset = end
	}
	return events, nil
}

func eventFromMask(wd int, mask uint32, name string) RawEvent {
	event := RawEvent{
		Handle:   wd,
		Name:     name,
		IsDir:    mask&unix.IN_ISDIR != 0,
		Ignored:  mask&unix.IN_IGNORED != 0,
		Overflow: mask&unix.IN_Q_OVERFLOW != 0,
	}
	if mask&unix.IN_CREATE != 0 {
		event.Kinds |= KindCreated
	}
	if mask&unix.IN_DELETE != 0 {
		event.Kinds |= KindDeleted
	}
	if mask&unix.IN_MODIFY != 0 {
		event.Kinds |= KindModified
	}
	if mask&unix.IN_ACCESS != 0 {
		event.Kinds |= KindAccessed
	}
	return event
}
