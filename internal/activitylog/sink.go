// Package activitylog writes watcher activity as timestamped lines to an
// append-only file and mirrors each line to standard output.
package activitylog

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/ncruces/go-strftime"

	"logwatch/internal/logging"
)

const (
	DefaultFileName = "logwatch.log"
	timestampLayout = "%d-%m-%Y %H:%M:%S"
)

type Options struct {
	Path   string
	Stdout io.Writer
	Logger *logging.Logger
	Now    func() time.Time
}

// Sink reopens the file for every record, so a transient open failure only
// loses the records written while it lasts.
type Sink struct {
	path   string
	stdout io.Writer
	logger *logging.Logger
	now    func() time.Time
	closed bool
}

func New(options Options) *Sink {
	path := options.Path
	if path == "" {
		path = DefaultFileName
	}
	stdout := options.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Sink{
		path:   path,
		stdout: stdout,
		logger: options.Logger,
		now:    now,
	}
}

// Record appends one line. When the file cannot be opened the line is
// dropped from both the file and stdout.
func (sink *Sink) Record(description, path string) {
	if sink.closed {
		return
	}
	file, err := os.OpenFile(sink.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		sink.logger.Error("open activity log failed", map[string]string{
			"file":  sink.path,
			"error": err.Error(),
		})
		return
	}

	line := FormatLine(sink.now(), path, description)
	_, writeErr := io.WriteString(file, line)
	if err := errors.Join(writeErr, file.Close()); err != nil {
		sink.logger.Warn("write activity log failed", map[string]string{
			"file":  sink.path,
			"error": err.Error(),
		})
	}
	_, _ = io.WriteString(sink.stdout, line)
}

// Close stops further records. Records are flushed as they are written.
func (sink *Sink) Close() error {
	sink.closed = true
	return nil
}

// FormatLine renders "[DD-MM-YYYY HH:MM:SS] <path>: <description>\n" in
// local time.
func FormatLine(at time.Time, path, description string) string {
	return "[" + strftime.Format(timestampLayout, at.Local()) + "] " + path + ": " + description + "\n"
}
