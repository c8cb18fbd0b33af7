package recorder

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/wire"
)

// File appends records to a JSONL file, one JSON object per line, flushed
// after every record so a crash loses at most the record being written.
type File struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool

	written atomic.Int64
}

// NewFile opens (or creates) the file at path in append mode, creating
// parent directories as needed.
func NewFile(path string, logger *slog.Logger) (*File, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"File", "NewFile", "output path required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "File", "NewFile", "create output directory")
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "File", "NewFile", "open output file")
	}

	return &File{
		path:   path,
		logger: logger.With("component", "recorder", "path", path),
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Append writes one record as a JSON line and flushes it to the OS.
func (f *File) Append(rec wire.Record) error {
	line, err := rec.MarshalJSON()
	if err != nil {
		return errors.WrapInvalid(err, "File", "Append", "marshal record")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.Wrap(errors.ErrShuttingDown, "File", "Append", "write record")
	}
	if _, err := f.writer.Write(line); err != nil {
		return f.sinkErr(err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return f.sinkErr(err)
	}
	if err := f.writer.Flush(); err != nil {
		return f.sinkErr(err)
	}

	f.written.Add(1)
	return nil
}

func (f *File) sinkErr(err error) error {
	return errors.WrapTransient(
		fmt.Errorf("%w: %v", errors.ErrSinkFailure, err),
		"File", "Append", "write record")
}

// Written reports how many records have been appended since open.
func (f *File) Written() int64 {
	return f.written.Load()
}

// Path returns the output file path.
func (f *File) Path() string {
	return f.path
}

// Close flushes buffered data and closes the file. Subsequent Appends
// fail. Safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	flushErr := f.writer.Flush()
	syncErr := f.file.Sync()
	closeErr := f.file.Close()

	f.logger.Info("recorder closed", "records", f.written.Load())

	for _, err := range []error{flushErr, syncErr, closeErr} {
		if err != nil {
			return errors.Wrap(err, "File", "Close", "flush and close")
		}
	}
	return nil
}
