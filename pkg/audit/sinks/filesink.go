package sinks

import (
	"encoding/json"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/llm-devops/workflow-core/pkg/audit"
)

// FileSink appends each event as one JSON-Lines record, rotating the file
// once it crosses MaxBytes: the active file is renamed to "<path>.1",
// any existing "<path>.N" is renamed to "<path>.N+1", and files beyond
// MaxBackups are deleted. Rotation and writes share one mutex so a
// concurrent write never lands mid-rename.
type FileSink struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileSink opens (creating if necessary) path for append, rotating at
// maxBytes and keeping maxBackups rotated generations.
func NewFileSink(path string, maxBytes int64, maxBackups int) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening audit log file %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statting audit log file")
	}
	return &FileSink{
		path:       path,
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
		file:       f,
		size:       info.Size(),
	}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(_ context.Context, event audit.Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshalling audit event")
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 && s.size+int64(len(line)) > s.maxBytes {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(line)
	if err != nil {
		return errors.Wrap(err, "writing audit event")
	}
	s.size += int64(n)
	return nil
}

// rotateLocked renames the active file down the backup chain and opens a
// fresh one. Caller must hold s.mu.
func (s *FileSink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "closing audit log file for rotation")
	}

	for i := s.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", s.path, i)
		dst := fmt.Sprintf("%s.%d", s.path, i+1)
		if _, err := os.Stat(src); err == nil {
			if i+1 > s.maxBackups {
				_ = os.Remove(src)
				continue
			}
			_ = os.Rename(src, dst)
		}
	}
	if s.maxBackups > 0 {
		_ = os.Rename(s.path, fmt.Sprintf("%s.1", s.path))
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "reopening audit log file after rotation")
	}
	s.file = f
	s.size = 0
	return nil
}

// Flush forces buffered writes out to the underlying file.
func (s *FileSink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.file.Sync(), "syncing audit log file")
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
