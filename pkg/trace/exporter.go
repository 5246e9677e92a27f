//go:build tracing

package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Enabled reports whether file export was compiled in.
const Enabled = true

// sorts lexically in time order
const rotationStamp = "20060102T150405.000000000"

// FileExporter appends one JSON line per call. Each record is a single write,
// so a crash never leaves half a record behind the last complete call.
//
// With WithProviderPartitions every provider gets its own file next to the
// configured one: traces.jsonl becomes traces.openai.jsonl and
// traces.anthropic.jsonl. A file that grows past the size limit is renamed to
// <stem>-<UTC time><ext> and the oldest renamed files beyond the limit are
// removed.
type FileExporter struct {
	stem string
	ext  string

	opts fileOptions

	mu       sync.Mutex
	segments map[string]*segment
	closed   bool
}

// segment is one open trace file.
type segment struct {
	path string
	file *os.File
	size int64
}

// NewFileExporter creates the trace directory and returns an exporter writing
// under filePath. Files are opened on first use. An empty path yields a
// NoopExporter.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return &NoopExporter{}, nil
	}

	stem, ext := splitTracePath(filePath)
	fe := &FileExporter{
		stem:     stem,
		ext:      ext,
		opts:     newFileOptions(opts),
		segments: make(map[string]*segment),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	return fe, nil
}

// Export validates record and appends it to its file.
func (fe *FileExporter) Export(ctx context.Context, record *TraceRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode trace record %s: %w", record.OperationID, err)
	}
	line = append(line, '\n')

	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return ErrClosed
	}

	seg, err := fe.segment(record.Provider)
	if err != nil {
		return err
	}

	n, err := seg.file.Write(line)
	seg.size += int64(n)
	if err != nil {
		return fmt.Errorf("write trace record %s: %w", record.OperationID, err)
	}

	if seg.size >= fe.opts.maxSizeBytes {
		if err := fe.rotate(seg); err != nil {
			return fmt.Errorf("rotate %s: %w", seg.path, err)
		}
	}
	return nil
}

// Close syncs and closes every open file. Later Exports return ErrClosed.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return nil
	}
	fe.closed = true

	var firstErr error
	for key, seg := range fe.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(fe.segments, key)
	}
	return firstErr
}

// segment returns the open file for provider. Must be called with lock held.
func (fe *FileExporter) segment(provider string) (*segment, error) {
	key := ""
	if fe.opts.partition {
		key = partitionName(provider)
	}
	if seg, ok := fe.segments[key]; ok {
		return seg, nil
	}

	seg, err := openSegment(fe.segmentPath(key))
	if err != nil {
		return nil, err
	}
	fe.segments[key] = seg
	return seg, nil
}

func (fe *FileExporter) segmentPath(key string) string {
	if key == "" {
		return fe.stem + fe.ext
	}
	return fe.stem + "." + key + fe.ext
}

// rotate renames a full segment and reopens its path. Must be called with
// lock held.
func (fe *FileExporter) rotate(seg *segment) error {
	closeErr := seg.close()

	stem := strings.TrimSuffix(seg.path, fe.ext)
	stamp := time.Now().UTC().Format(rotationStamp)
	rotated := stem + "-" + stamp + fe.ext
	for i := 1; fileExists(rotated); i++ {
		rotated = fmt.Sprintf("%s-%s.%d%s", stem, stamp, i, fe.ext)
	}
	renameErr := os.Rename(seg.path, rotated)

	// reopen even after a failed rename so later calls still have a file
	fresh, err := openSegment(seg.path)
	if err != nil {
		return errors.Join(closeErr, renameErr, err)
	}
	*seg = *fresh

	if err := errors.Join(closeErr, renameErr); err != nil {
		return err
	}
	return fe.prune(stem)
}

// prune removes the oldest rotated files of stem beyond maxRotatedFiles.
func (fe *FileExporter) prune(stem string) error {
	matches, err := filepath.Glob(escapeGlob(stem) + "-*" + escapeGlob(fe.ext))
	if err != nil {
		return err
	}
	if len(matches) <= fe.opts.maxRotatedFiles {
		return nil
	}

	slices.Sort(matches)
	for _, old := range matches[:len(matches)-fe.opts.maxRotatedFiles] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove rotated trace file: %w", err)
		}
	}
	return nil
}

func openSegment(path string) (*segment, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat trace file: %w", err)
	}
	return &segment{path: path, file: file, size: info.Size()}, nil
}

func (s *segment) close() error {
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return s.file.Close()
}

// partitionName keeps provider names safe for use in file names.
func partitionName(provider string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, provider)
	if name == "" {
		return "unknown"
	}
	return name
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
