package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by FindOperation when no file holds the operation.
var ErrNotFound = errors.New("trace record not found")

// maxLineBytes bounds a single JSON line; records are a few hundred bytes
const maxLineBytes = 1 << 20

// ReadRecords decodes JSON Lines trace records. Blank lines are skipped; a
// malformed line fails with its line number.
func ReadRecords(r io.Reader) ([]TraceRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []TraceRecord
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var rec TraceRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return records, fmt.Errorf("trace line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read traces: %w", err)
	}
	return records, nil
}

// Files lists every trace file written for filePath: the file itself, its
// provider partitions and their rotated copies.
func Files(filePath string) ([]string, error) {
	stem, ext := splitTracePath(filePath)
	pattern := escapeGlob(stem) + "*" + escapeGlob(ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list trace files: %w", err)
	}
	return matches, nil
}

// FindOperation returns the record for operationID from the trace files
// written for filePath. Operation ids equal history entry ids.
func FindOperation(filePath, operationID string) (*TraceRecord, error) {
	files, err := Files(filePath)
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		rec, err := findInFile(path, operationID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, operationID)
}

func findInFile(path, operationID string) (*TraceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range records {
		if records[i].OperationID == operationID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// splitTracePath splits "dir/traces.jsonl" into "dir/traces" and ".jsonl".
// A path without extension gets ".jsonl".
func splitTracePath(filePath string) (stem, ext string) {
	ext = filepath.Ext(filePath)
	if ext == "" {
		return filePath, ".jsonl"
	}
	return strings.TrimSuffix(filePath, ext), ext
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[\`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
