package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poolLedger/internal/model"
)

// JsonlStorage writes log records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AppendJSONL(s.path, logs)
}

// AppendJSONL appends items to path, one JSON document per line.
func AppendJSONL[T any](path string, items []T) error {
	return writeJSONL(path, items, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

// WriteJSONL replaces path with items, one JSON document per line.
func WriteJSONL[T any](path string, items []T) error {
	tmp := path + ".tmp"
	if err := writeJSONL(tmp, items, os.O_CREATE|os.O_WRONLY|os.O_TRUNC); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}

func writeJSONL[T any](path string, items []T, flag int) error {
	if len(items) == 0 && flag&os.O_APPEND != 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ReadJSONL decodes every line of path with fn. Blank lines are skipped.
func ReadJSONL(path string, fn func(line []byte) error) error {
	return ReadJSONLNumbered(path, func(_ int, line []byte) error { return fn(line) })
}

// ReadJSONLNumbered is ReadJSONL with the 1-based line number of each line.
func ReadJSONLNumbered(path string, fn func(n int, line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

// JSONLWriter streams JSON documents to a file, one per line.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// CreateJSONL truncates path, creating its directory if needed.
func CreateJSONL(path string) (*JSONLWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JSONLWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *JSONLWriter) Write(value any) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of documents written so far.
func (w *JSONLWriter) Count() int { return w.count }

// Close flushes buffered lines and closes the file.
func (w *JSONLWriter) Close() error {
	if w == nil {
		return nil
	}
	return errors.Join(w.writer.Flush(), w.file.Close())
}
