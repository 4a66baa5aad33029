// Package pkg provides shared utilities for tbench.
package pkg

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Journal is a generic append-only JSONL log for items of type T. One line
// per item keeps the file greppable and streamable; episodes can produce
// thousands of step records without holding them in memory.
type Journal[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Range(f func(index uint64, item T) error) error
	Close() error
}

type journalImpl[T any] struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	length  uint64
}

// NewJournal opens (or creates) a journal at path, appending to existing
// content. Existing lines are counted so Len stays accurate across reopens.
func NewJournal[T any](path string) (Journal[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	length, err := countLines(path)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &journalImpl[T]{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
		length:  length,
	}, nil
}

// Append implements Journal.
func (j *journalImpl[T]) Append(item T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.encoder.Encode(item); err != nil {
		slog.Error("failed to encode journal item", "path", j.path, "index", j.length, "error", err)
		return fmt.Errorf("failed to encode journal item: %w", err)
	}

	j.length++

	return nil
}

// Len implements Journal.
func (j *journalImpl[T]) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.length
}

// Path implements Journal.
func (j *journalImpl[T]) Path() string {
	return j.path
}

// Range implements Journal. It reads the file from the start with an
// independent handle, so iteration never disturbs the append position.
func (j *journalImpl[T]) Range(f func(index uint64, item T) error) error {
	file, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("open journal for reading: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := json.NewDecoder(file)

	var index uint64

	for {
		var item T

		err := decoder.Decode(&item)
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return fmt.Errorf("decode journal item %d: %w", index, err)
		}

		if err := f(index, item); err != nil {
			return err
		}

		index++
	}
}

// Close implements Journal.
func (j *journalImpl[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil

	if err != nil {
		slog.Error("failed to close journal", "path", j.path, "error", err)
		return fmt.Errorf("failed to close journal: %w", err)
	}

	return nil
}

func countLines(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("count journal lines: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	var count uint64

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		count++
	}

	return count, scanner.Err()
}
