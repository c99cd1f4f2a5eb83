// Adapted from wal_manager/wal_segment.go: an append-only log segment
// file, rolled over once it reaches segmentSize bytes.
package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const segmentSize = 16 * 1024 * 1024

type segment struct {
	id       uint64
	filePath string
	file     *os.File
	size     int64
	mu       sync.Mutex
}

func newSegment(id uint64, dir string) *segment {
	return &segment{
		id:       id,
		filePath: filepath.Join(dir, fmt.Sprintf("wal_%016x.log", id)),
	}
}

func (s *segment) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return nil
	}
	f, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.file = f
	s.size = stat.Size()
	return nil
}

func (s *segment) append(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("wal: segment %d not opened", s.id)
	}
	n, err := s.file.Write(frame)
	if err != nil {
		return err
	}
	s.size += int64(n)
	return nil
}

func (s *segment) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("wal: segment %d not opened", s.id)
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *segment) full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size >= segmentSize
}
