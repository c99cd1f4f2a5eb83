// Package wal implements an append-only, segmented write-ahead log for
// index mutations, so a transaction's committed writes survive a crash
// before the buffer pool has flushed their dirty pages.
//
// Grounded on wal_manager/wal.go's segment layout, recovery scan, and
// CRC-guarded record framing (LSN|LEN|CRC|DATA); reworked from logging
// the teacher's heap-file types.Operation (query-executor scope, dropped
// here) to logging storage/index Put/Delete/Commit/Abort records, and
// from Logger.GetFlushedLSN's role gating storage/buffer's eviction via
// the WALFlushedLSNGetter seam already declared there.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

var errShortRecord = errors.New("wal: truncated record")

// Manager is an append-only, segmented write-ahead log. Writes are
// serialized by mu; GetFlushedLSN is lock-free (atomic) so storage/buffer
// can poll it on the hot eviction path without contending with Append.
type Manager struct {
	dir string

	mu          sync.Mutex
	segments    map[uint64]*segment
	currSegment *segment
	currentLSN  uint64

	flushedLSN atomic.Uint64
}

// Open opens (creating if absent) the WAL directory, recovering any
// existing segments and resuming LSN allocation after the highest one
// found.
func Open(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	m := &Manager{dir: dir, segments: make(map[uint64]*segment)}
	if err := m.recover(); err != nil {
		return nil, err
	}
	if m.currSegment == nil {
		if err := m.rollSegment(); err != nil {
			return nil, err
		}
	}
	m.flushedLSN.Store(m.currentLSN)
	return m, nil
}

func (m *Manager) recover() error {
	files, err := filepath.Glob(filepath.Join(m.dir, "wal_*.log"))
	if err != nil {
		return err
	}
	var ids []uint64
	for _, f := range files {
		name := filepath.Base(f)
		if !strings.HasPrefix(name, "wal_") || !strings.HasSuffix(name, ".log") {
			continue
		}
		hex := strings.TrimSuffix(strings.TrimPrefix(name, "wal_"), ".log")
		id, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	var maxLSN uint64
	for _, id := range ids {
		seg := newSegment(id, m.dir)
		if err := seg.open(); err != nil {
			return err
		}
		m.segments[id] = seg
		lsn, err := highestLSNIn(seg)
		if err != nil {
			return err
		}
		if lsn > maxLSN {
			maxLSN = lsn
		}
	}
	m.currSegment = m.segments[ids[len(ids)-1]]
	m.currentLSN = maxLSN
	return nil
}

func highestLSNIn(seg *segment) (uint64, error) {
	f, err := os.Open(seg.filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var maxLSN uint64
	header := make([]byte, recordHeaderSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return 0, err
		}
		lsn := binary.BigEndian.Uint64(header[0:8])
		dataLen := binary.BigEndian.Uint32(header[8:12])
		if lsn > maxLSN {
			maxLSN = lsn
		}
		if _, err := f.Seek(int64(dataLen), io.SeekCurrent); err != nil {
			return 0, err
		}
	}
	return maxLSN, nil
}

func (m *Manager) rollSegment() error {
	id := uint64(len(m.segments))
	seg := newSegment(id, m.dir)
	if err := seg.open(); err != nil {
		return err
	}
	m.segments[id] = seg
	m.currSegment = seg
	return nil
}

// Append writes rec (assigning it the next LSN) to the active segment,
// rolling to a new segment first if the current one is full. The frame
// reaches the OS but is not fsynced until Sync is called -- matching the
// teacher's own "O_APPEND write now, explicit Sync later" split.
func (m *Manager) Append(rec Record) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentLSN++
	lsn := m.currentLSN
	rec.LSN = lsn
	frame := encodeFrame(lsn, rec.encodePayload())

	if m.currSegment.full() {
		if err := m.rollSegment(); err != nil {
			return 0, err
		}
	}
	if err := m.currSegment.append(frame); err != nil {
		return 0, err
	}
	return lsn, nil
}

// Sync fsyncs the active segment and publishes its LSN as flushed,
// unblocking anything gated on GetFlushedLSN.
func (m *Manager) Sync() error {
	m.mu.Lock()
	seg := m.currSegment
	lsn := m.currentLSN
	m.mu.Unlock()

	if err := seg.sync(); err != nil {
		return err
	}
	m.flushedLSN.Store(lsn)
	return nil
}

// GetFlushedLSN implements storage/buffer.WALFlushedLSNGetter.
func (m *Manager) GetFlushedLSN() uint64 {
	return m.flushedLSN.Load()
}

// ReplayFromLSN calls apply, in LSN order, for every record at or after
// startLSN across every segment -- used to rebuild index state after a
// crash before the buffer pool resumes serving requests.
func (m *Manager) ReplayFromLSN(startLSN uint64, apply func(*Record) error) error {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.segments))
	for id := range m.segments {
		ids = append(ids, id)
	}
	segs := m.segments
	m.mu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		if err := replaySegment(segs[id], startLSN, apply); err != nil {
			return fmt.Errorf("wal: replay segment %d: %w", id, err)
		}
	}
	return nil
}

func replaySegment(seg *segment, startLSN uint64, apply func(*Record) error) error {
	seg.mu.Lock()
	defer seg.mu.Unlock()

	f, err := os.Open(seg.filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, recordHeaderSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return err
		}
		lsn := binary.BigEndian.Uint64(header[0:8])
		dataLen := binary.BigEndian.Uint32(header[8:12])
		crc := binary.BigEndian.Uint32(header[12:16])

		payload := make([]byte, dataLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			return err
		}
		if calculateCRC(lsn, payload) != crc {
			return fmt.Errorf("wal: CRC mismatch at LSN %d", lsn)
		}
		if lsn < startLSN {
			continue
		}
		rec, err := decodePayload(lsn, payload)
		if err != nil {
			return fmt.Errorf("wal: decode record at LSN %d: %w", lsn, err)
		}
		if err := apply(rec); err != nil {
			return fmt.Errorf("wal: apply record at LSN %d: %w", lsn, err)
		}
	}
	return nil
}

// Close syncs and closes every open segment.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seg := range m.segments {
		if seg.file == nil {
			continue
		}
		if err := seg.sync(); err != nil {
			return err
		}
		if err := seg.close(); err != nil {
			return err
		}
	}
	return nil
}
