// Package lockmgr implements the multi-granularity lock manager of
// spec.md 4.5: table/row locking under IS/IX/S/SIX/X with strict 2PL
// admission rules, lock upgrades, and a background deadlock detector.
//
// Grounded directly on original_source/src/concurrency/lock_manager.cpp
// (LockTable/LockRow/UnlockTable/UnlockRow, CheckLockReasonability/
// CheckUpgradability/CheckCompability, InsertLockToTransaction/
// DeleteLockInTransaction, UpdateTransactionState) -- this subsystem has
// no analogue in the teacher repo or the rest of the example pack (none
// of them implement multi-granularity locking), so every algorithm here
// is a transliteration of the C++ original into the teacher's own Go
// idiom: exported methods returning (bool, error) instead of throwing,
// abort reasons carried by a typed *AbortError, sync.Mutex+sync.Cond in place of
// std::mutex+std::condition_variable.
package lockmgr

import (
	"DaemonDB/concurrency/txn"
	"fmt"
	"sync"
	"time"
)

// AbortReason classifies why the lock manager forced a transaction into
// the ABORTED state, matching original_source's AbortReason enum.
type AbortReason int

const (
	LockOnShrinking AbortReason = iota
	UpgradeConflict
	AttemptedUnlockButNoLockHeld
	TableUnlockedBeforeUnlockingRows
	AttemptedIntentionLockOnRow
	TableLockNotPresent
	IncompatibleUpgrade
	LockSharedOnReadUncommitted
	Deadlock
)

func (r AbortReason) String() string {
	switch r {
	case LockOnShrinking:
		return "LOCK_ON_SHRINKING"
	case UpgradeConflict:
		return "UPGRADE_CONFLICT"
	case AttemptedUnlockButNoLockHeld:
		return "ATTEMPTED_UNLOCK_BUT_NO_LOCK_HELD"
	case TableUnlockedBeforeUnlockingRows:
		return "TABLE_UNLOCKED_BEFORE_UNLOCKING_ROWS"
	case AttemptedIntentionLockOnRow:
		return "ATTEMPTED_INTENTION_LOCK_ON_ROW"
	case TableLockNotPresent:
		return "TABLE_LOCK_NOT_PRESENT"
	case IncompatibleUpgrade:
		return "INCOMPATIBLE_UPGRADE"
	case LockSharedOnReadUncommitted:
		return "LOCK_SHARED_ON_READ_UNCOMMITTED"
	case Deadlock:
		return "DEADLOCK"
	default:
		return "UNKNOWN_ABORT_REASON"
	}
}

// AbortError is returned (never panicked) when the lock manager aborts
// the calling transaction as a side effect of a misuse or a concurrency
// conflict -- spec.md 7's "convert to transaction abort + typed
// exception" rendered as a typed Go error.
type AbortError struct {
	TxnID  uint64
	Reason AbortReason
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("lockmgr: transaction %d aborted: %s", e.TxnID, e.Reason)
}

// noTxn is the sentinel used for "no one is upgrading this resource".
const noTxn uint64 = 0

// request is one queued lock request against a resource.
type request struct {
	txnID   uint64
	mode    txn.LockMode
	oid     string
	rid     txn.RID
	isRow   bool
	granted bool
}

// queue is the FIFO of requests (granted and waiting) against one
// resource, protected by its own latch -- original_source's
// LockRequestQueue.
type queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	requests  []*request
	upgrading uint64
}

func newQueue() *queue {
	q := &queue{upgrading: noTxn}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// rowKey identifies a row-lock queue: table oid plus row id.
type rowKey struct {
	oid string
	rid txn.RID
}

// Manager is the lock manager: one request queue per table oid and one
// per row id, each reached through a coarser map latch, hand-over-hand,
// exactly as original_source's table_lock_map_latch_ / row_lock_map_latch_
// guard their respective maps.
type Manager struct {
	tableMapMu sync.Mutex
	tableMap   map[string]*queue

	rowMapMu sync.Mutex
	rowMap   map[rowKey]*queue

	graphMu sync.Mutex
	edges   map[uint64]map[uint64]struct{}

	txns *txn.Manager

	EnableCycleDetection    bool
	CycleDetectionInterval  time.Duration
	stop                    chan struct{}
	detectionLoopRunning    bool
	detectionLoopRunningMux sync.Mutex
}

// NewManager returns an empty lock manager backed by txns for victim
// lookup during deadlock resolution.
func NewManager(txns *txn.Manager) *Manager {
	return &Manager{
		tableMap:               make(map[string]*queue),
		rowMap:                 make(map[rowKey]*queue),
		edges:                  make(map[uint64]map[uint64]struct{}),
		txns:                   txns,
		EnableCycleDetection:   true,
		CycleDetectionInterval: 50 * time.Millisecond,
		stop:                   make(chan struct{}),
	}
}
