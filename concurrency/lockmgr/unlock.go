package lockmgr

import "DaemonDB/concurrency/txn"

// UnlockTable releases t's lock on oid. Mirrors original_source's
// LockManager::UnlockTable, including the "rows still locked" guard.
func (m *Manager) UnlockTable(t *txn.Transaction, oid string) (bool, error) {
	mode, held := t.FindTableLock(oid)
	if !held {
		t.SetState(txn.Aborted)
		return false, &AbortError{TxnID: t.ID(), Reason: AttemptedUnlockButNoLockHeld}
	}
	if t.RowLockCount(txn.Shared, oid) != 0 || t.RowLockCount(txn.Exclusive, oid) != 0 {
		t.SetState(txn.Aborted)
		return false, &AbortError{TxnID: t.ID(), Reason: TableUnlockedBeforeUnlockingRows}
	}

	q := m.tableQueue(oid)
	m.release(q, t, mode, oid, txn.RID{}, false)
	return true, nil
}

// UnlockRow releases t's lock on (oid, rid).
func (m *Manager) UnlockRow(t *txn.Transaction, oid string, rid txn.RID) (bool, error) {
	var mode txn.LockMode
	switch {
	case t.HasRowLock(txn.Shared, oid, rid):
		mode = txn.Shared
	case t.HasRowLock(txn.Exclusive, oid, rid):
		mode = txn.Exclusive
	default:
		t.SetState(txn.Aborted)
		return false, &AbortError{TxnID: t.ID(), Reason: AttemptedUnlockButNoLockHeld}
	}

	q := m.rowQueue(oid, rid)
	m.release(q, t, mode, oid, rid, true)
	return true, nil
}

func (m *Manager) release(q *queue, t *txn.Transaction, mode txn.LockMode, oid string, rid txn.RID, isRow bool) {
	q.mu.Lock()
	for i, r := range q.requests {
		if r.txnID == t.ID() && r.mode == mode && r.isRow == isRow {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			break
		}
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	deleteLockFromTxn(t, &request{mode: mode, oid: oid, rid: rid}, isRow)
	updateTransactionState(t, mode)
}

// releaseAll forces every lock t currently holds off of its resource
// queues, without the reasonability/state checks UnlockTable/UnlockRow
// apply -- used to unwind the already-granted locks of a deadlock victim
// or of the loser of an upgrade conflict so transactions waiting on them
// can proceed. t must already be ABORTED.
func (m *Manager) releaseAll(t *txn.Transaction) {
	for _, l := range t.HeldTableLocks() {
		q := m.tableQueue(l.OID)
		m.forceRelease(q, t.ID(), l.Mode, l.OID, txn.RID{}, false)
	}
	for _, l := range t.HeldRowLocks() {
		q := m.rowQueue(l.OID, l.RID)
		m.forceRelease(q, t.ID(), l.Mode, l.OID, l.RID, true)
	}
}

func (m *Manager) forceRelease(q *queue, txnID uint64, mode txn.LockMode, oid string, rid txn.RID, isRow bool) {
	q.mu.Lock()
	for i, r := range q.requests {
		if r.txnID == txnID && r.mode == mode && r.isRow == isRow {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			break
		}
	}
	if q.upgrading == txnID {
		q.upgrading = noTxn
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}
