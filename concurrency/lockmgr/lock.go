package lockmgr

import "DaemonDB/concurrency/txn"

// LockTable acquires mode on oid for t, blocking until granted, denied,
// or t is aborted (by this call or a concurrent deadlock victim pick).
// Mirrors original_source's LockManager::LockTable.
func (m *Manager) LockTable(t *txn.Transaction, mode txn.LockMode, oid string) (bool, error) {
	if err := checkLockReasonability(t, mode, false); err != nil {
		t.SetState(txn.Aborted)
		return false, err
	}

	result, err := checkUpgradability(t, mode, oid, txn.RID{}, false)
	if err != nil {
		t.SetState(txn.Aborted)
		return false, err
	}
	if result == upgradeNoop {
		return true, nil
	}

	q := m.tableQueue(oid)
	return m.acquire(q, t, mode, oid, txn.RID{}, false, result == upgradeIsUpgrade)
}

// LockRow acquires mode on (oid, rid) for t. Row locking never accepts
// intention modes; checkLockReasonability rejects those before reaching
// here. Mirrors original_source's LockManager::LockRow.
func (m *Manager) LockRow(t *txn.Transaction, mode txn.LockMode, oid string, rid txn.RID) (bool, error) {
	if err := checkLockReasonability(t, mode, true); err != nil {
		t.SetState(txn.Aborted)
		return false, err
	}

	result, err := checkUpgradability(t, mode, oid, rid, true)
	if err != nil {
		t.SetState(txn.Aborted)
		return false, err
	}
	if result == upgradeNoop {
		return true, nil
	}

	q := m.rowQueue(oid, rid)
	return m.acquire(q, t, mode, oid, rid, true, result == upgradeIsUpgrade)
}

func (m *Manager) tableQueue(oid string) *queue {
	m.tableMapMu.Lock()
	q, ok := m.tableMap[oid]
	if !ok {
		q = newQueue()
		m.tableMap[oid] = q
	}
	m.tableMapMu.Unlock()
	return q
}

func (m *Manager) rowQueue(oid string, rid txn.RID) *queue {
	key := rowKey{oid: oid, rid: rid}
	m.rowMapMu.Lock()
	q, ok := m.rowMap[key]
	if !ok {
		q = newQueue()
		m.rowMap[key] = q
	}
	m.rowMapMu.Unlock()
	return q
}

// acquire splices req into q (appending, or -- for an upgrade -- right
// before the first ungranted request) and blocks on q's condition
// variable until req is grantable or t aborts.
func (m *Manager) acquire(q *queue, t *txn.Transaction, mode txn.LockMode, oid string, rid txn.RID, isRow bool, upgrade bool) (bool, error) {
	txnID := t.ID()
	req := &request{txnID: txnID, mode: mode, oid: oid, rid: rid, isRow: isRow}

	q.mu.Lock()

	var idx int
	if upgrade {
		if q.upgrading != noTxn && q.upgrading != txnID {
			q.mu.Unlock()
			t.SetState(txn.Aborted)
			m.releaseAll(t)
			return false, &AbortError{TxnID: txnID, Reason: UpgradeConflict}
		}
		q.upgrading = txnID
		for i, r := range q.requests {
			if r.txnID == txnID {
				deleteLockFromTxn(t, q.requests[i], isRow)
				q.requests = append(q.requests[:i], q.requests[i+1:]...)
				break
			}
		}
		pos := len(q.requests)
		for i, r := range q.requests {
			if !r.granted {
				pos = i
				break
			}
		}
		q.requests = insertRequest(q.requests, pos, req)
		idx = pos
	} else {
		idx = len(q.requests)
		q.requests = append(q.requests, req)
	}

	for !checkCompatibility(q.requests, idx) {
		if t.State() == txn.Aborted {
			removeRequest(q, req)
			q.cond.Broadcast()
			q.mu.Unlock()
			return false, &AbortError{TxnID: txnID, Reason: Deadlock}
		}
		q.cond.Wait()
		idx = indexOf(q.requests, req)
		if idx < 0 {
			// Removed out from under us (deadlock victim cleanup).
			q.mu.Unlock()
			return false, &AbortError{TxnID: txnID, Reason: Deadlock}
		}
	}

	if q.upgrading == txnID {
		q.upgrading = noTxn
	}
	req.granted = true
	// Wake any waiter queued behind req: its grantability check only
	// looks backward, so a grant with no intervening unlock would
	// otherwise leave it asleep until some unrelated unlock happens to
	// broadcast this queue.
	q.cond.Broadcast()
	q.mu.Unlock()

	insertLockToTxn(t, req, isRow)
	return true, nil
}

func insertRequest(requests []*request, pos int, req *request) []*request {
	requests = append(requests, nil)
	copy(requests[pos+1:], requests[pos:])
	requests[pos] = req
	return requests
}

func indexOf(requests []*request, target *request) int {
	for i, r := range requests {
		if r == target {
			return i
		}
	}
	return -1
}

func removeRequest(q *queue, target *request) {
	for i, r := range q.requests {
		if r == target {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

func insertLockToTxn(t *txn.Transaction, r *request, isRow bool) {
	if isRow {
		t.InsertRowLock(r.mode, r.oid, r.rid)
		return
	}
	t.InsertTableLock(r.mode, r.oid)
}

func deleteLockFromTxn(t *txn.Transaction, r *request, isRow bool) {
	if isRow {
		t.DeleteRowLock(r.mode, r.oid, r.rid)
		return
	}
	t.DeleteTableLock(r.mode, r.oid)
}
