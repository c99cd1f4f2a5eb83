package txn

// The accessors below mirror original_source's Transaction::Get*LockSet()
// family. None of them hands out the underlying maps: each answers a
// query, mutates one entry, or returns a snapshot, all under the
// transaction's own mutex, so concurrent callers (concurrency/lockmgr
// calls them without holding any queue latch) never see torn map
// iteration.

func (t *Transaction) withLocks(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f()
}

// HasTableLock reports whether the transaction holds mode on oid.
func (t *Transaction) HasTableLock(mode LockMode, oid string) bool {
	var ok bool
	t.withLocks(func() {
		_, ok = t.tableSetFor(mode)[oid]
	})
	return ok
}

func (t *Transaction) tableSetFor(mode LockMode) set {
	switch mode {
	case Shared:
		return t.sharedTable
	case Exclusive:
		return t.exclusiveTable
	case IntentionShared:
		return t.isTable
	case IntentionExclusive:
		return t.ixTable
	case SharedIntentionExclusive:
		return t.sixTable
	default:
		return nil
	}
}

// InsertTableLock records that the transaction now holds mode on oid.
func (t *Transaction) InsertTableLock(mode LockMode, oid string) {
	t.withLocks(func() { t.tableSetFor(mode)[oid] = struct{}{} })
}

// DeleteTableLock removes the transaction's record of mode on oid.
func (t *Transaction) DeleteTableLock(mode LockMode, oid string) {
	t.withLocks(func() { delete(t.tableSetFor(mode), oid) })
}

// FindTableLock returns the mode the transaction currently holds on oid,
// if any.
func (t *Transaction) FindTableLock(oid string) (LockMode, bool) {
	var (
		mode  LockMode
		found bool
	)
	t.withLocks(func() {
		for _, m := range []LockMode{Exclusive, SharedIntentionExclusive, IntentionExclusive, Shared, IntentionShared} {
			if _, ok := t.tableSetFor(m)[oid]; ok {
				mode, found = m, true
				return
			}
		}
	})
	return mode, found
}

func (t *Transaction) rowSetFor(mode LockMode) rowSet {
	if mode == Shared {
		return t.sharedRow
	}
	return t.exclusiveRow
}

// HasRowLock reports whether the transaction holds mode on oid/rid.
func (t *Transaction) HasRowLock(mode LockMode, oid string, rid RID) bool {
	var ok bool
	t.withLocks(func() {
		rows := t.rowSetFor(mode)[oid]
		_, ok = rows[rid]
	})
	return ok
}

// InsertRowLock records that the transaction now holds mode on oid/rid.
func (t *Transaction) InsertRowLock(mode LockMode, oid string, rid RID) {
	t.withLocks(func() {
		rows := t.rowSetFor(mode)
		if rows[oid] == nil {
			rows[oid] = map[RID]struct{}{}
		}
		rows[oid][rid] = struct{}{}
	})
}

// DeleteRowLock removes the transaction's record of mode on oid/rid,
// dropping the per-table entry entirely once it is empty.
func (t *Transaction) DeleteRowLock(mode LockMode, oid string, rid RID) {
	t.withLocks(func() {
		rows := t.rowSetFor(mode)
		if rows[oid] == nil {
			return
		}
		delete(rows[oid], rid)
		if len(rows[oid]) == 0 {
			delete(rows, oid)
		}
	})
}

// RowLockCount returns how many row locks of mode the transaction holds
// on oid, used by unlock_table's "rows still locked" guard.
func (t *Transaction) RowLockCount(mode LockMode, oid string) int {
	var n int
	t.withLocks(func() { n = len(t.rowSetFor(mode)[oid]) })
	return n
}

// TableLock pairs a held table-level mode with the oid it is held on.
type TableLock struct {
	OID  string
	Mode LockMode
}

// RowLock pairs a held row-level mode with the table oid and row it is
// held on.
type RowLock struct {
	OID  string
	RID  RID
	Mode LockMode
}

// HeldTableLocks snapshots every table lock the transaction currently
// holds, used when rolling back an aborted transaction's locks.
func (t *Transaction) HeldTableLocks() []TableLock {
	var out []TableLock
	t.withLocks(func() {
		for _, mode := range []LockMode{IntentionShared, IntentionExclusive, Shared, SharedIntentionExclusive, Exclusive} {
			for oid := range t.tableSetFor(mode) {
				out = append(out, TableLock{OID: oid, Mode: mode})
			}
		}
	})
	return out
}

// HeldRowLocks snapshots every row lock the transaction currently holds.
func (t *Transaction) HeldRowLocks() []RowLock {
	var out []RowLock
	t.withLocks(func() {
		for _, mode := range []LockMode{Shared, Exclusive} {
			for oid, rows := range t.rowSetFor(mode) {
				for rid := range rows {
					out = append(out, RowLock{OID: oid, RID: rid, Mode: mode})
				}
			}
		}
	})
	return out
}
