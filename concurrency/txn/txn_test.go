package txn

import "testing"

func TestBeginAssignsDistinctIDs(t *testing.T) {
	m := NewManager()
	a := m.Begin(RepeatableRead)
	b := m.Begin(RepeatableRead)
	if a.ID() == b.ID() {
		t.Fatalf("Begin assigned duplicate ids: %d, %d", a.ID(), b.ID())
	}
	if a.State() != Growing || b.State() != Growing {
		t.Fatalf("new transactions should start GROWING")
	}
}

func TestCommitRemovesFromActiveSet(t *testing.T) {
	m := NewManager()
	tx := m.Begin(ReadCommitted)
	if m.Get(tx.ID()) == nil {
		t.Fatalf("transaction should be active before commit")
	}
	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tx.State() != Committed {
		t.Fatalf("State() = %v, want Committed", tx.State())
	}
	if m.Get(tx.ID()) != nil {
		t.Fatalf("transaction should no longer be active after commit")
	}
}

func TestAbortAfterCommitFails(t *testing.T) {
	m := NewManager()
	tx := m.Begin(ReadCommitted)
	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	m.active[tx.ID()] = tx // force re-check path for a committed-but-still-tracked txn
	if err := m.Abort(tx); err == nil {
		t.Fatalf("Abort after Commit should fail")
	}
	delete(m.active, tx.ID())
}

func TestTableLockSetRecordsAndClears(t *testing.T) {
	tx := newTransaction(1, RepeatableRead)
	tx.InsertTableLock(Shared, "orders")
	if !tx.HasTableLock(Shared, "orders") {
		t.Fatalf("HasTableLock should report the inserted lock")
	}
	mode, ok := tx.FindTableLock("orders")
	if !ok || mode != Shared {
		t.Fatalf("FindTableLock = (%v, %v), want (Shared, true)", mode, ok)
	}
	tx.DeleteTableLock(Shared, "orders")
	if tx.HasTableLock(Shared, "orders") {
		t.Fatalf("HasTableLock should be false after delete")
	}
}

func TestRowLockSetTracksPerTableCounts(t *testing.T) {
	tx := newTransaction(1, RepeatableRead)
	rid := RID{PageID: 7, Slot: 2}
	tx.InsertRowLock(Shared, "orders", rid)
	if tx.RowLockCount(Shared, "orders") != 1 {
		t.Fatalf("RowLockCount = %d, want 1", tx.RowLockCount(Shared, "orders"))
	}
	tx.DeleteRowLock(Shared, "orders", rid)
	if tx.RowLockCount(Shared, "orders") != 0 {
		t.Fatalf("RowLockCount after delete = %d, want 0", tx.RowLockCount(Shared, "orders"))
	}
}

func TestHeldTableLocksSnapshotsEveryMode(t *testing.T) {
	tx := newTransaction(1, RepeatableRead)
	tx.InsertTableLock(IntentionShared, "orders")
	tx.InsertTableLock(Exclusive, "accounts")

	held := tx.HeldTableLocks()
	if len(held) != 2 {
		t.Fatalf("HeldTableLocks returned %d entries, want 2", len(held))
	}
	seen := map[string]LockMode{}
	for _, l := range held {
		seen[l.OID] = l.Mode
	}
	if seen["orders"] != IntentionShared || seen["accounts"] != Exclusive {
		t.Fatalf("HeldTableLocks = %v, want orders=IS accounts=X", seen)
	}
}

func TestHeldRowLocksSnapshotsEveryTableAndRow(t *testing.T) {
	tx := newTransaction(1, RepeatableRead)
	r1 := RID{PageID: 1, Slot: 0}
	r2 := RID{PageID: 2, Slot: 1}
	tx.InsertRowLock(Shared, "orders", r1)
	tx.InsertRowLock(Exclusive, "accounts", r2)

	held := tx.HeldRowLocks()
	if len(held) != 2 {
		t.Fatalf("HeldRowLocks returned %d entries, want 2", len(held))
	}
	for _, l := range held {
		switch l.OID {
		case "orders":
			if l.Mode != Shared || l.RID != r1 {
				t.Fatalf("orders entry = %+v, want Shared %v", l, r1)
			}
		case "accounts":
			if l.Mode != Exclusive || l.RID != r2 {
				t.Fatalf("accounts entry = %+v, want Exclusive %v", l, r2)
			}
		default:
			t.Fatalf("unexpected oid %q in HeldRowLocks", l.OID)
		}
	}
}
