package lockmgr

import (
	"DaemonDB/concurrency/txn"
	"errors"
	"testing"
	"time"
)

func newTestManager() (*Manager, *txn.Manager) {
	txns := txn.NewManager()
	return NewManager(txns), txns
}

func TestLockTableGrantsCompatibleSharedLocks(t *testing.T) {
	m, txns := newTestManager()
	t1 := txns.Begin(txn.RepeatableRead)
	t2 := txns.Begin(txn.RepeatableRead)

	if ok, err := m.LockTable(t1, txn.Shared, "orders"); !ok || err != nil {
		t.Fatalf("T1 S-lock: ok=%v err=%v", ok, err)
	}
	if ok, err := m.LockTable(t2, txn.Shared, "orders"); !ok || err != nil {
		t.Fatalf("T2 S-lock: ok=%v err=%v", ok, err)
	}
}

func TestLockRowRejectsIntentionModes(t *testing.T) {
	m, txns := newTestManager()
	t1 := txns.Begin(txn.RepeatableRead)
	if _, err := m.LockRow(t1, txn.IntentionShared, "orders", txn.RID{PageID: 1}); err == nil {
		t.Fatalf("LockRow with an intention mode should be rejected")
	}
	var abortErr *AbortError
	if _, err := m.LockRow(t1, txn.IntentionShared, "orders", txn.RID{PageID: 1}); !errorsAs(err, &abortErr) || abortErr.Reason != AttemptedIntentionLockOnRow {
		t.Fatalf("want AttemptedIntentionLockOnRow, got %v", err)
	}
}

// TestLockUpgrade reproduces spec.md scenario 4: T1 S-locks table t; T2
// S-locks t; T1 upgrades to X, blocking until T2 unlocks.
func TestLockUpgrade(t *testing.T) {
	m, txns := newTestManager()
	t1 := txns.Begin(txn.RepeatableRead)
	t2 := txns.Begin(txn.RepeatableRead)

	mustLockTable(t, m, t1, txn.Shared, "orders")
	mustLockTable(t, m, t2, txn.Shared, "orders")

	upgraded := make(chan error, 1)
	go func() {
		_, err := m.LockTable(t1, txn.Exclusive, "orders")
		upgraded <- err
	}()

	select {
	case <-upgraded:
		t.Fatalf("upgrade should block while T2 still holds S")
	case <-time.After(30 * time.Millisecond):
	}

	if ok, err := m.UnlockTable(t2, "orders"); !ok || err != nil {
		t.Fatalf("T2 unlock: ok=%v err=%v", ok, err)
	}

	select {
	case err := <-upgraded:
		if err != nil {
			t.Fatalf("T1 upgrade failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("T1 upgrade never completed after T2 unlocked")
	}
	if !t1.HasTableLock(txn.Exclusive, "orders") {
		t.Fatalf("T1 should hold X after upgrading")
	}
}

// TestUpgradeConflict reproduces spec.md scenario 5: two transactions
// both holding S try to upgrade to X concurrently; exactly one succeeds
// and the other aborts with UpgradeConflict.
func TestUpgradeConflict(t *testing.T) {
	m, txns := newTestManager()
	t1 := txns.Begin(txn.RepeatableRead)
	t2 := txns.Begin(txn.RepeatableRead)

	mustLockTable(t, m, t1, txn.Shared, "orders")
	mustLockTable(t, m, t2, txn.Shared, "orders")

	results := make(chan error, 2)
	go func() { _, err := m.LockTable(t1, txn.Exclusive, "orders"); results <- err }()
	go func() { _, err := m.LockTable(t2, txn.Exclusive, "orders"); results <- err }()

	var conflicts int
	timeout := time.After(time.Second)
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				var abortErr *AbortError
				if !errorsAs(err, &abortErr) || abortErr.Reason != UpgradeConflict {
					t.Fatalf("unexpected error: %v", err)
				}
				conflicts++
			}
		case <-timeout:
			t.Fatalf("upgrade race did not resolve")
		}
	}
	if conflicts != 1 {
		t.Fatalf("expected exactly one UPGRADE_CONFLICT, got %d", conflicts)
	}
}

// TestIsolationStateTransition reproduces spec.md scenario 6: under
// REPEATABLE_READ, unlocking S moves GROWING -> SHRINKING, after which a
// new X request aborts with LockOnShrinking.
func TestIsolationStateTransition(t *testing.T) {
	m, txns := newTestManager()
	t1 := txns.Begin(txn.RepeatableRead)

	mustLockTable(t, m, t1, txn.Shared, "orders")
	if ok, err := m.UnlockTable(t1, "orders"); !ok || err != nil {
		t.Fatalf("Unlock: ok=%v err=%v", ok, err)
	}
	if t1.State() != txn.Shrinking {
		t.Fatalf("State() = %v, want Shrinking", t1.State())
	}

	_, err := m.LockTable(t1, txn.Exclusive, "accounts")
	var abortErr *AbortError
	if !errorsAs(err, &abortErr) || abortErr.Reason != LockOnShrinking {
		t.Fatalf("want LockOnShrinking, got %v", err)
	}
	if t1.State() != txn.Aborted {
		t.Fatalf("State() after rejected lock = %v, want Aborted", t1.State())
	}
}

func TestHasCycleFindsYoungestVictim(t *testing.T) {
	m, _ := newTestManager()
	m.AddEdge(1, 2)
	m.AddEdge(2, 3)
	m.AddEdge(3, 1)

	var victim uint64
	if !m.HasCycle(&victim) {
		t.Fatalf("HasCycle should find the 1->2->3->1 cycle")
	}
	if victim != 3 {
		t.Fatalf("victim = %d, want 3 (youngest/highest id in the cycle)", victim)
	}
}

func TestHasCycleFalseOnAcyclicGraph(t *testing.T) {
	m, _ := newTestManager()
	m.AddEdge(1, 2)
	m.AddEdge(2, 3)
	var victim uint64
	if m.HasCycle(&victim) {
		t.Fatalf("1->2->3 is not a cycle")
	}
}

// TestRunCycleDetectionBreaksDeadlock has two transactions X-lock
// disjoint tables and then each wait on the other's table, forming a
// live wait-for cycle; the background detector must abort one of them
// so the other's LockTable call completes.
func TestRunCycleDetectionBreaksDeadlock(t *testing.T) {
	m, txns := newTestManager()
	m.CycleDetectionInterval = 5 * time.Millisecond
	go m.RunCycleDetection()
	defer m.Stop()

	t1 := txns.Begin(txn.RepeatableRead)
	t2 := txns.Begin(txn.RepeatableRead)

	mustLockTable(t, m, t1, txn.Exclusive, "a")
	mustLockTable(t, m, t2, txn.Exclusive, "b")

	results := make(chan error, 2)
	go func() { _, err := m.LockTable(t1, txn.Exclusive, "b"); results <- err }()
	go func() { _, err := m.LockTable(t2, txn.Exclusive, "a"); results <- err }()

	var aborts int
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				aborts++
			}
		case <-timeout:
			t.Fatalf("deadlock was never broken")
		}
	}
	if aborts != 1 {
		t.Fatalf("expected exactly one transaction aborted to break the cycle, got %d", aborts)
	}
}

func TestGetEdgeListIsSortedAndDeduplicated(t *testing.T) {
	m, _ := newTestManager()
	m.AddEdge(2, 1)
	m.AddEdge(1, 3)
	m.AddEdge(2, 1)
	edges := m.GetEdgeList()
	if len(edges) != 2 {
		t.Fatalf("GetEdgeList returned %d edges, want 2", len(edges))
	}
	if edges[0] != (Edge{From: 1, To: 3}) || edges[1] != (Edge{From: 2, To: 1}) {
		t.Fatalf("GetEdgeList = %v, want sorted [{1 3} {2 1}]", edges)
	}
}

func mustLockTable(t *testing.T, m *Manager, tx *txn.Transaction, mode txn.LockMode, oid string) {
	t.Helper()
	if ok, err := m.LockTable(tx, mode, oid); !ok || err != nil {
		t.Fatalf("LockTable(%v, %q): ok=%v err=%v", mode, oid, ok, err)
	}
}

func errorsAs(err error, target **AbortError) bool {
	return errors.As(err, target)
}
