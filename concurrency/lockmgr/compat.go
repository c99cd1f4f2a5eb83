package lockmgr

import "DaemonDB/concurrency/txn"

// compatible reports whether a and b may be held simultaneously by two
// different transactions on the same resource, per spec.md 4.5's matrix
// (symmetric: compatible(a,b) == compatible(b,a)).
var compatible = [5][5]bool{
	txn.IntentionShared:          {txn.IntentionShared: true, txn.IntentionExclusive: true, txn.Shared: true, txn.SharedIntentionExclusive: true, txn.Exclusive: false},
	txn.IntentionExclusive:       {txn.IntentionShared: true, txn.IntentionExclusive: true, txn.Shared: false, txn.SharedIntentionExclusive: false, txn.Exclusive: false},
	txn.Shared:                   {txn.IntentionShared: true, txn.IntentionExclusive: false, txn.Shared: true, txn.SharedIntentionExclusive: false, txn.Exclusive: false},
	txn.SharedIntentionExclusive: {txn.IntentionShared: true, txn.IntentionExclusive: false, txn.Shared: false, txn.SharedIntentionExclusive: false, txn.Exclusive: false},
	txn.Exclusive:                {txn.IntentionShared: false, txn.IntentionExclusive: false, txn.Shared: false, txn.SharedIntentionExclusive: false, txn.Exclusive: false},
}

// checkCompatibility reports whether req (already in the queue at its
// position) is grantable: every request strictly ahead of it must either
// be granted-and-compatible, or the scan fails. Matches original_source's
// CheckCompability, simplified from its O(n^2) pairwise rescan to a
// single pass since only req's compatibility against earlier *granted*
// requests matters for granting req itself.
func checkCompatibility(requests []*request, idx int) bool {
	for i := 0; i < idx; i++ {
		if !requests[i].granted {
			return false
		}
		if !compatible[requests[i].mode][requests[idx].mode] {
			return false
		}
	}
	return true
}

// checkLockReasonability applies spec.md 4.5 step 1's admission rules,
// returning an *AbortError describing the first violation found (if
// any); the caller must set the transaction's state to Aborted itself
// since the two concerns -- classifying and applying -- are split across
// packages here (txn knows nothing about lockmgr).
func checkLockReasonability(t *txn.Transaction, mode txn.LockMode, isRow bool) *AbortError {
	if isRow && (mode == txn.IntentionShared || mode == txn.IntentionExclusive || mode == txn.SharedIntentionExclusive) {
		return &AbortError{TxnID: t.ID(), Reason: AttemptedIntentionLockOnRow}
	}

	state := t.State()
	if state == txn.Shrinking && (mode == txn.IntentionExclusive || mode == txn.Exclusive) {
		return &AbortError{TxnID: t.ID(), Reason: LockOnShrinking}
	}

	switch t.IsolationLevel() {
	case txn.ReadUncommitted:
		if mode == txn.Shared || mode == txn.IntentionShared || mode == txn.SharedIntentionExclusive {
			return &AbortError{TxnID: t.ID(), Reason: LockSharedOnReadUncommitted}
		}
		if state == txn.Shrinking {
			return &AbortError{TxnID: t.ID(), Reason: LockOnShrinking}
		}
	case txn.ReadCommitted:
		if state == txn.Shrinking && mode != txn.IntentionShared && mode != txn.Shared {
			return &AbortError{TxnID: t.ID(), Reason: LockOnShrinking}
		}
	case txn.RepeatableRead:
		if state == txn.Shrinking {
			return &AbortError{TxnID: t.ID(), Reason: LockOnShrinking}
		}
	}
	return nil
}

// upgradeResult is checkUpgradability's verdict.
type upgradeResult int

const (
	upgradeAbort    upgradeResult = iota // transaction must abort, see err
	upgradeIsUpgrade                     // the held lock differs and dominates -- splice into queue
	upgradeNoop                          // identical mode already held -- return true immediately
	upgradeFresh                         // no lock held yet on this resource -- plain new request
)

// checkUpgradability implements spec.md 4.5 steps 2-3: the row/table
// hierarchy precondition and upgrade classification.
func checkUpgradability(t *txn.Transaction, mode txn.LockMode, oid string, rid txn.RID, isRow bool) (upgradeResult, *AbortError) {
	if isRow {
		if mode == txn.Exclusive {
			_, hasX := tableHas(t, oid, txn.Exclusive)
			_, hasIX := tableHas(t, oid, txn.IntentionExclusive)
			_, hasSIX := tableHas(t, oid, txn.SharedIntentionExclusive)
			if !hasX && !hasIX && !hasSIX {
				return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: TableLockNotPresent}
			}
		}
		if mode == txn.Shared {
			_, hasS := tableHas(t, oid, txn.Shared)
			_, hasIS := tableHas(t, oid, txn.IntentionShared)
			_, hasIX := tableHas(t, oid, txn.IntentionExclusive)
			_, hasX := tableHas(t, oid, txn.Exclusive)
			_, hasSIX := tableHas(t, oid, txn.SharedIntentionExclusive)
			if !hasS && !hasIS && !hasIX && !hasX && !hasSIX {
				return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: TableLockNotPresent}
			}
		}

		if t.HasRowLock(txn.Shared, oid, rid) {
			if mode == txn.Shared {
				return upgradeNoop, nil
			}
			return upgradeIsUpgrade, nil
		}
		if t.HasRowLock(txn.Exclusive, oid, rid) {
			return upgradeNoop, nil
		}
		return upgradeFresh, nil
	}

	held, ok := t.FindTableLock(oid)
	if !ok {
		return upgradeFresh, nil
	}
	if held == mode {
		return upgradeNoop, nil
	}
	switch held {
	case txn.IntentionShared:
		return upgradeIsUpgrade, nil
	case txn.Shared:
		if mode == txn.Exclusive || mode == txn.SharedIntentionExclusive {
			return upgradeIsUpgrade, nil
		}
		return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: IncompatibleUpgrade}
	case txn.IntentionExclusive:
		if mode == txn.Exclusive || mode == txn.SharedIntentionExclusive {
			return upgradeIsUpgrade, nil
		}
		return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: IncompatibleUpgrade}
	case txn.SharedIntentionExclusive:
		if mode == txn.Exclusive {
			return upgradeIsUpgrade, nil
		}
		return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: IncompatibleUpgrade}
	case txn.Exclusive:
		return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: IncompatibleUpgrade}
	}
	return upgradeAbort, &AbortError{TxnID: t.ID(), Reason: IncompatibleUpgrade}
}

func tableHas(t *txn.Transaction, oid string, mode txn.LockMode) (txn.LockMode, bool) {
	return mode, t.HasTableLock(mode, oid)
}

// updateTransactionState applies spec.md 4.5's unlock state-transition
// table: the first unlock the isolation level considers "strict" moves
// the transaction GROWING -> SHRINKING.
func updateTransactionState(t *txn.Transaction, unlockedMode txn.LockMode) {
	if t.State() != txn.Growing {
		return
	}
	switch t.IsolationLevel() {
	case txn.RepeatableRead:
		if unlockedMode == txn.Shared || unlockedMode == txn.Exclusive {
			t.SetState(txn.Shrinking)
		}
	case txn.ReadCommitted, txn.ReadUncommitted:
		if unlockedMode == txn.Exclusive {
			t.SetState(txn.Shrinking)
		}
	}
}
