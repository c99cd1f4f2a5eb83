package txn

// LockMode is a multi-granularity lock mode. Lives alongside Transaction
// (rather than in concurrency/lockmgr) because the transaction's lock
// sets are keyed by it and concurrency/lockmgr imports txn, not the
// other way around -- mirrors original_source/src/concurrency/
// lock_manager.cpp defining LockMode for the same reason.
type LockMode uint8

const (
	IntentionShared LockMode = iota
	IntentionExclusive
	Shared
	SharedIntentionExclusive
	Exclusive
)

func (m LockMode) String() string {
	switch m {
	case IntentionShared:
		return "IS"
	case IntentionExclusive:
		return "IX"
	case Shared:
		return "S"
	case SharedIntentionExclusive:
		return "SIX"
	case Exclusive:
		return "X"
	default:
		return "?"
	}
}
