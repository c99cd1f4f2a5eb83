// Command daemondb is a minimal interactive REPL over the storage and
// concurrency core: open a disk file, then issue put/get/del/scan
// against named B+-tree indexes and begin/commit/abort/lock/unlock
// against the transaction and lock managers.
//
// Grounded on the teacher's root main.go (bufio.Scanner loop, "db>"
// prompt, strings.TrimSpace/strings.EqualFold dispatch); not a SQL front
// end -- the lexer/parser/bytecode VM it drove are out of scope here, so
// this dispatches on a small fixed command set against the core
// directly instead of parsing statements.
package main

import (
	"DaemonDB/catalog"
	"DaemonDB/concurrency/lockmgr"
	"DaemonDB/concurrency/txn"
	"DaemonDB/storage/buffer"
	"DaemonDB/storage/disk"
	"DaemonDB/storage/index"
	"DaemonDB/wal"
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	poolCapacity = 128
	replacerK    = 2
	defaultOrder = 64
)

type repl struct {
	d    *disk.Manager
	pool *buffer.Pool
	cat  *catalog.Catalog
	w    *wal.Manager

	txns *txn.Manager
	lm   *lockmgr.Manager

	current *txn.Transaction
}

func main() {
	path := "daemon.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	d, err := disk.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer d.Close()

	w, err := wal.Open(path + ".wal")
	if err != nil {
		log.Fatalf("open wal: %v", err)
	}
	defer w.Close()

	pool := buffer.New(poolCapacity, replacerK, d)
	pool.SetWAL(w)

	txns := txn.NewManager()
	lm := lockmgr.NewManager(txns)
	go lm.RunCycleDetection()
	defer lm.Stop()

	r := &repl{
		d:    d,
		pool: pool,
		cat:  catalog.New(pool, d),
		w:    w,
		txns: txns,
		lm:   lm,
	}
	r.run()
}

func (r *repl) run() {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			break
		}
		r.dispatch(line)
	}
	r.pool.FlushAllPages()
}

func (r *repl) dispatch(line string) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	var err error
	switch cmd {
	case "put":
		err = r.put(args)
	case "get":
		err = r.get(args)
	case "del":
		err = r.del(args)
	case "scan":
		err = r.scan(args)
	case "begin":
		err = r.begin(args)
	case "commit":
		err = r.commit()
	case "abort":
		err = r.abort()
	case "lock":
		err = r.lock(args)
	case "unlock":
		err = r.unlock(args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func (r *repl) index(name string) (*index.BPlusTree, error) {
	if tree, ok := r.cat.Get(name); ok {
		return tree, nil
	}
	return r.cat.CreateIndex(name, index.Config{LeafMax: defaultOrder, InternalMax: defaultOrder})
}

func (r *repl) requireTxn() (*txn.Transaction, error) {
	if r.current == nil {
		return nil, fmt.Errorf("no active transaction; run begin first")
	}
	return r.current, nil
}

func (r *repl) put(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: put <index> <key> <value>")
	}
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	tree, err := r.index(args[0])
	if err != nil {
		return err
	}
	if _, err := r.lm.LockTable(t, txn.IntentionExclusive, args[0]); err != nil {
		return err
	}
	inserted, err := tree.Insert([]byte(args[1]), []byte(args[2]))
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("key %q already exists in index %q", args[1], args[0])
	}
	_, err = r.w.Append(wal.Record{TxnID: t.ID(), Kind: wal.OpPut, Index: args[0], Key: []byte(args[1]), Value: []byte(args[2])})
	return err
}

func (r *repl) get(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <index> <key>")
	}
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	tree, err := r.index(args[0])
	if err != nil {
		return err
	}
	if _, err := r.lm.LockTable(t, txn.IntentionShared, args[0]); err != nil {
		return err
	}
	val, found, err := tree.Get([]byte(args[1]))
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Println(string(val))
	return nil
}

func (r *repl) del(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: del <index> <key>")
	}
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	tree, err := r.index(args[0])
	if err != nil {
		return err
	}
	if _, err := r.lm.LockTable(t, txn.IntentionExclusive, args[0]); err != nil {
		return err
	}
	if err := tree.Remove([]byte(args[1])); err != nil {
		return err
	}
	_, err = r.w.Append(wal.Record{TxnID: t.ID(), Kind: wal.OpDelete, Index: args[0], Key: []byte(args[1])})
	return err
}

func (r *repl) scan(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: scan <index> [start]")
	}
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	tree, err := r.index(args[0])
	if err != nil {
		return err
	}
	if _, err := r.lm.LockTable(t, txn.IntentionShared, args[0]); err != nil {
		return err
	}
	var start []byte
	if len(args) > 1 {
		start = []byte(args[1])
	}
	it, err := tree.Scan(start)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		fmt.Printf("%s -> %s\n", it.Key(), it.Value())
	}
	return nil
}

func (r *repl) begin(args []string) error {
	if r.current != nil {
		return fmt.Errorf("a transaction is already active (id %d)", r.current.ID())
	}
	level := txn.RepeatableRead
	if len(args) > 0 {
		var err error
		level, err = parseIsolation(args[0])
		if err != nil {
			return err
		}
	}
	r.current = r.txns.Begin(level)
	fmt.Printf("started transaction %d\n", r.current.ID())
	return nil
}

func (r *repl) commit() error {
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	if _, err := r.w.Append(wal.Record{TxnID: t.ID(), Kind: wal.OpCommit}); err != nil {
		return err
	}
	if err := r.w.Sync(); err != nil {
		return err
	}
	if err := r.txns.Commit(t); err != nil {
		return err
	}
	r.current = nil
	return nil
}

func (r *repl) abort() error {
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	if _, err := r.w.Append(wal.Record{TxnID: t.ID(), Kind: wal.OpAbort}); err != nil {
		return err
	}
	if err := r.txns.Abort(t); err != nil {
		return err
	}
	r.current = nil
	return nil
}

func (r *repl) lock(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: lock table|row <mode> <oid> [pageID slot]")
	}
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	mode, err := parseLockMode(args[1])
	if err != nil {
		return err
	}
	switch strings.ToLower(args[0]) {
	case "table":
		_, err = r.lm.LockTable(t, mode, args[2])
	case "row":
		if len(args) != 5 {
			return fmt.Errorf("usage: lock row <mode> <oid> <pageID> <slot>")
		}
		rid, err2 := parseRID(args[3], args[4])
		if err2 != nil {
			return err2
		}
		_, err = r.lm.LockRow(t, mode, args[2], rid)
	default:
		return fmt.Errorf("lock target must be table or row, got %q", args[0])
	}
	return err
}

func (r *repl) unlock(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: unlock table|row <oid> [pageID slot]")
	}
	t, err := r.requireTxn()
	if err != nil {
		return err
	}
	switch strings.ToLower(args[0]) {
	case "table":
		_, err = r.lm.UnlockTable(t, args[1])
	case "row":
		if len(args) != 4 {
			return fmt.Errorf("usage: unlock row <oid> <pageID> <slot>")
		}
		rid, err2 := parseRID(args[2], args[3])
		if err2 != nil {
			return err2
		}
		_, err = r.lm.UnlockRow(t, args[1], rid)
	default:
		return fmt.Errorf("unlock target must be table or row, got %q", args[0])
	}
	return err
}

func parseIsolation(s string) (txn.IsolationLevel, error) {
	switch strings.ToLower(s) {
	case "read-uncommitted":
		return txn.ReadUncommitted, nil
	case "read-committed":
		return txn.ReadCommitted, nil
	case "repeatable-read":
		return txn.RepeatableRead, nil
	default:
		return 0, fmt.Errorf("unknown isolation level %q", s)
	}
}

func parseLockMode(s string) (txn.LockMode, error) {
	switch strings.ToUpper(s) {
	case "IS":
		return txn.IntentionShared, nil
	case "IX":
		return txn.IntentionExclusive, nil
	case "S":
		return txn.Shared, nil
	case "SIX":
		return txn.SharedIntentionExclusive, nil
	case "X":
		return txn.Exclusive, nil
	default:
		return 0, fmt.Errorf("unknown lock mode %q", s)
	}
}

func parseRID(pageIDStr, slotStr string) (txn.RID, error) {
	pageID, err := strconv.ParseInt(pageIDStr, 10, 64)
	if err != nil {
		return txn.RID{}, fmt.Errorf("invalid page id %q: %w", pageIDStr, err)
	}
	slot, err := strconv.ParseUint(slotStr, 10, 32)
	if err != nil {
		return txn.RID{}, fmt.Errorf("invalid slot %q: %w", slotStr, err)
	}
	return txn.RID{PageID: pageID, Slot: uint32(slot)}, nil
}
