package gattc

import (
	"testing"
	"time"
)

func TestTablePendingMergesBeforeScan(t *testing.T) {
	tbl := NewTable()
	r := &Record{Conn: 1, CID: 4, Op: OpRead}
	tbl.addPending(r)

	if !tbl.hasMatching(byConn(1)) {
		t.Fatalf("hasMatching() = false for a pending record, want true")
	}

	got := tbl.extractFirst(byConnOp(1, OpRead))
	if got != r {
		t.Fatalf("extractFirst() = %v, want the pending record", got)
	}
	if tbl.hasMatching(byConn(1)) {
		t.Errorf("record still tracked after extraction")
	}
}

func TestTableRemovePendingIsNoopAfterMerge(t *testing.T) {
	tbl := NewTable()
	r := &Record{Conn: 1, Op: OpRead}
	tbl.addPending(r)
	tbl.mergePending()

	tbl.removePending(r) // already merged; must not panic or touch records
	if !tbl.hasMatching(byConn(1)) {
		t.Errorf("removePending() after merge removed an already-merged record")
	}
}

func TestTableExtractMatchingPreservesOrder(t *testing.T) {
	tbl := NewTable()
	a := &Record{Conn: 1, Op: OpRead}
	b := &Record{Conn: 1, Op: OpWrite}
	c := &Record{Conn: 1, Op: OpIndicate}
	tbl.insert(a)
	tbl.insert(b)
	tbl.insert(c)

	out := tbl.extractMatching(byConn(1), 0)
	if len(out) != 3 || out[0] != a || out[1] != b || out[2] != c {
		t.Fatalf("extractMatching() = %v, want [a b c] in insertion order", out)
	}
}

func TestTableExpiredPredicateDoesNotExemptStalled(t *testing.T) {
	now := time.Now()
	stalledOverdue := &Record{Deadline: now.Add(-time.Second), Flags: FlagStalled}
	overdue := &Record{Deadline: now.Add(-time.Second)}
	fresh := &Record{Deadline: now.Add(time.Minute)}
	noDeadline := &Record{Flags: FlagStalled}

	pred := expired(now)
	if !pred(stalledOverdue) {
		t.Errorf("expired() did not match an overdue STALLED record; a stall must not extend the deadline")
	}
	if !pred(overdue) {
		t.Errorf("expired() did not match an overdue record")
	}
	if pred(fresh) {
		t.Errorf("expired() matched a record with a future deadline")
	}
	if pred(noDeadline) {
		t.Errorf("expired() matched a record with no deadline (a stall on the first TX, before any deadline was ever set)")
	}
}

func TestTableReinsertAfterExtraction(t *testing.T) {
	tbl := NewTable()
	r := &Record{Conn: 1, CID: 4, Op: OpReadLong}
	tbl.insert(r)

	got := tbl.extractFirst(byConnCIDOp(1, 4, OpReadLong))
	if got != r {
		t.Fatalf("extractFirst() = %v, want r", got)
	}
	tbl.reinsert(r)

	if tbl.extractFirst(byConnCIDOp(1, 4, OpReadLong)) != r {
		t.Errorf("record not found after reinsert")
	}
}
