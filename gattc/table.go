package gattc

import (
	"sync"
	"time"
)

// Predicate selects records for Table.extractMatching / extractFirst.
type Predicate func(r *Record) bool

// byConnOp matches records on (conn, op).
func byConnOp(conn uint16, op Op) Predicate {
	return func(r *Record) bool { return r.Conn == conn && r.Op == op }
}

// byConnCIDOp matches records on (conn, cid, op).
func byConnCIDOp(conn, cid uint16, op Op) Predicate {
	return func(r *Record) bool { return r.Conn == conn && r.CID == cid && r.Op == op }
}

// byConnCIDOps matches records on (conn, cid, op in ops).
func byConnCIDOps(conn, cid uint16, ops ...Op) Predicate {
	return func(r *Record) bool {
		if r.Conn != conn || r.CID != cid {
			return false
		}
		for _, op := range ops {
			if r.Op == op {
				return true
			}
		}
		return false
	}
}

// byConn matches every record for a connection, any op.
func byConn(conn uint16) Predicate {
	return func(r *Record) bool { return r.Conn == conn }
}

// byConnCID matches every record for a connection's CID, any op (the
// first-match error path).
func byConnCID(conn, cid uint16) Predicate {
	return func(r *Record) bool { return r.Conn == conn && r.CID == cid }
}

// expired matches any record past its deadline, stalled or not: a stall
// never extends the 30s transaction deadline, so a record that has been
// retried many times without the peer ever answering still times out on
// schedule. A record with no deadline yet (the zero value, set only before
// its first TX has ever succeeded) is excluded rather than always expired.
func expired(now time.Time) Predicate {
	return func(r *Record) bool { return !r.Deadline.IsZero() && !now.Before(r.Deadline) }
}

func stalledPredicate() Predicate {
	return func(r *Record) bool { return r.stalled() }
}

// Table is the membership set of in-flight procedures, a sequence ordered
// by insertion. Mutations are synchronized by a single engine-wide mutex;
// only the engine task removes, but any task may insert.
//
// The pending list implements the preemption-protection variant described
// by the shared contract: an initiator appends its record to pending before
// handing the first request to the transport. A concurrent sweep (e.g.
// disconnect cleanup) merges pending into the main list before scanning, so
// a record whose TX has succeeded but which has not yet been formally
// inserted is never missed. If TX fails, the initiator calls removePending
// directly instead of merging.
type Table struct {
	mu      sync.Mutex
	records []*Record
	pending []*Record
}

// NewTable creates an empty procedure table.
func NewTable() *Table {
	return &Table{}
}

// addPending appends r to the pending list, ahead of its first TX attempt.
func (t *Table) addPending(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, r)
}

// removePending drops r from the pending list after a failed first TX. It
// is a no-op if r was already merged by a concurrent sweep.
func (t *Table) removePending(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = removeRecord(t.pending, r)
}

// mergePending folds the pending list into records. Called at the start of
// every engine-task scan, under the same lock as the scan itself.
func (t *Table) mergePending() {
	if len(t.pending) == 0 {
		return
	}
	t.records = append(t.records, t.pending...)
	t.pending = nil
}

// insert appends r directly to the main table, for a record that was never
// placed on pending. The engine itself does not call it: first TX goes
// through promotePending and continuations through reinsert.
func (t *Table) insert(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mergePending()
	t.records = append(t.records, r)
}

// promotePending moves r from pending into the main table after a
// successful first TX. Engine-task callers use this instead of insert to
// avoid a window where r is in neither list.
func (t *Table) promotePending(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = removeRecord(t.pending, r)
	t.records = append(t.records, r)
}

// extractMatching removes and returns up to max records satisfying pred, in
// table order. max <= 0 means unbounded. Engine-task only.
func (t *Table) extractMatching(pred Predicate, max int) []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mergePending()

	var out []*Record
	kept := t.records[:0:0]
	for _, r := range t.records {
		if (max <= 0 || len(out) < max) && pred(r) {
			out = append(out, r)
			continue
		}
		kept = append(kept, r)
	}
	t.records = kept
	return out
}

// hasMatching reports whether any record satisfies pred, without removing
// anything.
func (t *Table) hasMatching(pred Predicate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mergePending()
	for _, r := range t.records {
		if pred(r) {
			return true
		}
	}
	return false
}

// extractFirst removes and returns the first record satisfying pred, or nil.
func (t *Table) extractFirst(pred Predicate) *Record {
	out := t.extractMatching(pred, 1)
	if len(out) == 0 {
		return nil
	}
	return out[0]
}

// reinsert puts r back into the main table after a non-terminal dispatch
// (the procedure continues waiting for its next event). Engine-task only.
func (t *Table) reinsert(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, r)
}

// snapshot returns every record currently tracked, merging pending first.
// It does not remove anything.
func (t *Table) snapshot() []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mergePending()
	out := make([]*Record, len(t.records))
	copy(out, t.records)
	return out
}

func removeRecord(list []*Record, r *Record) []*Record {
	for i, v := range list {
		if v == r {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
