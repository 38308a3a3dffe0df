// Package gattc implements the GATT client procedure engine: it turns
// application requests (discover services, read a handle, write long, …)
// into ATT request/response sequences, tracks every in-flight procedure,
// and correlates incoming ATT PDUs back to the procedure that issued them.
package gattc

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/user/gattc/cache"
)

// Engine is the GATT client procedure engine. A single Engine serves every
// connection the caller has open; all mutation of tracked records happens
// on whichever goroutine calls Dispatch/Tick (the "engine task"), while
// the procedure-initiating methods (ExchangeMTU, Read, Write, Indicate and
// the rest) may be called from any goroutine.
type Engine struct {
	pool      *Pool
	table     *Table
	channels  *ChannelSelectors
	transport Transport
	connMgr   ConnectionManager
	cfg       *Config
	log       *logrus.Entry

	autoPair *autoPairState

	resumeMu      sync.Mutex
	resumePending bool
}

// NewEngine creates an engine bound to a transport and connection manager,
// applying any supplied options over the defaults.
func NewEngine(transport Transport, connMgr ConnectionManager, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{
		pool:      NewPool(cfg.poolCapacity),
		table:     NewTable(),
		channels:  NewChannelSelectors(cfg.numEATT),
		transport: transport,
		connMgr:   connMgr,
		cfg:       cfg,
		log:       cfg.logger,
	}
	if cfg.autoPairReplay {
		e.autoPair = newAutoPairState(e)
	}
	return e
}

// deadline computes the absolute transaction timeout from now.
func (e *Engine) deadline() time.Time {
	return time.Now().Add(e.cfg.transactionTimeout)
}

// beginProcedure acquires a record from the pool, places it on the pending
// list ahead of its first transmission, and returns it. Callers that cannot
// get a record must surface errOutOfMemory synchronously.
func (e *Engine) beginProcedure(conn uint16, op Op) (*Record, uint16, *Error) {
	if e.connMgr != nil && !e.connMgr.ConnFind(conn) {
		return nil, 0, errNotConnected()
	}

	r := e.pool.Acquire()
	if r == nil {
		return nil, 0, errOutOfMemory()
	}

	r.Conn = conn
	r.Op = op
	r.CID = e.channels.Pick(conn, op)
	e.table.addPending(r)
	return r, r.CID, nil
}

// commitStart finalizes the outcome of a procedure's first transmission.
// TxOK promotes the record into the main table with a fresh deadline.
// TxOutOfMemory promotes it too, but STALLED and without a deadline, then
// arms the resume clock — except for OpMTU, which has no resume handler
// (§4.4.1: MTU exchange has no retry on stall) and so fails outright instead
// of being queued for a resend that would never come. TxFatal fails with
// NotConnected. On either terminal outcome commitStart only drops r from
// pending; the caller invokes the user's callback with the returned error
// and then calls finish to return r to the pool.
func (e *Engine) commitStart(r *Record, result TxResult) *Error {
	switch result {
	case TxOK:
		r.Deadline = e.deadline()
		e.table.promotePending(r)
		return nil
	case TxOutOfMemory:
		if r.Op == OpMTU {
			e.table.removePending(r)
			return errOutOfMemory()
		}
		r.setStalled()
		e.table.promotePending(r)
		e.armResume()
		return nil
	default:
		e.table.removePending(r)
		return errNotConnected()
	}
}

// finish removes r's Channel Selector reservation and returns it to the
// pool. Called once a procedure reaches a terminal outcome and its record
// has already been extracted from the table.
func (e *Engine) finish(r *Record) {
	e.channels.Release(r.Conn, r.Op)
	e.pool.Release(r)
}

// advance commits the outcome of emitting a non-initial request: success
// refreshes the deadline and reinserts r; OOM marks STALLED, leaves
// whatever deadline the last successful TX already set untouched, and
// reinserts; fatal treats the link as gone. A stall never extends or clears
// the deadline: the procedure still times out on schedule if it stays
// stalled, matching ble_gattc_proc_set_resume_timer never touching
// exp_os_ticks.
func (e *Engine) advance(r *Record, result TxResult) (terminal bool, outcome *Error) {
	switch result {
	case TxOK:
		r.clearStalled()
		r.Deadline = e.deadline()
		e.table.reinsert(r)
		return false, nil
	case TxOutOfMemory:
		r.setStalled()
		e.table.reinsert(r)
		e.armResume()
		return false, nil
	default:
		return true, errNotConnected()
	}
}

// armResume flags that at least one record is STALLED, so the next Tick
// knows to run a resume sweep rather than skip straight past it.
func (e *Engine) armResume() {
	e.resumeMu.Lock()
	e.resumePending = true
	e.resumeMu.Unlock()
}

// cacheLookup returns the configured GATT cache, or nil if none was wired.
func (e *Engine) cacheLookup() cache.GATTCache {
	return e.cfg.cache
}

// ConnectionBroken fails every procedure tracked for conn with
// NotConnected, exactly once each, and drops the connection's Channel
// Selector state. This is the only implicit cancellation path; there is no
// user-visible cancel operation.
func (e *Engine) ConnectionBroken(conn uint16) {
	records := e.table.extractMatching(byConn(conn), 0)
	for _, r := range records {
		e.terminateWithError(r, errNotConnected())
	}
	e.channels.DropConnection(conn)
	if e.autoPair != nil {
		e.autoPair.dropConnection(conn)
	}
}

// terminateWithError invokes r's callback with err and returns r to the
// pool. r must already be detached from the table.
func (e *Engine) terminateWithError(r *Record, err *Error) {
	e.log.WithFields(recordFields(r)).WithError(err).Debug("procedure terminated")
	invokeTerminal(r, err)
	e.finish(r)
}

// wrapf mirrors the teacher-adjacent pack's pkg/errors usage for internal
// context; it never reaches application callbacks, which only ever see
// *Error.
func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
