package gattc

import (
	"sync"

	"github.com/user/gattc/att"
)

// parkedProcedure is a write-family record pulled off the table after a
// security-elevation ATT error, waiting for SecurityInitiate's out-of-band
// result. code and handle are kept so the original error can still be
// reported if elevation fails.
type parkedProcedure struct {
	r      *Record
	code   uint8
	handle uint16
}

// autoPairState implements auto-pair replay: a write-family procedure whose
// first ATT error reports an authentication or encryption deficiency is
// parked instead of failed, a SecurityInitiate requested on its behalf, and
// either replayed verbatim or failed with its original error once the
// caller reports the elevation's outcome through SecurityElevated.
type autoPairState struct {
	e *Engine

	mu     sync.Mutex
	parked map[uint16][]*parkedProcedure // conn -> FIFO of parked records
}

func newAutoPairState(e *Engine) *autoPairState {
	return &autoPairState{parked: make(map[uint16][]*parkedProcedure), e: e}
}

// needsElevation reports whether code is the kind of ATT error a security
// elevation can resolve.
func needsElevation(code uint8) bool {
	switch code {
	case att.ErrInsufficientAuthentication, att.ErrInsufficientEncryption, att.ErrInsufficientEncryptionKeySize:
		return true
	default:
		return false
	}
}

// tryPark parks r if code warrants a security elevation and the security
// manager accepts the SecurityInitiate request, returning true if so. r is
// already detached from the table; the caller must not touch it again.
func (a *autoPairState) tryPark(r *Record, code uint8, handle uint16) bool {
	if !needsElevation(code) {
		return false
	}
	sec := a.e.cfg.security
	if sec == nil {
		return false
	}
	if err := sec.SecurityInitiate(r.Conn); err != nil {
		return false
	}

	a.mu.Lock()
	a.parked[r.Conn] = append(a.parked[r.Conn], &parkedProcedure{r: r, code: code, handle: handle})
	a.mu.Unlock()
	return true
}

// SecurityElevated is the engine's half of the out-of-band contract
// Manager.SecurityInitiate documents: the caller invokes it once it learns
// the outcome of a pairing/encryption elevation for conn. success replays
// every parked procedure on conn, in the order they parked; failure fails
// them all with their original ATT error.
func (e *Engine) SecurityElevated(conn uint16, success bool) {
	if e.autoPair == nil {
		return
	}
	e.autoPair.resolve(conn, success)
}

func (a *autoPairState) resolve(conn uint16, success bool) {
	a.mu.Lock()
	batch := a.parked[conn]
	delete(a.parked, conn)
	a.mu.Unlock()

	for _, p := range batch {
		if !success {
			a.e.terminateWithError(p.r, errAtt(p.code, p.handle))
			continue
		}
		result := a.e.resend(p.r)
		if terminal, outcome := a.e.advance(p.r, result); terminal {
			a.e.terminateWithError(p.r, outcome)
		}
	}
}

// dropConnection fails every procedure parked for conn with NotConnected,
// called once the link is actually known to be gone.
func (a *autoPairState) dropConnection(conn uint16) {
	a.mu.Lock()
	batch := a.parked[conn]
	delete(a.parked, conn)
	a.mu.Unlock()

	for _, p := range batch {
		a.e.terminateWithError(p.r, errNotConnected())
	}
}
