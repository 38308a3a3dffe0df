package gattc

import (
	"sync"

	"github.com/user/gattc/l2cap"
)

// reservation tracks which op currently owns an EATT CID on a connection,
// so release(conn, op) can find it again on procedure termination.
type reservation struct {
	cid uint16
	op  Op
}

// connChannels is one connection's Channel Selector state: its bearer list
// and the EATT reservations currently assigned to in-flight operations.
type connChannels struct {
	selector     *l2cap.ChannelSelector
	reservations []reservation
}

// ChannelSelectors owns one connChannels per connection, keyed by conn
// handle, and is the engine-facing Channel Selector collaborator described
// in §4.3: pick(conn, op) -> cid, release(conn, op).
type ChannelSelectors struct {
	mu       sync.Mutex
	numEATT  int
	conns    map[uint16]*connChannels
}

// NewChannelSelectors creates a registry that negotiates numEATT additional
// bearers for every new connection it sees. numEATT == 0 means EATT is
// disabled and every pick returns the fixed ATT channel.
func NewChannelSelectors(numEATT int) *ChannelSelectors {
	return &ChannelSelectors{numEATT: numEATT, conns: make(map[uint16]*connChannels)}
}

func (cs *ChannelSelectors) connEntry(conn uint16) *connChannels {
	c, ok := cs.conns[conn]
	if !ok {
		c = &connChannels{selector: l2cap.NewChannelSelector(cs.numEATT)}
		cs.conns[conn] = c
	}
	return c
}

// Pick chooses the CID a new procedure of kind op should use on conn. If an
// EATT bearer is free it is reserved for op; otherwise the fixed ATT
// channel is returned (never reserved, since it is shared).
func (cs *ChannelSelectors) Pick(conn uint16, op Op) uint16 {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	c := cs.connEntry(conn)
	cid := c.selector.Select(func(candidate uint16) bool {
		for _, r := range c.reservations {
			if r.cid == candidate {
				return true
			}
		}
		return false
	})
	if l2cap.IsEATTChannel(cid) {
		c.reservations = append(c.reservations, reservation{cid: cid, op: op})
	}
	return cid
}

// PickTransient chooses a CID for a fire-and-forget send (Write Without
// Response, Signed Write, Notify, Notify Multiple) that holds the bearer for
// a single PDU and has no record to release it later.
func (cs *ChannelSelectors) PickTransient(conn uint16) uint16 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.connEntry(conn).selector.Select(nil)
}

// Release returns an EATT reservation made for op on conn. A no-op for the
// fixed ATT channel or transient reservations that were never recorded.
func (cs *ChannelSelectors) Release(conn uint16, op Op) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	c, ok := cs.conns[conn]
	if !ok {
		return
	}
	for i, r := range c.reservations {
		if r.op == op {
			c.reservations = append(c.reservations[:i], c.reservations[i+1:]...)
			return
		}
	}
}

// DropConnection discards all Channel Selector state for conn, called from
// the disconnect sweep.
func (cs *ChannelSelectors) DropConnection(conn uint16) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.conns, conn)
}
