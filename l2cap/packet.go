package l2cap

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// L2CAP Channel IDs
const (
	ChannelNULL      uint16 = 0x0000 // Reserved/Null
	ChannelSignaling uint16 = 0x0001 // ACL-U signaling
	ChannelConnless  uint16 = 0x0002 // Connectionless
	ChannelAMP       uint16 = 0x0003 // AMP Manager
	ChannelATT       uint16 = 0x0004 // Attribute Protocol (the fixed, unencrypted-capable channel)
	ChannelLESignal  uint16 = 0x0005 // LE L2CAP Signaling
	ChannelSMP       uint16 = 0x0006 // Security Manager Protocol
	ChannelBR        uint16 = 0x0007 // BR/EDR Security Manager

	// EATTChannelMin and EATTChannelMax bound the dynamic CID range the LE
	// Credit Based Flow Control channel allocator draws from when a peer
	// negotiates Enhanced ATT bearers (Core Spec v5.3 Vol 3, Part A, 4.22).
	EATTChannelMin uint16 = 0x0040
	EATTChannelMax uint16 = 0x007F
)

// IsEATTChannel reports whether cid falls in the dynamic EATT range.
func IsEATTChannel(cid uint16) bool {
	return cid >= EATTChannelMin && cid <= EATTChannelMax
}

// ChannelSelector assigns and releases CIDs for outbound ATT traffic on a
// single connection. The fixed ATT channel is always available; additional
// EATT bearers are reserved up to the negotiated count and handed out
// round-robin so no bearer is starved by a single long-running procedure.
type ChannelSelector struct {
	mu          sync.Mutex
	eattCIDs    []uint16
	next        int
	eattEnabled bool
}

// NewChannelSelector creates a selector with numEATT additional bearers
// reserved starting at EATTChannelMin. numEATT may be 0 to use only the
// fixed ATT channel.
func NewChannelSelector(numEATT int) *ChannelSelector {
	cs := &ChannelSelector{eattEnabled: numEATT > 0}
	for i := 0; i < numEATT; i++ {
		cid := EATTChannelMin + uint16(i)
		if cid > EATTChannelMax {
			break
		}
		cs.eattCIDs = append(cs.eattCIDs, cid)
	}
	return cs
}

// Select returns a CID that the next outbound request should use and that
// is not already in busy, or the fixed ATT channel if every negotiated EATT
// bearer is occupied. EATT bearers are preferred when available; no kind of
// procedure is routed to the fixed ATT channel on its own account.
func (cs *ChannelSelector) Select(busy func(cid uint16) bool) uint16 {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for i := 0; i < len(cs.eattCIDs); i++ {
		cid := cs.eattCIDs[(cs.next+i)%len(cs.eattCIDs)]
		if busy == nil || !busy(cid) {
			cs.next += i + 1
			return cid
		}
	}

	return ChannelATT
}

// EATTEnabled reports whether any EATT bearers were negotiated for this
// connection.
func (cs *ChannelSelector) EATTEnabled() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.eattEnabled
}

// Bearers returns every CID this selector can hand out, fixed channel first.
func (cs *ChannelSelector) Bearers() []uint16 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]uint16, 0, 1+len(cs.eattCIDs))
	out = append(out, ChannelATT)
	out = append(out, cs.eattCIDs...)
	return out
}

// Default MTU sizes
const (
	DefaultMTU    = 23   // Default ATT MTU (23 bytes)
	MinMTU        = 23   // Minimum allowed MTU
	MaxMTU        = 517  // Maximum ATT MTU
	L2CAPHeaderLen = 4   // Length (2 bytes) + Channel ID (2 bytes)
)

// Packet represents an L2CAP packet
// Format: [Length: 2 bytes] [Channel ID: 2 bytes] [Payload: N bytes]
type Packet struct {
	Length    uint16 // Length of the payload (not including L2CAP header)
	ChannelID uint16 // L2CAP channel identifier
	Payload   []byte // The actual data (ATT/SMP/etc.)
}

// Encode serializes an L2CAP packet to binary format
func (p *Packet) Encode() []byte {
	buf := make([]byte, L2CAPHeaderLen+len(p.Payload))

	// Set length field (payload length only)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(p.Payload)))

	// Set channel ID
	binary.LittleEndian.PutUint16(buf[2:4], p.ChannelID)

	// Copy payload
	copy(buf[4:], p.Payload)

	return buf
}

// Decode parses binary data into an L2CAP packet
func Decode(data []byte) (*Packet, error) {
	if len(data) < L2CAPHeaderLen {
		return nil, fmt.Errorf("l2cap: packet too short (need at least %d bytes, got %d)", L2CAPHeaderLen, len(data))
	}

	length := binary.LittleEndian.Uint16(data[0:2])
	channelID := binary.LittleEndian.Uint16(data[2:4])

	// Validate that we have enough data for the claimed payload length
	if len(data) < L2CAPHeaderLen+int(length) {
		return nil, fmt.Errorf("l2cap: incomplete packet (claimed length %d, got %d)", length, len(data)-L2CAPHeaderLen)
	}

	payload := make([]byte, length)
	copy(payload, data[4:4+length])

	return &Packet{
		Length:    length,
		ChannelID: channelID,
		Payload:   payload,
	}, nil
}

// NewATTPacket creates an L2CAP packet for the ATT channel
func NewATTPacket(payload []byte) *Packet {
	return &Packet{
		Length:    uint16(len(payload)),
		ChannelID: ChannelATT,
		Payload:   payload,
	}
}

// NewSMPPacket creates an L2CAP packet for the SMP channel
func NewSMPPacket(payload []byte) *Packet {
	return &Packet{
		Length:    uint16(len(payload)),
		ChannelID: ChannelSMP,
		Payload:   payload,
	}
}

// Fragment splits a large payload into multiple L2CAP packets if needed
// Each fragment must fit within the MTU (including L2CAP header)
func Fragment(payload []byte, channelID uint16, mtu int) ([]*Packet, error) {
	if mtu < MinMTU {
		return nil, fmt.Errorf("l2cap: MTU too small (%d < %d)", mtu, MinMTU)
	}

	// Calculate max payload per packet (MTU - L2CAP header)
	maxPayloadPerPacket := mtu - L2CAPHeaderLen

	// If payload fits in one packet, return single packet
	if len(payload) <= maxPayloadPerPacket {
		return []*Packet{{
			Length:    uint16(len(payload)),
			ChannelID: channelID,
			Payload:   payload,
		}}, nil
	}

	// Split into multiple packets
	var packets []*Packet
	for offset := 0; offset < len(payload); offset += maxPayloadPerPacket {
		end := offset + maxPayloadPerPacket
		if end > len(payload) {
			end = len(payload)
		}

		fragment := make([]byte, end-offset)
		copy(fragment, payload[offset:end])

		packets = append(packets, &Packet{
			Length:    uint16(len(fragment)),
			ChannelID: channelID,
			Payload:   fragment,
		})
	}

	return packets, nil
}

// Reassemble combines multiple L2CAP packet payloads into one
func Reassemble(packets []*Packet) ([]byte, error) {
	if len(packets) == 0 {
		return nil, fmt.Errorf("l2cap: no packets to reassemble")
	}

	// Verify all packets use the same channel
	channelID := packets[0].ChannelID
	totalLen := 0
	for i, pkt := range packets {
		if pkt.ChannelID != channelID {
			return nil, fmt.Errorf("l2cap: channel ID mismatch at packet %d (expected %d, got %d)", i, channelID, pkt.ChannelID)
		}
		totalLen += len(pkt.Payload)
	}

	// Concatenate all payloads
	result := make([]byte, 0, totalLen)
	for _, pkt := range packets {
		result = append(result, pkt.Payload...)
	}

	return result, nil
}
