package gatt

import (
	"fmt"

	"github.com/google/uuid"
)

// UUID is an attribute type/value identifier as carried on the wire: either
// the 2-byte Bluetooth SIG short form or the 16-byte vendor form, always in
// little-endian byte order (least significant byte first).
type UUID struct {
	b []byte
}

// NewUUID16 wraps a 16-bit Bluetooth SIG UUID.
func NewUUID16(val uint16) UUID {
	return UUID{b: UUID16(val)}
}

// NewUUID128 wraps a 128-bit UUID derived from a 16-bit short form.
func NewUUID128(shortUUID uint16) UUID {
	return UUID{b: UUID128(shortUUID)}
}

// UUIDFromBytes wraps a raw wire UUID. It must be 2 or 16 bytes.
func UUIDFromBytes(b []byte) (UUID, error) {
	if len(b) != 2 && len(b) != 16 {
		return UUID{}, fmt.Errorf("gatt: invalid UUID length %d", len(b))
	}
	return UUID{b: append([]byte{}, b...)}, nil
}

// ParseUUID parses a canonical hyphenated UUID string (e.g.
// "0000180d-0000-1000-8000-00805f9b34fb") into its little-endian wire form,
// reversing the byte order google/uuid produces.
func ParseUUID(s string) (UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("gatt: %w", err)
	}
	wire := make([]byte, 16)
	for i := 0; i < 16; i++ {
		wire[i] = parsed[15-i]
	}
	return UUID{b: wire}, nil
}

// Bytes returns the raw wire-order bytes. The caller must not mutate them.
func (u UUID) Bytes() []byte {
	return u.b
}

// Is16 reports whether this is a 2-byte short-form UUID.
func (u UUID) Is16() bool {
	return len(u.b) == 2
}

// Equal reports whether two UUIDs identify the same attribute type,
// normalizing a short form against its equivalent 128-bit expansion.
func (u UUID) Equal(other UUID) bool {
	if len(u.b) == len(other.b) {
		return bytesEqual(u.b, other.b)
	}
	return bytesEqual(u.expand(), other.expand())
}

func (u UUID) expand() []byte {
	if len(u.b) == 16 {
		return u.b
	}
	return UUID128(uint16(u.b[0]) | uint16(u.b[1])<<8)
}

// String renders the UUID in canonical hyphenated form for logging,
// reversing wire byte order back to the big-endian form google/uuid expects.
func (u UUID) String() string {
	expanded := u.expand()
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = expanded[15-i]
	}
	id, err := uuid.FromBytes(be)
	if err != nil {
		return fmt.Sprintf("%x", u.b)
	}
	return id.String()
}
