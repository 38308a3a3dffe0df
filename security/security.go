// Package security defines the pairing/encryption collaborator consumed by
// the engine's auto-pair replay path and Signed Write, and implements the
// AES-CMAC signing function Signed Write needs.
package security

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"

	"github.com/aead/cmac"
)

// OurSecurity is the local security state for a connection, as read from the
// security database. CSRKPresent is false when the bond has never completed
// pairing with signing keys distributed.
type OurSecurity struct {
	CSRK        [16]byte
	Counter     uint32
	CSRKPresent bool
	Encrypted   bool
}

// Manager is the interface the engine's auto-pair replay path and Signed
// Write initiator consume. Implementations own the security database and
// the SMP procedure that elevates a link's encryption/authentication.
type Manager interface {
	// SecurityInitiate requests pairing/encryption elevation for conn. The
	// result of the elevation (success or failure) is delivered out of band
	// through whatever connection-event mechanism the caller wires up; the
	// engine only needs to know the request was accepted.
	SecurityInitiate(conn uint16) error

	// StoreReadOurSec returns this side's signing key material for conn.
	StoreReadOurSec(conn uint16) (OurSecurity, error)

	// IncrementSignCounter persists the post-increment value of conn's local
	// sign counter, called once per Signed Write actually handed to the
	// transport so the counter never repeats across reconnects within a bond.
	IncrementSignCounter(conn uint16) error
}

func swapBuf(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// SignCounter computes the ATT signature (Core Spec Vol 3, Part H, 2.4.1)
// over an outgoing Signed Write Command's authenticated payload: the
// attribute opcode, handle, and value, followed by the 32-bit sign counter
// in little-endian. The result is the most-significant 8 octets of the
// AES-CMAC(CSRK, message), in the little-endian on-air byte order.
func SignCounter(csrk [16]byte, counter uint32, opcode uint8, handle uint16, value []byte) ([8]byte, error) {
	msg := make([]byte, 0, 3+len(value)+4)
	msg = append(msg, opcode)
	msg = append(msg, byte(handle), byte(handle>>8))
	msg = append(msg, value...)
	msg = append(msg, byte(counter), byte(counter>>8), byte(counter>>16), byte(counter>>24))

	mac, err := aesCMAC(csrk[:], msg)
	if err != nil {
		return [8]byte{}, fmt.Errorf("security: sign counter: %w", err)
	}

	var sig [8]byte
	copy(sig[:], mac[8:16])
	return sig, nil
}

func aesCMAC(key, msg []byte) ([]byte, error) {
	cipher, err := aes.NewCipher(swapBuf(key))
	if err != nil {
		return nil, err
	}

	mac, err := cmac.New(cipher)
	if err != nil {
		return nil, err
	}

	mac.Write(swapBuf(msg))
	return swapBuf(mac.Sum(nil)), nil
}

// EncodeCounter renders a sign counter in the little-endian wire form used
// by the SignedWriteCommand PDU.
func EncodeCounter(counter uint32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], counter)
	return b
}
