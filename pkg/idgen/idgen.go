package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// transactionIDBytes is the amount of entropy drawn per identifier (256 bits)
const transactionIDBytes = 32

// Generator produces opaque transaction identifiers
type Generator interface {
	NewTransactionID() string
}

// Func adapts a plain function to the Generator interface
type Func func() string

// NewTransactionID calls f
func (f Func) NewTransactionID() string {
	return f()
}

// Random is the production generator backed by crypto/rand
type Random struct{}

// NewTransactionID returns "0x" followed by 64 lowercase hex characters
func (Random) NewTransactionID() string {
	return NewTransactionID()
}

// NewTransactionID returns a fresh identifier. It panics only if the
// operating system entropy source is unavailable.
func NewTransactionID() string {
	buf := make([]byte, transactionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("idgen: entropy source unavailable: " + err.Error())
	}
	return "0x" + hex.EncodeToString(buf)
}
