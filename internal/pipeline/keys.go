package pipeline

import "github.com/notatuta/phnx/internal/speck"

// DeriveKey turns a password of 1-32 bytes into the fixed 32-byte Speck
// key: shorter passwords are zero-padded on the right, longer ones
// truncated. There is deliberately no key stretching or salting.
func DeriveKey(password []byte) [speck.KeySize]byte {
	var key [speck.KeySize]byte
	copy(key[:], password)
	return key
}
