// Package ctrstream turns the speck block cipher into a keystream
// generator indexed by (nonce, counter), following the counter-mode
// cursor idiom of a classic stream cipher wrapper: a keystream block is
// generated lazily and consumed one byte at a time until exhausted.
package ctrstream

import "github.com/notatuta/phnx/internal/speck"

// SentinelNonce is the nonce reserved for encrypting the 24-byte suffix.
// Body nonces are drawn uniformly at random and never equal this value in
// practice; the sentinel exists so suffix and body keystreams can never
// collide regardless of body length.
const SentinelNonce uint64 = ^uint64(0)

// SuffixCounters are the two keystream block counters that encrypt the
// 24-byte suffix (two blocks of 16 bytes, only the first 8 bytes of the
// second block used). Chosen at the top of the counter space, far from
// the body's ascending 0, 1, 2, ... sequence.
var SuffixCounters = [2]uint64{^uint64(0), ^uint64(0) - 1}

// SuffixSize is the length in bytes of the encoded suffix.
const SuffixSize = 24

// Block computes the 16-byte keystream block for (key, nonce, counter).
func Block(key [speck.KeySize]byte, nonce, counter uint64) [speck.BlockSize]byte {
	return blockWithSchedule(speck.ExpandKey(key), nonce, counter)
}

func blockWithSchedule(rk speck.RoundKeys, nonce, counter uint64) [speck.BlockSize]byte {
	hi, lo := speck.EncryptBlock(rk, nonce, counter)
	var out [speck.BlockSize]byte
	putUint64LE(out[0:8], hi)
	putUint64LE(out[8:16], lo)
	return out
}

// BodyCipher streams keystream for the plaintext/padded-body region.
// Block counters ascend 0, 1, 2, ... one per 16 bytes of body, matching
// the invariant that the body and suffix keystreams never overlap.
type BodyCipher struct {
	rk      speck.RoundKeys
	nonce   uint64
	counter uint64
	block   [speck.BlockSize]byte
	pos     int
}

// NewBodyCipher starts a keystream generator for the padded body under the
// given key and nonce, counter beginning at 0.
func NewBodyCipher(key [speck.KeySize]byte, nonce uint64) *BodyCipher {
	return &BodyCipher{rk: speck.ExpandKey(key), nonce: nonce, pos: speck.BlockSize}
}

func (c *BodyCipher) nextByte() byte {
	if c.pos == speck.BlockSize {
		c.block = blockWithSchedule(c.rk, c.nonce, c.counter)
		c.counter++
		c.pos = 0
	}
	b := c.block[c.pos]
	c.pos++
	return b
}

// XORKeyStream XORs src into dst, consuming one keystream byte per input
// byte and generating further keystream blocks as needed. dst and src may
// be the same slice. Safe to call repeatedly across bounded-size chunks;
// the counter carries over between calls.
func (c *BodyCipher) XORKeyStream(dst, src []byte) {
	for i, b := range src {
		dst[i] = b ^ c.nextByte()
	}
}

// EncryptSuffix and DecryptSuffix apply the sentinel-keyed keystream to the
// fixed-size suffix. XOR is self-inverse, so both directions are the same
// operation; the two names exist to document call-site intent.
func EncryptSuffix(key [speck.KeySize]byte, suffix [SuffixSize]byte) [SuffixSize]byte {
	return suffixXOR(key, suffix)
}

func DecryptSuffix(key [speck.KeySize]byte, suffix [SuffixSize]byte) [SuffixSize]byte {
	return suffixXOR(key, suffix)
}

func suffixXOR(key [speck.KeySize]byte, data [SuffixSize]byte) [SuffixSize]byte {
	rk := speck.ExpandKey(key)

	var ks [2 * speck.BlockSize]byte
	b0 := blockWithSchedule(rk, SentinelNonce, SuffixCounters[0])
	b1 := blockWithSchedule(rk, SentinelNonce, SuffixCounters[1])
	copy(ks[0:speck.BlockSize], b0[:])
	copy(ks[speck.BlockSize:], b1[:])

	var out [SuffixSize]byte
	for i := range out {
		out[i] = data[i] ^ ks[i]
	}
	return out
}

func putUint64LE(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
