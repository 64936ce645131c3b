package pipeline

import "github.com/notatuta/phnx/internal/ctrstream"

// suffix is the 24-byte trailer appended after the encrypted body: two
// copies of the plaintext's CRC32C (used for an early wrong-password
// check before the body is touched), the nonce, and the plaintext
// length.
type suffix struct {
	CRCA   uint32
	CRCB   uint32
	Nonce  uint64
	Length uint64
}

func (s suffix) encode() [ctrstream.SuffixSize]byte {
	var b [ctrstream.SuffixSize]byte
	putUint32LE(b[0:4], s.CRCA)
	putUint32LE(b[4:8], s.CRCB)
	putUint64LE(b[8:16], s.Nonce)
	putUint64LE(b[16:24], s.Length)
	return b
}

func decodeSuffix(b [ctrstream.SuffixSize]byte) suffix {
	return suffix{
		CRCA:   getUint32LE(b[0:4]),
		CRCB:   getUint32LE(b[4:8]),
		Nonce:  getUint64LE(b[8:16]),
		Length: getUint64LE(b[16:24]),
	}
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(8*i))
	}
}

func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << uint(8*i)
	}
	return v
}

// paddedBodyLength returns the smallest multiple of 12 that is >= n.
func paddedBodyLength(n uint64) uint64 {
	rem := n % 12
	if rem == 0 {
		return n
	}
	return n + (12 - rem)
}
