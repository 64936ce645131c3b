package pipeline

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/notatuta/phnx/internal/ctrstream"
	"github.com/notatuta/phnx/internal/speck"
)

// legacyMagic identifies a phnx-written legacy container trailer (ASCII
// "PHLC": phnx legacy container).
const legacyMagic = uint32(0x50484C43)

// legacyVersion is the only trailer version this package writes or
// accepts.
const legacyVersion = uint8(1)

// legacyTrailer is the fixed-size footer appended after the ciphertext
// in a .encrypted container, carrying everything needed to decrypt it:
// the nonce and the plaintext length. Modeled on the teacher's
// FileHeader (magic/version/nonce fields, WriteTo/ReadFrom), placed as
// a trailer rather than a header because the container's trailing
// bytes are where the legacy tool keeps this metadata.
type legacyTrailer struct {
	Magic   uint32
	Version uint8
	Nonce   uint64
	Length  uint64
}

// legacyTrailerSize is the encoded size of legacyTrailer: 4 (magic) + 1
// (version) + 8 (nonce) + 8 (length) + 3 bytes reserved/zero to keep the
// layout byte-aligned.
const legacyTrailerSize = 4 + 1 + 3 + 8 + 8

func (t legacyTrailer) encode() [legacyTrailerSize]byte {
	var b [legacyTrailerSize]byte
	binary.LittleEndian.PutUint32(b[0:4], t.Magic)
	b[4] = t.Version
	binary.LittleEndian.PutUint64(b[8:16], t.Nonce)
	binary.LittleEndian.PutUint64(b[16:24], t.Length)
	return b
}

func decodeLegacyTrailer(b [legacyTrailerSize]byte) (legacyTrailer, error) {
	t := legacyTrailer{
		Magic:   binary.LittleEndian.Uint32(b[0:4]),
		Version: b[4],
		Nonce:   binary.LittleEndian.Uint64(b[8:16]),
		Length:  binary.LittleEndian.Uint64(b[16:24]),
	}
	if t.Magic != legacyMagic {
		return legacyTrailer{}, fmt.Errorf("bad legacy trailer magic %#x", t.Magic)
	}
	if t.Version != legacyVersion {
		return legacyTrailer{}, fmt.Errorf("unsupported legacy trailer version %d", t.Version)
	}
	return t, nil
}

// LegacyEncode writes the older single-file cryptolocker container: CTR
// ciphertext immediately followed by legacyTrailer. Unlike PhnxPipeline
// there is no CRC, no padding, and no error correction — the container
// is opaque outside of what is needed to recover the plaintext bytes.
func LegacyEncode(key [speck.KeySize]byte, r io.Reader, w io.Writer, randSource io.Reader) error {
	var nonceBytes [8]byte
	if _, err := io.ReadFull(randSource, nonceBytes[:]); err != nil {
		return NewIOError("read", "random source", err)
	}
	nonce := binary.LittleEndian.Uint64(nonceBytes[:])

	body := ctrstream.NewBodyCipher(key, nonce)
	buf := make([]byte, chunkSize)
	var total uint64

	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += uint64(n)
			cipherText := make([]byte, n)
			body.XORKeyStream(cipherText, buf[:n])
			if _, werr := w.Write(cipherText); werr != nil {
				return NewIOError("write", "legacy container", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return NewIOError("read", "plaintext", err)
		}
	}

	trailer := legacyTrailer{Magic: legacyMagic, Version: legacyVersion, Nonce: nonce, Length: total}.encode()
	if _, err := w.Write(trailer[:]); err != nil {
		return NewIOError("write", "legacy container", err)
	}
	return nil
}

// LegacyDecode reads a .encrypted container of known total size
// (callers determine this via stat, since the trailer sits at the very
// end) and writes the recovered plaintext to w.
func LegacyDecode(key [speck.KeySize]byte, r io.ReadSeeker, size int64, w io.Writer) error {
	if size < legacyTrailerSize {
		return &FileFormatError{Reason: "legacy container too short to contain a trailer"}
	}

	if _, err := r.Seek(size-legacyTrailerSize, io.SeekStart); err != nil {
		return NewIOError("seek", "legacy container", err)
	}
	var raw [legacyTrailerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return NewIOError("read", "legacy container", err)
	}
	trailer, err := decodeLegacyTrailer(raw)
	if err != nil {
		return &FileFormatError{Reason: err.Error()}
	}

	if int64(trailer.Length) > size-legacyTrailerSize {
		return &FileFormatError{Reason: "legacy container trailer length exceeds ciphertext"}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return NewIOError("seek", "legacy container", err)
	}

	body := ctrstream.NewBodyCipher(key, trailer.Nonce)
	remaining := trailer.Length
	buf := make([]byte, chunkSize)
	for remaining > 0 {
		want := uint64(len(buf))
		if remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return NewIOError("read", "legacy container", err)
		}
		plain := make([]byte, n)
		body.XORKeyStream(plain, buf[:n])
		if _, werr := w.Write(plain); werr != nil {
			return NewIOError("write", "output", werr)
		}
		remaining -= uint64(n)
	}
	return nil
}
