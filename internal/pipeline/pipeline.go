// Package pipeline implements PhnxPipeline, the orchestration of
// chunked read, padding, CTR encryption, suffix construction, Golay
// encoding, and shard interleaving (and its inverse on decode), plus the
// legacy single-file container format handled by
// LegacyCryptolockerPipeline (see legacy.go).
package pipeline

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/notatuta/phnx/internal/crc32c"
	"github.com/notatuta/phnx/internal/ctrstream"
	"github.com/notatuta/phnx/internal/golay"
	"github.com/notatuta/phnx/internal/shard"
	"github.com/notatuta/phnx/internal/speck"
)

// chunkSize is the size of one read from the plaintext, chosen as a
// multiple of 12 (a whole number of Golay input groups) to keep memory
// use bounded regardless of file size.
const chunkSize = 12 * 1024

// State names a step of the decode state machine described by the
// pipeline design: Init -> CollectShards -> DecodeSuffix ->
// ValidatePassword -> DecodeBody -> Verify -> Done, with a Fail
// transition possible from every state.
type State string

const (
	StateInit             State = "init"
	StateCollectShards    State = "collect_shards"
	StateDecodeSuffix     State = "decode_suffix"
	StateValidatePassword State = "validate_password"
	StateDecodeBody       State = "decode_body"
	StateVerify           State = "verify"
	StateDone             State = "done"
	StateFail             State = "fail"
)

func transition(logger *slog.Logger, s State) {
	if logger != nil {
		logger.Debug("pipeline state", "state", string(s))
	}
}

// Encode reads plaintext from r, encrypts and Golay-encodes it, and
// writes the interleaved result to the 8 shard outputs. randSource
// supplies the one random read used to generate the nonce.
func Encode(key [speck.KeySize]byte, r io.Reader, outputs [shard.NumShards]io.Writer, randSource io.Reader) error {
	var nonceBytes [8]byte
	if _, err := io.ReadFull(randSource, nonceBytes[:]); err != nil {
		return NewIOError("read", "random source", err)
	}
	nonce := getUint64LE(nonceBytes[:])

	checksum := crc32c.New()
	body := ctrstream.NewBodyCipher(key, nonce)
	enc := shard.NewEncoder(outputs)

	readBuf := make([]byte, chunkSize)
	var pending []byte
	var total uint64

	flushComplete := func(data []byte) error {
		n := len(data) - len(data)%12
		complete := data[:n]
		if len(complete) > 0 {
			cipherText := make([]byte, len(complete))
			body.XORKeyStream(cipherText, complete)
			if err := encodeGroups(enc, cipherText); err != nil {
				return err
			}
		}
		pending = append(pending[:0], data[n:]...)
		return nil
	}

	for {
		n, err := r.Read(readBuf)
		if n > 0 {
			checksum.Write(readBuf[:n])
			total += uint64(n)
			combined := append(append([]byte{}, pending...), readBuf[:n]...)
			if ferr := flushComplete(combined); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return NewIOError("read", "plaintext", err)
		}
	}

	if len(pending) > 0 {
		padded := make([]byte, 12)
		copy(padded, pending)
		cipherText := make([]byte, 12)
		body.XORKeyStream(cipherText, padded)
		if err := encodeGroups(enc, cipherText); err != nil {
			return err
		}
	}

	crc := checksum.Sum32()
	s := suffix{CRCA: crc, CRCB: crc, Nonce: nonce, Length: total}
	plainSuffix := s.encode()
	cipherSuffix := ctrstream.EncryptSuffix(key, plainSuffix)
	if err := encodeGroups(enc, cipherSuffix[:]); err != nil {
		return err
	}

	if err := enc.Flush(); err != nil {
		return NewIOError("write", "shard", err)
	}
	return nil
}

// ShardSource is one input shard available to Decode. A missing shard is
// represented by a nil *ShardSource in the Decode sources array. Data
// must support Seek because the suffix — at the end of the interleaved
// stream — is read and password-checked before the body is read. The
// body is not streamed: once the password check passes, Decode holds the
// whole decoded body in memory before verifying and writing it.
type ShardSource struct {
	Data io.ReadSeeker
	Size int64
}

// suffixBytesPerShard is how many trailing bytes of each shard encode
// the 24-byte suffix: 24 bytes = 16 Golay groups = 2 groups of
// shard.GroupSize codewords = 2*3 = 6 bytes per shard.
const suffixBytesPerShard = 2 * 3

// Decode reassembles and decrypts a phnx file from the given shard
// sources (at least 7 of 8 must be non-nil), writing the recovered
// plaintext to w. logger may be nil.
func Decode(key [speck.KeySize]byte, sources [shard.NumShards]*ShardSource, w io.Writer, logger *slog.Logger) error {
	transition(logger, StateInit)
	transition(logger, StateCollectShards)

	var missing [shard.NumShards]bool
	present := 0
	var shardLen int64 = -1
	for i, src := range sources {
		if src == nil {
			missing[i] = true
			continue
		}
		present++
		if shardLen == -1 {
			shardLen = src.Size
		} else if src.Size != shardLen {
			transition(logger, StateFail)
			return &FileFormatError{Reason: fmt.Sprintf("shard %d has length %d, expected %d", i, src.Size, shardLen)}
		}
	}
	if present < 7 {
		transition(logger, StateFail)
		return &FileFormatError{Reason: fmt.Sprintf("only %d of 8 shards available, need at least 7", present)}
	}
	if shardLen < suffixBytesPerShard {
		transition(logger, StateFail)
		return &FileFormatError{Reason: "shard too short to contain a suffix"}
	}

	transition(logger, StateDecodeSuffix)
	var inputs [shard.NumShards]io.Reader
	for i, src := range sources {
		if src == nil {
			continue
		}
		if _, err := src.Data.Seek(shardLen-suffixBytesPerShard, io.SeekStart); err != nil {
			transition(logger, StateFail)
			return NewIOError("seek", "shard", err)
		}
		inputs[i] = src.Data
	}

	suffixBytes, err := readGroupsAsBytes(inputs, missing, 2)
	if err != nil {
		transition(logger, StateFail)
		return toFileFormatOrIO(err, "reading suffix")
	}
	if len(suffixBytes) != ctrstream.SuffixSize {
		transition(logger, StateFail)
		return &UncorrectableError{Reason: "suffix decode produced wrong length"}
	}
	var cipherSuffix [ctrstream.SuffixSize]byte
	copy(cipherSuffix[:], suffixBytes)
	plainSuffix := ctrstream.DecryptSuffix(key, cipherSuffix)
	s := decodeSuffix(plainSuffix)

	transition(logger, StateValidatePassword)
	if s.CRCA != s.CRCB {
		transition(logger, StateFail)
		return &PasswordMismatchError{}
	}

	transition(logger, StateDecodeBody)
	paddedLen := paddedBodyLength(s.Length)
	for i, src := range sources {
		if src == nil {
			continue
		}
		if _, err := src.Data.Seek(0, io.SeekStart); err != nil {
			transition(logger, StateFail)
			return NewIOError("seek", "shard", err)
		}
		inputs[i] = src.Data
	}

	bodyCipherBytes, err := readGroupsAsBytes(inputs, missing, int(paddedLen/12))
	if err != nil {
		transition(logger, StateFail)
		return toFileFormatOrIO(err, "reading body")
	}
	if uint64(len(bodyCipherBytes)) != paddedLen {
		transition(logger, StateFail)
		return &UncorrectableError{Reason: "body decode produced wrong length"}
	}

	plain := make([]byte, paddedLen)
	body := ctrstream.NewBodyCipher(key, s.Nonce)
	body.XORKeyStream(plain, bodyCipherBytes)
	plain = plain[:s.Length]

	transition(logger, StateVerify)
	if crc32c.Checksum(plain) != s.CRCA {
		transition(logger, StateFail)
		return &UncorrectableError{Reason: "CRC32C mismatch after decryption"}
	}

	if _, err := w.Write(plain); err != nil {
		transition(logger, StateFail)
		return NewIOError("write", "output", err)
	}

	transition(logger, StateDone)
	return nil
}

// readGroupsAsBytes reads `groups` 8-codeword groups from the shard
// decoder and returns the recovered bytes, still CTR-encrypted, 12 per
// group. Any uncorrectable codeword aborts with an
// UncorrectableError.
func readGroupsAsBytes(inputs [shard.NumShards]io.Reader, missing [shard.NumShards]bool, groups int) ([]byte, error) {
	dec := shard.NewDecoder(inputs, missing)
	out := make([]byte, 0, groups*12)

	for g := 0; g < groups; g++ {
		codewords, erasureMask, err := dec.ReadGroup()
		if err != nil {
			return nil, err
		}

		var dataGroups [shard.GroupSize]uint16
		for i, cw := range codewords {
			d, ok := golay.Decode(cw, erasureMask)
			if !ok {
				return nil, &UncorrectableError{Reason: fmt.Sprintf("golay decode failed at codeword %d of group %d", i, g)}
			}
			dataGroups[i] = d
		}

		for i := 0; i < shard.GroupSize; i += 2 {
			b0, b1, b2 := bytesFromGroups(dataGroups[i], dataGroups[i+1])
			out = append(out, b0, b1, b2)
		}
	}

	return out, nil
}

func toFileFormatOrIO(err error, context string) error {
	if IsUncorrectable(err) || IsFileFormat(err) {
		return err
	}
	return &FileFormatError{Reason: fmt.Sprintf("%s: %s", context, err)}
}

func encodeGroups(enc *shard.Encoder, data []byte) error {
	for i := 0; i+3 <= len(data); i += 3 {
		g1, g2 := groupsFromBytes(data[i], data[i+1], data[i+2])
		if err := enc.WriteCodeword(golay.Encode(g1)); err != nil {
			return NewIOError("write", "shard", err)
		}
		if err := enc.WriteCodeword(golay.Encode(g2)); err != nil {
			return NewIOError("write", "shard", err)
		}
	}
	return nil
}

func groupsFromBytes(b0, b1, b2 byte) (uint16, uint16) {
	g1 := uint16(b0)<<4 | uint16(b1)>>4
	g2 := uint16(b1&0x0F)<<8 | uint16(b2)
	return g1, g2
}

func bytesFromGroups(g1, g2 uint16) (byte, byte, byte) {
	b0 := byte(g1 >> 4)
	b1 := byte((g1&0xF)<<4) | byte(g2>>8)
	b2 := byte(g2 & 0xFF)
	return b0, b1, b2
}
