package pipeline

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/notatuta/phnx/internal/shard"
	"github.com/notatuta/phnx/internal/speck"
)

func testKey(t *testing.T) [speck.KeySize]byte {
	t.Helper()
	var k [speck.KeySize]byte
	for i := range k {
		k[i] = byte(i*7 + 3)
	}
	return k
}

func encodeToShards(t *testing.T, key [speck.KeySize]byte, plaintext []byte) [shard.NumShards][]byte {
	t.Helper()

	var bufs [shard.NumShards]*bytes.Buffer
	var outputs [shard.NumShards]io.Writer
	for i := range bufs {
		bufs[i] = &bytes.Buffer{}
		outputs[i] = bufs[i]
	}

	if err := Encode(key, bytes.NewReader(plaintext), outputs, rand.Reader); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out [shard.NumShards][]byte
	for i, b := range bufs {
		out[i] = b.Bytes()
	}
	return out
}

func sourcesFromShards(shards [shard.NumShards][]byte, missing [shard.NumShards]bool) [shard.NumShards]*ShardSource {
	var sources [shard.NumShards]*ShardSource
	for i, s := range shards {
		if missing[i] {
			continue
		}
		sources[i] = &ShardSource{Data: bytes.NewReader(s), Size: int64(len(s))}
	}
	return sources
}

func TestEncodeDecodeRoundTripVariousLengths(t *testing.T) {
	key := testKey(t)
	lengths := []int{0, 1, 11, 12, 13, 23, 24, 100, 1000, 12*1024 + 5, 50000}

	for _, n := range lengths {
		plaintext := make([]byte, n)
		for i := range plaintext {
			plaintext[i] = byte(i * 31)
		}

		shards := encodeToShards(t, key, plaintext)
		sources := sourcesFromShards(shards, [shard.NumShards]bool{})

		var out bytes.Buffer
		if err := Decode(key, sources, &out, nil); err != nil {
			t.Fatalf("length %d: Decode: %v", n, err)
		}
		if !bytes.Equal(out.Bytes(), plaintext) {
			t.Fatalf("length %d: round trip mismatch", n)
		}
	}
}

func TestDecodeRecoversWithOneMissingShard(t *testing.T) {
	key := testKey(t)
	plaintext := bytes.Repeat([]byte("recoverable file contents "), 500)
	shards := encodeToShards(t, key, plaintext)

	for missingShard := 0; missingShard < shard.NumShards; missingShard++ {
		var missing [shard.NumShards]bool
		missing[missingShard] = true
		sources := sourcesFromShards(shards, missing)

		var out bytes.Buffer
		if err := Decode(key, sources, &out, nil); err != nil {
			t.Fatalf("missing shard %d: Decode: %v", missingShard, err)
		}
		if !bytes.Equal(out.Bytes(), plaintext) {
			t.Fatalf("missing shard %d: round trip mismatch", missingShard)
		}
	}
}

func TestDecodeFailsWithTwoMissingShards(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("short payload")
	shards := encodeToShards(t, key, plaintext)

	var missing [shard.NumShards]bool
	missing[0] = true
	missing[1] = true
	sources := sourcesFromShards(shards, missing)

	var out bytes.Buffer
	err := Decode(key, sources, &out, nil)
	if !IsFileFormat(err) {
		t.Fatalf("Decode with 2 missing shards: err = %v, want FileFormatError", err)
	}
}

func TestDecodeWrongKeyIsPasswordMismatch(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("some data protected by a password")
	shards := encodeToShards(t, key, plaintext)

	wrongKey := key
	wrongKey[0] ^= 0xFF

	sources := sourcesFromShards(shards, [shard.NumShards]bool{})
	var out bytes.Buffer
	err := Decode(wrongKey, sources, &out, nil)
	if !IsPasswordMismatch(err) {
		t.Fatalf("Decode with wrong key: err = %v, want PasswordMismatchError", err)
	}
}

func TestDecodeFlippedBitIsCorrected(t *testing.T) {
	key := testKey(t)
	plaintext := bytes.Repeat([]byte{0xAA, 0x55, 0x0F, 0xF0}, 200)
	shards := encodeToShards(t, key, plaintext)

	shards[3] = append([]byte{}, shards[3]...)
	shards[3][0] ^= 0x01

	sources := sourcesFromShards(shards, [shard.NumShards]bool{})
	var out bytes.Buffer
	if err := Decode(key, sources, &out, nil); err != nil {
		t.Fatalf("Decode with single flipped bit: %v", err)
	}
	if !bytes.Equal(out.Bytes(), plaintext) {
		t.Fatalf("single flipped bit: round trip mismatch")
	}
}

func TestEncodeNonceChangesEachCall(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("identical plaintext")

	s1 := encodeToShards(t, key, plaintext)
	s2 := encodeToShards(t, key, plaintext)

	same := true
	for i := range s1 {
		if !bytes.Equal(s1[i], s2[i]) {
			same = false
		}
	}
	if same {
		t.Fatalf("two encodes of identical plaintext produced identical shards; nonce not varying")
	}
}
