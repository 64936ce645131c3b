package shard

import (
	"bytes"
	"io"
	"testing"

	"github.com/notatuta/phnx/internal/golay"
)

func encodeGroup(t *testing.T, codewords [GroupSize]uint32) [NumShards][]byte {
	t.Helper()

	var bufs [NumShards]*bytes.Buffer
	var writers [NumShards]io.Writer
	for i := range bufs {
		bufs[i] = &bytes.Buffer{}
		writers[i] = bufs[i]
	}

	enc := NewEncoder(writers)
	for _, cw := range codewords {
		if err := enc.WriteCodeword(cw); err != nil {
			t.Fatalf("WriteCodeword: %v", err)
		}
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var out [NumShards][]byte
	for i, b := range bufs {
		out[i] = b.Bytes()
	}
	return out
}

func sampleGroup() [GroupSize]uint32 {
	return [GroupSize]uint32{
		golay.Encode(0x000),
		golay.Encode(0xFFF),
		golay.Encode(0x123),
		golay.Encode(0xABC),
		golay.Encode(0x555),
		golay.Encode(0xAAA),
		golay.Encode(0x0F0),
		golay.Encode(0x80F),
	}
}

func TestEncoderProducesThreeBytesPerShard(t *testing.T) {
	shards := encodeGroup(t, sampleGroup())
	for i, s := range shards {
		if len(s) != 3 {
			t.Fatalf("shard %d length = %d, want 3", i, len(s))
		}
	}
}

func TestRoundTripNoMissingShards(t *testing.T) {
	want := sampleGroup()
	shards := encodeGroup(t, want)

	var readers [NumShards]io.Reader
	var missing [NumShards]bool
	for i, s := range shards {
		readers[i] = bytes.NewReader(s)
	}

	dec := NewDecoder(readers, missing)
	got, erasureMask, err := dec.ReadGroup()
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if erasureMask != 0 {
		t.Fatalf("erasureMask = %#x, want 0", erasureMask)
	}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRoundTripOneMissingShard(t *testing.T) {
	want := sampleGroup()
	shards := encodeGroup(t, want)

	for missingShard := 0; missingShard < NumShards; missingShard++ {
		var readers [NumShards]io.Reader
		var missing [NumShards]bool
		missing[missingShard] = true
		for i, s := range shards {
			if i == missingShard {
				continue
			}
			readers[i] = bytes.NewReader(s)
		}

		dec := NewDecoder(readers, missing)
		codewords, erasureMask, err := dec.ReadGroup()
		if err != nil {
			t.Fatalf("missing shard %d: ReadGroup: %v", missingShard, err)
		}

		for lane := 0; lane < LanesPerShard; lane++ {
			bit := laneShift(missingShard) + uint(lane)
			if erasureMask&(1<<bit) == 0 {
				t.Fatalf("missing shard %d: erasureMask %#x missing bit %d", missingShard, erasureMask, bit)
			}
		}

		for w, cw := range codewords {
			// Bits outside the missing shard's lanes must still match.
			var knownMask uint32 = (1<<golay.CodeBits - 1) &^ (uint32(0x7) << laneShift(missingShard))
			if cw&knownMask != want[w]&knownMask {
				t.Fatalf("missing shard %d codeword %d: known bits mismatch: got %#x want %#x", missingShard, w, cw&knownMask, want[w]&knownMask)
			}
			// Recover via golay erasure decode and confirm the original
			// data survives.
			data, ok := golay.Decode(cw, erasureMask)
			if !ok {
				t.Fatalf("missing shard %d codeword %d: golay decode failed", missingShard, w)
			}
			wantData, _ := golay.Decode(want[w], 0)
			if data != wantData {
				t.Fatalf("missing shard %d codeword %d: recovered data %#x, want %#x", missingShard, w, data, wantData)
			}
		}
	}
}

func TestReadGroupEOFWhenExhausted(t *testing.T) {
	shards := encodeGroup(t, sampleGroup())

	var readers [NumShards]io.Reader
	var missing [NumShards]bool
	for i, s := range shards {
		readers[i] = bytes.NewReader(s)
	}

	dec := NewDecoder(readers, missing)
	if _, _, err := dec.ReadGroup(); err != nil {
		t.Fatalf("first ReadGroup: %v", err)
	}
	if _, _, err := dec.ReadGroup(); err != io.EOF {
		t.Fatalf("second ReadGroup error = %v, want io.EOF", err)
	}
}
