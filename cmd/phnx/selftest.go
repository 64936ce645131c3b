package main

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"

	"github.com/notatuta/phnx/internal/pipeline"
	"github.com/notatuta/phnx/internal/shard"
)

// selfTestPlaintext is run through a full in-memory encode/decode round
// trip before any real file is touched, to catch a broken Golay table
// or cipher schedule at startup rather than mid-file.
var selfTestPlaintext = []byte("phnx self-test vector, 0123456789 ABCDEFGHIJKLMNOPQRSTUVWXYZ")

var errSelfTestMismatch = errors.New("decoded self-test plaintext did not match")

// runSelfTest exercises PhnxPipeline end to end, including the
// one-missing-shard recovery path, and reports a *pipeline.SelfTestError
// if anything does not round-trip.
func runSelfTest() error {
	key := pipeline.DeriveKey([]byte("phnx-selftest-key"))

	var bufs [shard.NumShards]*bytes.Buffer
	var outputs [shard.NumShards]io.Writer
	for i := range bufs {
		bufs[i] = &bytes.Buffer{}
		outputs[i] = bufs[i]
	}

	if err := pipeline.Encode(key, bytes.NewReader(selfTestPlaintext), outputs, rand.Reader); err != nil {
		return &pipeline.SelfTestError{Reason: err.Error()}
	}

	var sources [shard.NumShards]*pipeline.ShardSource
	for i, b := range bufs {
		if i == 1 {
			continue // exercise the one-missing-shard path
		}
		sources[i] = &pipeline.ShardSource{Data: bytes.NewReader(b.Bytes()), Size: int64(b.Len())}
	}

	var out bytes.Buffer
	if err := pipeline.Decode(key, sources, &out, nil); err != nil {
		return &pipeline.SelfTestError{Reason: err.Error()}
	}
	if !bytes.Equal(out.Bytes(), selfTestPlaintext) {
		return &pipeline.SelfTestError{Reason: errSelfTestMismatch.Error()}
	}
	return nil
}
