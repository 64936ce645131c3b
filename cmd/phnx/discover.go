package main

import (
	"fmt"
	"os"
	"strings"
)

// shardLetters are the eight shard suffixes, in shard-index order.
var shardLetters = [8]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H'}

const shardExt = ".phnx_"

// shardLetterIndex returns the shard index (0-7) for a letter 'A'..'H',
// or -1 if it isn't one.
func shardLetterIndex(letter byte) int {
	for i, l := range shardLetters {
		if l == letter {
			return i
		}
	}
	return -1
}

// isShardPath reports whether path names one of the eight shards, and
// if so returns the base name (with the trailing .phnx_X removed) and
// which shard index it is.
func isShardPath(path string) (base string, index int, ok bool) {
	idx := strings.LastIndex(path, shardExt)
	if idx < 0 || idx+len(shardExt) != len(path)-1 {
		return "", 0, false
	}
	letter := path[len(path)-1]
	si := shardLetterIndex(letter)
	if si < 0 {
		return "", 0, false
	}
	return path[:idx], si, true
}

// discoverShards stat-checks all eight sibling shard paths for base,
// returning their paths and which are present. It is a single os.Stat
// per candidate, not a directory walk.
func discoverShards(base string) (paths [8]string, present [8]bool, count int) {
	for i, letter := range shardLetters {
		p := fmt.Sprintf("%s%s%c", base, shardExt, letter)
		paths[i] = p
		if _, err := os.Stat(p); err == nil {
			present[i] = true
			count++
		}
	}
	return paths, present, count
}
