package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notatuta/phnx/internal/applog"
	"github.com/notatuta/phnx/internal/pipeline"
	"github.com/notatuta/phnx/internal/shard"
)

// lastExitCode carries the outcome of the one operation a phnx
// invocation performs out of cobra's RunE, which only returns a usage
// error/nil pair.
var lastExitCode = exitOK

func newRootCmd() *cobra.Command {
	var legacyEncode bool
	var debug bool

	cmd := &cobra.Command{
		Use:           "phnx <file>",
		Short:         "Split a file into 8 encrypted, error-corrected shards (or reverse it)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				applog.Level.Set(slog.LevelDebug)
			}
			lastExitCode = dispatch(args[0], legacyEncode)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose structured logging")
	cmd.Flags().BoolVarP(&legacyEncode, "cryptolocker", "c", false, "write the legacy single-file .encrypted container instead of shards")

	return cmd
}

func slogFail(mode string, err error) {
	applog.Operation(mode).Error("operation failed", "error", err)
}

// dispatch picks one of the four invocation shapes described by the CLI
// surface and runs it, returning the resulting process exit code.
func dispatch(path string, legacyEncode bool) int {
	if legacyEncode {
		return runLegacyEncode(path)
	}
	if base, _, ok := isShardPath(path); ok {
		return runDecode(base)
	}
	if isLegacyPath(path) {
		return runLegacyDecode(path)
	}
	return runEncode(path)
}

func runEncode(path string) int {
	logger := applog.Operation("encode")

	password, err := resolvePassword()
	if err != nil {
		logger.Error("resolving password", "error", err)
		return exitIO
	}
	key := pipeline.DeriveKey(password)

	in, err := os.Open(path)
	if err != nil {
		logger.Error("opening input", "error", err)
		return exitIO
	}
	defer in.Close()

	var outputs [shard.NumShards]io.Writer
	var files [shard.NumShards]*os.File
	paths, _, _ := discoverShards(path)
	for i, p := range paths {
		f, err := os.Create(p)
		if err != nil {
			logger.Error("creating shard", "path", p, "error", err)
			closeAll(files[:i])
			return exitIO
		}
		files[i] = f
		outputs[i] = f
	}
	defer closeAll(files[:])

	err = pipeline.Encode(key, in, outputs, rand.Reader)
	logger.Info("encode finished", "path", path, "error", err)
	return exitCode(err)
}

func runDecode(base string) int {
	logger := applog.Operation("decode")

	paths, present, count := discoverShards(base)
	if count < 7 {
		logger.Error("not enough shards present", "present", count, "base", base)
		return exitCode(&pipeline.FileFormatError{Path: base, Reason: fmt.Sprintf("only %d of 8 shards found", count)})
	}

	password, err := resolvePassword()
	if err != nil {
		logger.Error("resolving password", "error", err)
		return exitIO
	}
	key := pipeline.DeriveKey(password)

	var sources [shard.NumShards]*pipeline.ShardSource
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for i, p := range paths {
		if !present[i] {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			logger.Error("opening shard", "path", p, "error", err)
			return exitIO
		}
		files = append(files, f)
		info, err := f.Stat()
		if err != nil {
			logger.Error("stat shard", "path", p, "error", err)
			return exitIO
		}
		sources[i] = &pipeline.ShardSource{Data: f, Size: info.Size()}
	}

	err = writeOnSuccess(base, func(out *os.File) error {
		return pipeline.Decode(key, sources, out, logger)
	})
	logger.Info("decode finished", "path", base, "error", err)
	return exitCode(err)
}

// writeOnSuccess runs fn against a temporary file in the same directory
// as finalPath, renaming it into place only if fn returns nil. On
// failure the temporary file is removed so a rejected decode (wrong
// password, uncorrectable shards, bad format) never leaves a stray
// empty or partial file at finalPath.
func writeOnSuccess(finalPath string, fn func(out *os.File) error) error {
	dir := filepath.Dir(finalPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(finalPath)+".phnx-tmp-*")
	if err != nil {
		return &pipeline.IOError{Operation: "create", Path: finalPath, Err: err}
	}
	tmpPath := tmp.Name()

	err = fn(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return &pipeline.IOError{Operation: "rename", Path: finalPath, Err: err}
	}
	return nil
}

func runLegacyEncode(path string) int {
	logger := applog.Operation("legacy-encode")

	password, err := resolvePassword()
	if err != nil {
		logger.Error("resolving password", "error", err)
		return exitIO
	}
	key := pipeline.DeriveKey(password)

	in, err := os.Open(path)
	if err != nil {
		logger.Error("opening input", "error", err)
		return exitIO
	}
	defer in.Close()

	outPath := path + ".encrypted"
	out, err := os.Create(outPath)
	if err != nil {
		logger.Error("creating output", "path", outPath, "error", err)
		return exitIO
	}
	defer out.Close()

	err = pipeline.LegacyEncode(key, in, out, rand.Reader)
	logger.Info("legacy encode finished", "path", outPath, "error", err)
	return exitCode(err)
}

func runLegacyDecode(path string) int {
	logger := applog.Operation("legacy-decode")

	outPath, ok := legacyOutputPath(path)
	if !ok {
		err := &pipeline.FileFormatError{Path: path, Reason: "unrecognized .encrypted variant"}
		logger.Error("unsupported legacy suffix", "path", path)
		return exitCode(err)
	}

	password, err := resolvePassword()
	if err != nil {
		logger.Error("resolving password", "error", err)
		return exitIO
	}
	key := pipeline.DeriveKey(password)

	in, err := os.Open(path)
	if err != nil {
		logger.Error("opening input", "error", err)
		return exitIO
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		logger.Error("stat input", "error", err)
		return exitIO
	}

	err = writeOnSuccess(outPath, func(out *os.File) error {
		return pipeline.LegacyDecode(key, in, info.Size(), out)
	})
	logger.Info("legacy decode finished", "path", outPath, "error", err)
	return exitCode(err)
}

const legacyExt = ".encrypted"

// isLegacyPath reports whether path ends in the legacy container's
// plain suffix or its dotted-hex variant.
func isLegacyPath(path string) bool {
	if strings.HasSuffix(path, legacyExt) {
		return true
	}
	idx := strings.LastIndex(path, legacyExt+"-")
	return idx >= 0 && idx+len(legacyExt)+1 < len(path)
}

// legacyOutputPath returns the plaintext path to write for a legacy
// container path, and whether the variant is one this build recognizes.
// Only the plain .encrypted suffix is honored; any .encrypted-HEX
// variant is treated as an unrecognized format rather than guessed at.
func legacyOutputPath(path string) (string, bool) {
	if strings.HasSuffix(path, legacyExt) {
		return strings.TrimSuffix(path, legacyExt), true
	}
	return "", false
}

func closeAll(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
