package main

import "github.com/notatuta/phnx/internal/pipeline"

// Exit codes, per the CLI surface: 0 success, 1 I/O, 2 password
// mismatch, 3 uncorrectable, 4 file format, 5 self-test.
const (
	exitOK               = 0
	exitIO               = 1
	exitPasswordMismatch = 2
	exitUncorrectable    = 3
	exitFileFormat       = 4
	exitSelfTest         = 5
)

// exitCode maps a typed core error (or nil) to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case pipeline.IsPasswordMismatch(err):
		return exitPasswordMismatch
	case pipeline.IsUncorrectable(err):
		return exitUncorrectable
	case pipeline.IsFileFormat(err):
		return exitFileFormat
	case pipeline.IsSelfTestFailed(err):
		return exitSelfTest
	case pipeline.IsIO(err):
		return exitIO
	default:
		return exitIO
	}
}
