// Command phnx encodes a file into eight encrypted, error-corrected
// shards or decodes them back, and can also read and write the legacy
// single-file cryptolocker .encrypted container.
package main

import (
	"os"

	"github.com/notatuta/phnx/internal/applog"
)

func main() {
	applog.Init(os.Stderr)
	os.Exit(run())
}

func run() int {
	if err := runSelfTest(); err != nil {
		slogFail("self-test", err)
		return exitCode(err)
	}

	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return exitIO
	}
	return lastExitCode
}
