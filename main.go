package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/agentdb/cmd"
	"github.com/xkilldash9x/agentdb/internal/observability"
)

const panicLogFile = "agentdb-panic.log"

// osExit is a variable so tests can intercept the exit path.
var osExit = os.Exit

func main() {
	defer handlePanic()

	// SIGINT/SIGTERM cancel the command context for a graceful shutdown;
	// long-running commands (watch, replay) save the store on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	osExit(cmd.ExitCode(err))
}

// handlePanic writes the panic and stack trace to a dedicated log file so a
// crash in an unattended automation run leaves something to debug from.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}

	observability.Sync()

	message := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := os.WriteFile(panicLogFile, []byte(message), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "panic details:\n%s\n", message)
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
	osExit(1)
}
