// Command clock gets and sets the system time and checks it against NTP
// servers.
//
//	clock [flags] get
//	clock [flags] set <datetime>
//	clock [flags] check-ntp [-apply]
//	clock [flags] watch [-listen :8080]
//	clock init-config <path>
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alexwitherspoon/clock/internal/clock"
	"github.com/alexwitherspoon/clock/internal/logger"
)

// Build info set at compile time via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	// Panic recovery - report crashes and exit non-zero
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "FATAL PANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		setter: clock.System{},
		now:    clock.Now,
	}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// app carries the collaborators a command needs, so tests can swap the
// clock and capture output
type app struct {
	stdout io.Writer
	stderr io.Writer
	setter clock.Setter
	now    func() time.Time
	log    *logger.Logger

	// onListen, when set, receives the status server's bound address
	onListen func(net.Addr)
}

func (a *app) errorf(format string, args ...any) int {
	fmt.Fprintf(a.stderr, "error: "+format+"\n", args...)
	return 1
}
