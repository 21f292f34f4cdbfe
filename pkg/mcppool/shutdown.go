package mcppool

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// NotifySignals installs a handler for SIGINT and SIGTERM. In an interactive
// process (stdin attached to a terminal, or Options.Interactive set) a signal
// performs a soft close: sessions and transports are dropped but the pool
// stays open, so a single interrupt does not poison subsequent calls. In a
// batch process the handler runs the full Shutdown path and exits.
//
// Signal handling is opt-in. A program that owns its exit paths should prefer
// `defer pool.Shutdown()` in main and skip this entirely. The returned stop
// function uninstalls the handler.
func (p *Pool) NotifySignals() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if p.interactive() {
					p.logger().Info("signal received in interactive session, dropping connections", "signal", sig.String())
					ctx, cancel := context.WithTimeout(context.Background(), p.opts.ShutdownTimeout)
					p.SoftClose(ctx)
					cancel()
					continue
				}
				p.Shutdown()
				os.Exit(0)
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func (p *Pool) interactive() bool {
	if p.opts.Interactive != nil {
		return *p.opts.Interactive
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}
