package utils

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// NotifyContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged; deferred cleanup in the caller then runs
// instead of the process dying mid-registration. Further signals are
// swallowed until the returned cancel is called.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-c:
				if ctx.Err() == nil {
					log.Printf("Received signal: %v", sig)
				} else {
					log.Printf("Received signal: %v, still cleaning up", sig)
				}
				cancel()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(c)
			close(done)
		})
		cancel()
	}
}
