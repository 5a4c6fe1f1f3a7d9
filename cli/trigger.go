package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/inboxtriage/engine/engine"
	"github.com/inboxtriage/engine/trigger"
)

// newTriggerService builds the in-process TriggerService used by --command
// invocations (the dispatcher's own trigger bookkeeping lives in KV/engine
// state; this only needs to exist for the lifetime of one process).
func newTriggerService() trigger.Service {
	return trigger.NewInProcess()
}

// serveForever runs the engine as a long-running process: installs the
// dispatcher trigger and blocks until interrupted, for hosts that do allow
// long-lived goroutines/threads rather than only coarse host-timer
// wake-ups.
func serveForever(eng *engine.Engine) error {
	if err := eng.EnsureDispatcherForCLI(); err != nil {
		return err
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
