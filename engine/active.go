package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/mailstore/query"
	"github.com/inboxtriage/engine/metricshttp"
)

// TimeRange is a symbolic active-scan request resolving to [Start,End).
type TimeRange struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// Start begins a user-initiated active scan. Precondition: no existing
// lock. On any failure, no partial lock may outlive this call.
func (e *Engine) Start(tr TimeRange) error {
	if err := e.Config.configurationError(); err != nil {
		return err
	}

	now := e.now()
	if err := acquireLock(e.KV, domain.LockActive, now); err != nil {
		return err
	}

	if err := e.startLocked(tr, now); err != nil {
		e.log().Errorf("active start failed: %v", err)
		_ = releaseLock(e.KV)
		_ = e.ensureDispatcher()
		e.notify("Inbox triage: failed to start", err.Error())
		return err
	}
	return nil
}

func (e *Engine) startLocked(tr TimeRange, now time.Time) error {
	total := chunkCount(tr.Start, tr.End)

	if err := writeActiveChunkState(e.KV, activeChunkState{
		WindowStart: tr.Start, WindowEnd: tr.End, Index: 0, Total: total,
	}); err != nil {
		return err
	}
	if err := e.KV.Delete(keyAccumulatedInFlight); err != nil {
		return err
	}
	if err := writeStatus(e.KV, domain.StatusRunning, "starting"); err != nil {
		return err
	}
	if err := writeRunStart(e.KV, tr.Symbol, now); err != nil {
		return err
	}
	if err := setExpectedChunkStartBy(e.KV, now.Add(expectedChunkStartByBuffer(KickoffDelay))); err != nil {
		return err
	}

	// Temporarily delete the dispatcher trigger and install a one-off for
	// the first chunk; the one-off's first action restores the dispatcher.
	if err := e.deleteDispatcherTriggers(); err != nil {
		return err
	}
	_, err := e.Triggers.CreateOneOff(KickoffDelay, func() { _ = e.Step() })
	return err
}

func chunkCount(start, end time.Time) int {
	if !end.After(start) {
		return 1
	}
	n := int((end.Sub(start) + Chunk - 1) / Chunk)
	if n < 1 {
		n = 1
	}
	return n
}

func (e *Engine) deleteDispatcherTriggers() error {
	installed, err := e.Triggers.List()
	if err != nil {
		return err
	}
	for _, t := range installed {
		if err := e.Triggers.Delete(t.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Step advances the active engine by exactly one chunk, invoked by the
// kickoff one-off or by a dispatcher tick while status is running.
func (e *Engine) Step() error {
	if err := e.ensureDispatcher(); err != nil {
		return err
	}

	now := e.now()
	if err := markChunkStarting(e.KV, now); err != nil {
		return err
	}

	if err := e.stepLocked(now); err != nil {
		e.log().Errorf("active chunk failed: %v", err)
		if statusErr := writeStatus(e.KV, domain.StatusError, err.Error()); statusErr != nil {
			return statusErr
		}
		if clearErr := markChunkEnded(e.KV); clearErr != nil {
			return clearErr
		}
		if finErr := e.finishTerminal(now, domain.StatusError, err.Error()); finErr != nil {
			return finErr
		}
		metricshttp.Get().RunsErrored.Add(1)
		e.notify("Inbox triage: run failed", err.Error())
		return err
	}
	return nil
}

func (e *Engine) stepLocked(now time.Time) error {
	state, err := readActiveChunkState(e.KV)
	if err != nil {
		return err
	}

	w0 := state.WindowStart.Add(time.Duration(state.Index) * Chunk)
	if !w0.Before(state.WindowEnd) {
		return e.finalize(now, state)
	}
	w1 := w0.Add(Chunk)
	if w1.After(state.WindowEnd) {
		w1 = state.WindowEnd
	}

	// No deadline is imposed here: a stuck chunk is reaped by the
	// dispatcher's checkAndHandleTimeout on a later tick, comparing
	// chunkStartedAt against ProcessingTimeout, not by cancelling this
	// call in flight.
	ctx := context.Background()

	if err := e.SearchLimiter.Wait(ctx); err != nil {
		return err
	}
	q := query.Build(query.Query{After: &w0, Before: &w1})
	if e.Config.Policy.UnreadOnly {
		q = q + " is:unread"
	}
	if e.Config.Policy.InboxOnly {
		q = q + " in:inbox"
	}
	threads, err := e.Mail.Search(q, 0)
	if err != nil {
		return newError(ErrTransientProvider, "mail search failed", err)
	}

	result, foundThread, err := e.runBatcher(ctx, threads)
	if err != nil {
		return err
	}
	e.archiveUninteresting(threads, foundThread)

	inFlight, err := readAccumulatedInFlight(e.KV)
	if err != nil {
		return err
	}
	inFlight.Merge(result)
	if err := writeAccumulatedInFlight(e.KV, inFlight); err != nil {
		return err
	}

	metricshttp.Get().ChunksProcessed.Add(1)
	metricshttp.Get().FindingsMustDo.Add(int64(len(result.MustDo)))
	metricshttp.Get().FindingsMustKnow.Add(int64(len(result.MustKnow)))

	state.Index++
	if err := writeActiveChunkState(e.KV, state); err != nil {
		return err
	}
	if err := markChunkEnded(e.KV); err != nil {
		return err
	}
	if err := writeStatus(e.KV, domain.StatusRunning, fmt.Sprintf("chunk %d/%d complete", state.Index, state.Total)); err != nil {
		return err
	}

	if state.Index < state.Total {
		return setExpectedChunkStartBy(e.KV, now.Add(expectedChunkStartByBuffer(e.Config.DispatcherInterval)))
	}
	return e.finalize(now, state)
}

func (e *Engine) finalize(now time.Time, state activeChunkState) error {
	inFlight, err := readAccumulatedInFlight(e.KV)
	if err != nil {
		return err
	}
	if e.Digest != nil && e.Mailer != nil {
		acc := domain.AccumulatorFile{MustDo: inFlight.MustDo, MustKnow: inFlight.MustKnow, TotalProcessed: len(inFlight.MustDo) + len(inFlight.MustKnow)}
		body, err := e.Digest.Render(acc)
		if err != nil {
			e.log().Warnf("render completion digest failed: %v", err)
		} else {
			e.notify("Inbox triage: scan complete", body)
		}
	}
	if err := writeStatus(e.KV, domain.StatusCompleted, "completed"); err != nil {
		return err
	}
	metricshttp.Get().RunsCompleted.Add(1)
	return e.finishTerminal(now, domain.StatusCompleted, "completed")
}
