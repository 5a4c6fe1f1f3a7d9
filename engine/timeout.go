package engine

import (
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/metricshttp"
)

// checkAndHandleTimeout returns true iff it transitioned the active run
// into `timeout`. Two independent pieces of evidence produce the same
// terminal state: a chunk that has been running too long, or no chunk
// starting by its deadline (distinguished so the caller and tests can
// reason about which condition fired, but collapsed to one user-visible
// status either way).
func (e *Engine) checkAndHandleTimeout(now time.Time) (bool, error) {
	status, err := readStatus(e.KV)
	if err != nil {
		return false, err
	}
	if status != domain.StatusRunning {
		return false, nil
	}

	startedAt, running, err := chunkStartedAt(e.KV)
	if err != nil {
		return false, err
	}
	if running {
		if now.Sub(startedAt) > ProcessingTimeout {
			return true, e.transitionTimeout(now, "chunk exceeded processing timeout")
		}
		return false, nil
	}

	deadline, scheduled, err := expectedChunkStartBy(e.KV)
	if err != nil {
		return false, err
	}
	if scheduled && now.After(deadline) {
		return true, e.transitionTimeout(now, "next chunk did not start by its deadline")
	}
	return false, nil
}

func (e *Engine) transitionTimeout(now time.Time, reason string) error {
	if err := writeStatus(e.KV, domain.StatusTimeout, reason); err != nil {
		return err
	}
	if err := markChunkEnded(e.KV); err != nil {
		return err
	}
	if err := e.finishTerminal(now, domain.StatusTimeout, reason); err != nil {
		return err
	}
	metricshttp.Get().RunsTimedOut.Add(1)
	e.notify("Inbox triage: run timed out", reason)
	return nil
}

// finishTerminal records the UI-facing snapshot and releases the lock, the
// single place every terminal transition funnels through, so the lock is
// released exactly once per run.
func (e *Engine) finishTerminal(now time.Time, status domain.Status, msg string) error {
	timeRange, startedAt, err := readRunStart(e.KV)
	if err != nil {
		return err
	}
	chunkState, err := readActiveChunkState(e.KV)
	if err != nil {
		return err
	}
	inFlight, err := readAccumulatedInFlight(e.KV)
	if err != nil {
		return err
	}
	stats := domain.RunStats{
		Status:     status,
		Message:    msg,
		TimeRange:  timeRange,
		StartedAt:  startedAt,
		EndedAt:    now,
		ChunkTotal: chunkState.Total,
		MustDo:     len(inFlight.MustDo),
		MustKnow:   len(inFlight.MustKnow),
	}
	if err := writeLatestRunStats(e.KV, stats); err != nil {
		return err
	}
	if err := clearActiveChunkState(e.KV); err != nil {
		return err
	}
	if err := e.KV.Delete(keyAccumulatedInFlight); err != nil {
		return err
	}
	if err := clearStatus(e.KV); err != nil {
		return err
	}
	if err := releaseLock(e.KV); err != nil {
		return err
	}
	return e.ensureDispatcher()
}
