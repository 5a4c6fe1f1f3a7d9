package engine

import (
	"context"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/mailstore/query"
	"github.com/inboxtriage/engine/metricshttp"
)

// PassivePass runs the hourly background scan. It acquires
// lock{kind=passive} itself on entry and returns nil without doing
// anything if another workflow holds the lock; once acquired, the lock is
// always released before return, whether or not the pass found anything.
// Passive code never writes any active-only key.
func (e *Engine) PassivePass() error {
	now := e.now()
	if err := acquireLock(e.KV, domain.LockPassive, now); err != nil {
		// Lock contention here is not an error worth surfacing to the
		// user; a concurrently running active scan simply means the
		// passive pass waits for next tick.
		return nil
	}
	err := e.passiveLocked(now)
	if relErr := releaseLock(e.KV); relErr != nil && err == nil {
		err = relErr
	}
	if err != nil {
		e.log().Errorf("passive pass failed: %v", err)
		e.notify("Inbox triage: passive scan failed", err.Error())
	}
	return nil
}

func (e *Engine) passiveLocked(now time.Time) error {
	metricshttp.Get().PassivePasses.Add(1)
	lastTs, lastID, err := readHighWaterMark(e.KV)
	if err != nil {
		return err
	}

	start := now.Add(-PassiveBackstop)
	if floor := lastTs.Add(PassiveSafetyBuffer); floor.After(start) {
		start = floor
	}
	end := now
	if !start.Before(end) {
		return nil
	}

	q := query.Build(query.Query{After: &start, Before: &end, InInbox: true, IsUnread: true})
	threads, err := e.Mail.Search(q, 0)
	if err != nil {
		return newError(ErrTransientProvider, "passive mail search failed", err)
	}

	threads = filterIgnored(threads, e.Config.NotifyAddress, e.Config.AddonName)
	threads = stopAtHighWaterMark(threads, lastID)
	if len(threads) == 0 {
		return e.maybeSendDailyDigest(now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ProcessingTimeout)
	defer cancel()
	result, foundThread, err := e.runBatcher(ctx, threads)
	if err != nil {
		return err
	}
	e.archiveUninteresting(threads, foundThread)

	if len(result.MustDo) > 0 || len(result.MustKnow) > 0 {
		earliest, earliestID := earliestMessage(threads)
		if err := writeHighWaterMark(e.KV, earliest, earliestID); err != nil {
			return err
		}
		if err := e.mergeIntoAccumulator(result, start, end, len(threads)); err != nil {
			return err
		}
	}

	return e.maybeSendDailyDigest(now)
}

// stopAtHighWaterMark trims thread traversal at the previously processed
// message (exclusive), avoiding reprocessing.
func stopAtHighWaterMark(threads []domain.EmailThread, lastID string) []domain.EmailThread {
	if lastID == "" {
		return threads
	}
	var out []domain.EmailThread
	for _, t := range threads {
		var kept []domain.Message
		reached := false
		for _, m := range t.Messages {
			if m.ID == lastID {
				reached = true
				break
			}
			kept = append(kept, m)
		}
		if len(kept) > 0 {
			cp := t
			cp.Messages = kept
			out = append(out, cp)
		}
		if reached {
			break
		}
	}
	return out
}

// earliestMessage returns the oldest message's date and id across all
// threads, used to advance the high-water mark from the earliest message
// observed.
func earliestMessage(threads []domain.EmailThread) (time.Time, string) {
	var earliest time.Time
	var id string
	for _, t := range threads {
		for _, m := range t.Messages {
			if earliest.IsZero() || m.Date.Before(earliest) {
				earliest = m.Date
				id = m.ID
			}
		}
	}
	return earliest, id
}

func (e *Engine) mergeIntoAccumulator(result domain.ClassifyResult, windowStart, windowEnd time.Time, processed int) error {
	acc, handle, err := loadAccumulator(e.KV, e.Blobs)
	if err != nil {
		return err
	}
	merged := mergeAccumulator(acc, result, formatDate(windowStart), formatDate(windowEnd), processed)
	return writeAccumulator(e.Blobs, handle, merged)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
