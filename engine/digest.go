package engine

import (
	"time"

	"github.com/inboxtriage/engine/metricshttp"
)

// maybeSendDailyDigest implements the gated digest send: proceed only if
// the local clock is within [21:00,24:00) and no digest has been sent yet
// today. Send succeeds: clear the accumulator and advance
// passiveLastSummaryDate. Send fails: leave everything intact for the next
// pass to retry.
func (e *Engine) maybeSendDailyDigest(now time.Time) error {
	loc, err := e.location()
	if err != nil {
		return err
	}
	local := now.In(loc)

	if !withinDigestWindow(local) {
		return nil
	}
	today := formatDate(local)

	lastSummary, err := readLastSummaryDate(e.KV)
	if err != nil {
		return err
	}
	if lastSummary == today {
		return nil
	}

	acc, handle, err := loadAccumulator(e.KV, e.Blobs)
	if err != nil {
		return err
	}
	if acc.Empty() {
		return nil
	}

	body := ""
	if e.Digest != nil {
		body, err = e.Digest.Render(acc)
		if err != nil {
			return nil // rendering failure: treat like a send failure, retry next pass
		}
	}
	if e.Mailer == nil || e.Config.NotifyAddress == "" {
		return nil
	}
	if err := e.Mailer.Send(e.Config.NotifyAddress, "Your daily inbox digest", body, e.Config.SenderName); err != nil {
		// Send failure: do not clear accumulator, do not advance
		// passiveLastSummaryDate; the window stays open for a retry,
		// and if the window closes it carries over to the next day.
		metricshttp.Get().DigestsFailed.Add(1)
		return nil
	}
	metricshttp.Get().DigestsSent.Add(1)

	if err := clearAccumulated(e.Blobs, handle); err != nil {
		return err
	}
	return writeLastSummaryDate(e.KV, today)
}

func withinDigestWindow(local time.Time) bool {
	h := local.Hour()
	return h >= DigestWindowStartHour && h < DigestWindowEndHour
}

func (e *Engine) location() (*time.Location, error) {
	if e.Config.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(e.Config.TimeZone)
	if err != nil {
		return nil, newError(ErrConfiguration, "invalid time zone "+e.Config.TimeZone, err)
	}
	return loc, nil
}
