package engine

import (
	"time"

	"github.com/inboxtriage/engine/kvstore"
)

// Keys owned exclusively by the passive workflow. Active code MUST NEVER
// read or write any of these.
const (
	keyPassiveLastMsgTs       = "passiveLastMsgTs"
	keyPassiveLastMsgID       = "passiveLastMsgId"
	keyPassiveLastSummaryDate = "passiveLastSummaryDate"
	keyPassiveLastRunAt       = "passiveLastRunAt"
	keyAccumulatorFileID      = "accumulatorFileId"
)

func readHighWaterMark(kv kvstore.Store) (ts time.Time, msgID string, err error) {
	ts, _, err = getTime(kv, keyPassiveLastMsgTs)
	if err != nil {
		return
	}
	msgID, err = getString(kv, keyPassiveLastMsgID, "")
	return
}

// writeHighWaterMark enforces monotonicity: a caller that observes an
// earlier timestamp than what is already persisted is a programming error
// upstream (the passive pass always advances from its own
// earliest-observed message), so this only ever moves the mark forward.
func writeHighWaterMark(kv kvstore.Store, ts time.Time, msgID string) error {
	existing, _, err := getTime(kv, keyPassiveLastMsgTs)
	if err != nil {
		return err
	}
	if ts.Before(existing) {
		return nil
	}
	return kv.SetMany(map[string]string{
		keyPassiveLastMsgTs: formatTime(ts),
		keyPassiveLastMsgID: msgID,
	})
}

func readLastSummaryDate(kv kvstore.Store) (string, error) {
	return getString(kv, keyPassiveLastSummaryDate, "")
}

func writeLastSummaryDate(kv kvstore.Store, date string) error {
	return kv.Set(keyPassiveLastSummaryDate, date)
}

func readPassiveLastRunAt(kv kvstore.Store) (time.Time, bool, error) {
	return getTime(kv, keyPassiveLastRunAt)
}

func writePassiveLastRunAt(kv kvstore.Store, now time.Time) error {
	return setTime(kv, keyPassiveLastRunAt, now)
}

func readAccumulatorFileID(kv kvstore.Store) (string, error) {
	return getString(kv, keyAccumulatorFileID, "")
}

func writeAccumulatorFileID(kv kvstore.Store, id string) error {
	return kv.Set(keyAccumulatorFileID, id)
}
