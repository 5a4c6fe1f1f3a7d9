package engine

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/kvstore"
)

// Keys owned exclusively by the active workflow. Passive code MUST NEVER
// read or write any of these; the two workflows partition the KV
// namespace cleanly rather than sharing conflated cleanup paths.
const (
	keyStatus              = "status"
	keyStatusMsg           = "statusMsg"
	keyStartedAt           = "startedAt"
	keyTimeRange           = "timeRange"
	keyChunkWindowStart    = "chunkWindowStart"
	keyChunkWindowEnd      = "chunkWindowEnd"
	keyChunkIndex          = "chunkIndex"
	keyChunkTotal          = "chunkTotal"
	keyAccumulatedInFlight = "accumulatedInFlight"
	keyChunkStartedAt      = "chunkStartedAt"
	keyExpectedChunkStartBy = "expectedChunkStartBy"
)

// activeChunkState is the full set of chunk-position fields reloaded at the
// top of every step() call.
type activeChunkState struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Index       int
	Total       int
}

func readActiveChunkState(kv kvstore.Store) (activeChunkState, error) {
	var s activeChunkState
	start, ok, err := getTime(kv, keyChunkWindowStart)
	if err != nil {
		return s, err
	}
	if ok {
		s.WindowStart = start
	}
	end, ok, err := getTime(kv, keyChunkWindowEnd)
	if err != nil {
		return s, err
	}
	if ok {
		s.WindowEnd = end
	}
	s.Index, err = getInt(kv, keyChunkIndex, 0)
	if err != nil {
		return s, err
	}
	s.Total, err = getInt(kv, keyChunkTotal, 0)
	return s, err
}

func writeActiveChunkState(kv kvstore.Store, s activeChunkState) error {
	return kv.SetMany(map[string]string{
		keyChunkWindowStart: formatTime(s.WindowStart),
		keyChunkWindowEnd:   formatTime(s.WindowEnd),
		keyChunkIndex:       formatInt(s.Index),
		keyChunkTotal:       formatInt(s.Total),
	})
}

func clearActiveChunkState(kv kvstore.Store) error {
	for _, k := range []string{
		keyChunkWindowStart, keyChunkWindowEnd, keyChunkIndex, keyChunkTotal,
		keyStartedAt, keyTimeRange,
	} {
		if err := kv.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func markChunkStarting(kv kvstore.Store, now time.Time) error {
	if err := setTime(kv, keyChunkStartedAt, now); err != nil {
		return err
	}
	return kv.Delete(keyExpectedChunkStartBy)
}

func markChunkEnded(kv kvstore.Store) error {
	return kv.Delete(keyChunkStartedAt)
}

func chunkStartedAt(kv kvstore.Store) (time.Time, bool, error) {
	return getTime(kv, keyChunkStartedAt)
}

func setExpectedChunkStartBy(kv kvstore.Store, deadline time.Time) error {
	return setTime(kv, keyExpectedChunkStartBy, deadline)
}

func expectedChunkStartBy(kv kvstore.Store) (time.Time, bool, error) {
	return getTime(kv, keyExpectedChunkStartBy)
}

func writeRunStart(kv kvstore.Store, timeRange string, startedAt time.Time) error {
	return kv.SetMany(map[string]string{
		keyTimeRange: timeRange,
		keyStartedAt: formatTime(startedAt),
	})
}

func readRunStart(kv kvstore.Store) (timeRange string, startedAt time.Time, err error) {
	timeRange, err = getString(kv, keyTimeRange, "")
	if err != nil {
		return
	}
	t, _, terr := getTime(kv, keyStartedAt)
	if terr != nil {
		err = terr
		return
	}
	startedAt = t
	return
}

func readStatus(kv kvstore.Store) (domain.Status, error) {
	v, err := getString(kv, keyStatus, "")
	return domain.Status(v), err
}

func writeStatus(kv kvstore.Store, status domain.Status, msg string) error {
	return kv.SetMany(map[string]string{
		keyStatus:    string(status),
		keyStatusMsg: msg,
	})
}

func clearStatus(kv kvstore.Store) error {
	if err := kv.Delete(keyStatus); err != nil {
		return err
	}
	return kv.Delete(keyStatusMsg)
}

func readAccumulatedInFlight(kv kvstore.Store) (domain.ClassifyResult, error) {
	v, ok, err := kv.Get(keyAccumulatedInFlight)
	if err != nil {
		return domain.ClassifyResult{}, err
	}
	if !ok || v == "" {
		return domain.ClassifyResult{}, nil
	}
	var r domain.ClassifyResult
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return domain.ClassifyResult{}, err
	}
	return r, nil
}

func writeAccumulatedInFlight(kv kvstore.Store, r domain.ClassifyResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return kv.Set(keyAccumulatedInFlight, string(b))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func formatInt(n int) string { return strconv.Itoa(n) }
