package engine

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/kvstore"
)

// Keys shared by both workflows (lock + stats), and the few helpers every
// accessor in state_active.go/state_passive.go builds on. The durable
// schema must accept absent keys; every accessor here parses a default
// explicitly rather than relying on truthiness of a missing value.
const (
	keyLock           = "lock"
	keyLatestRunStats = "latestRunStats"
)

func getString(kv kvstore.Store, key, def string) (string, error) {
	v, ok, err := kv.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func getBool(kv kvstore.Store, key string, def bool) (bool, error) {
	v, ok, err := kv.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	return v == "true", nil
}

func getInt(kv kvstore.Store, key string, def int) (int, error) {
	v, ok, err := kv.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

func getTime(kv kvstore.Store, key string) (time.Time, bool, error) {
	v, ok, err := kv.Get(key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(0, n), true, nil
}

func setTime(kv kvstore.Store, key string, t time.Time) error {
	return kv.Set(key, strconv.FormatInt(t.UnixNano(), 10))
}

// readLock returns the current persisted lock, if any.
func readLock(kv kvstore.Store) (domain.Lock, bool, error) {
	v, ok, err := kv.Get(keyLock)
	if err != nil || !ok || v == "" {
		return domain.Lock{}, false, err
	}
	parts := splitLock(v)
	if len(parts) != 2 {
		return domain.Lock{}, false, nil
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return domain.Lock{}, false, nil
	}
	return domain.Lock{Kind: domain.LockKind(parts[0]), AcquiredAt: time.Unix(0, n)}, true, nil
}

func writeLock(kv kvstore.Store, l domain.Lock) error {
	return kv.Set(keyLock, string(l.Kind)+":"+strconv.FormatInt(l.AcquiredAt.UnixNano(), 10))
}

func clearLock(kv kvstore.Store) error {
	return kv.Delete(keyLock)
}

func splitLock(v string) []string {
	for i := 0; i < len(v); i++ {
		if v[i] == ':' {
			return []string{v[:i], v[i+1:]}
		}
	}
	return []string{v}
}

func writeLatestRunStats(kv kvstore.Store, stats domain.RunStats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return kv.Set(keyLatestRunStats, string(b))
}

// ReadLatestRunStats exposes the UI-facing snapshot for CLI/status callers.
func ReadLatestRunStats(kv kvstore.Store) (domain.RunStats, bool, error) {
	v, ok, err := kv.Get(keyLatestRunStats)
	if err != nil || !ok {
		return domain.RunStats{}, false, err
	}
	var stats domain.RunStats
	if err := json.Unmarshal([]byte(v), &stats); err != nil {
		return domain.RunStats{}, false, nil
	}
	return stats, true, nil
}
