package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResolveTimeRange parses a symbolic range like "1day" or "7days" into a
// concrete [start,end) window ending at now.
func ResolveTimeRange(symbol string, now time.Time) (TimeRange, error) {
	digits := strings.TrimSuffix(strings.TrimSuffix(symbol, "days"), "day")
	n, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil || n <= 0 {
		return TimeRange{}, fmt.Errorf("invalid time range %q", symbol)
	}
	return TimeRange{
		Symbol: symbol,
		Start:  now.Add(-time.Duration(n) * 24 * time.Hour),
		End:    now,
	}, nil
}
