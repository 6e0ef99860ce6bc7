package model

import (
	"fmt"
	"strconv"
)

// IntervalSeconds parses an interval string like "1m", "5m", "1h", "1d" into
// seconds. A bare number is taken as minutes, matching upstream conventions.
func IntervalSeconds(interval string) (int64, error) {
	if interval == "" {
		return 0, fmt.Errorf("empty interval")
	}

	unit := interval[len(interval)-1]
	num := interval[:len(interval)-1]
	var mult int64
	switch unit {
	case 's':
		mult = 1
	case 'm':
		mult = 60
	case 'h':
		mult = 3600
	case 'd':
		mult = 86400
	case 'w':
		mult = 7 * 86400
	default:
		// Bare number of minutes, e.g. "15".
		num, mult = interval, 60
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad interval %q", interval)
	}
	return n * mult, nil
}
