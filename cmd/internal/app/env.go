package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envOr returns def when key is unset, blank, or rejected by parse.
func envOr[T any](key string, def T, parse func(string) (T, bool)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if v, ok := parse(raw); ok {
		return v
	}
	return def
}

func EnvString(key, def string) string {
	return envOr(key, def, func(s string) (string, bool) { return s, true })
}

func EnvBool(key string, def bool) bool {
	return envOr(key, def, func(s string) (bool, bool) {
		b, err := strconv.ParseBool(s)
		return b, err == nil
	})
}

// EnvInt accepts only positive values.
func EnvInt(key string, def int) int {
	return envOr(key, def, func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil && n > 0
	})
}

// EnvInt32 accepts zero, which pgxpool treats as "no minimum".
func EnvInt32(key string, def int32) int32 {
	return envOr(key, def, func(s string) (int32, bool) {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err == nil && n >= 0
	})
}

// EnvDuration accepts only positive Go durations ("15s", "2m").
func EnvDuration(key string, def time.Duration) time.Duration {
	return envOr(key, def, func(s string) (time.Duration, bool) {
		d, err := time.ParseDuration(s)
		return d, err == nil && d > 0
	})
}

// EnvCSV splits a comma-separated list, dropping empty items.
func EnvCSV(key string) []string {
	return envOr[[]string](key, nil, func(s string) ([]string, bool) {
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	})
}
