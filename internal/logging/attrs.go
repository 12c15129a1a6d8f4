package logging

import (
	"log/slog"
	"slices"
)

// scopedAttr remembers the groups that were open when the attr was added,
// so a later WithGroup does not re-prefix it.
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

func appendScoped(dst []scopedAttr, groups []string, attrs []slog.Attr) []scopedAttr {
	dst = slices.Clip(dst)
	for _, a := range attrs {
		dst = append(dst, scopedAttr{groups: groups, attr: a})
	}
	return dst
}

// levelName is the lowercase name used in log entries and filters.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
