package ffmpeg

import (
	"strings"

	"github.com/smazurov/camhls/internal/process"
)

// Lowercase substrings that mark a line as a connectivity problem.
var connectivityKeywords = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"timed out",
	"network is unreachable",
	"no route to host",
	"host is unreachable",
	"name or service not known",
	"temporary failure in name resolution",
	"401 unauthorized",
	"403 forbidden",
	"404 not found",
	"server returned 4",
	"server returned 5",
	"end of file",
	"broken pipe",
	"could not find codec parameters",
	"error opening input",
}

// Lowercase substrings that mark a line as a decoding anomaly.
var decodeKeywords = []string{
	"error while decoding",
	"corrupt",
	"non-existing pps",
	"non-existing sps",
	"concealing",
	"missing picture",
	"max delay reached",
	"rtp: missed",
	"invalid nal",
	"decode_slice_header error",
	"no frame!",
	"left block unavailable",
	"cabac decode",
	"packet mismatch",
	"dts out of order",
	"non-monotonous dts",
}

// Classify parses an ffmpeg stderr line and assigns it a class. Lines that
// match neither keyword table are ClassInfo.
func Classify(line string) process.Diagnosis {
	level, msg := SplitLevel(line)
	lower := strings.ToLower(msg)

	class := process.ClassInfo
	switch {
	case containsAny(lower, connectivityKeywords):
		class = process.ClassConnectivity
	case containsAny(lower, decodeKeywords):
		class = process.ClassDecodeAnomaly
	}

	return process.Diagnosis{Level: level, Message: msg, Class: class}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ffmpeg's -loglevel names, as printed with the "level+" prefix flag.
var levelNames = map[string]bool{
	"quiet": true, "panic": true, "fatal": true, "error": true, "warning": true,
	"info": true, "verbose": true, "debug": true, "trace": true,
}

// SplitLevel removes the "[level] " tag that -loglevel level+info puts in
// front of each message and returns it separately. Leading component tags
// such as "[h264 @ 0x55d0] " are kept in msg. Untagged lines are "info".
func SplitLevel(line string) (level, msg string) {
	rest := line
	for strings.HasPrefix(rest, "[") {
		tag, after, ok := strings.Cut(rest[1:], "] ")
		if !ok {
			break
		}
		if levelNames[tag] {
			prefix := line[:len(line)-len(rest)]
			return tag, prefix + after
		}
		rest = after
	}
	return "info", line
}
