package schema

import "strings"

// PathSeparator joins the segments of a flattened field path.
const PathSeparator = "."

var (
	segmentEscaper   = strings.NewReplacer(`\`, `\\`, `.`, `\.`)
	segmentUnescaper = strings.NewReplacer(`\\`, `\`, `\.`, `.`)
)

// EscapeSegment makes name usable as one path segment. A literal dot becomes
// `\.` and a backslash `\\`, so "a.b" as a column name stays distinct from
// field b nested under record a.
func EscapeSegment(name string) string {
	return segmentEscaper.Replace(name)
}

// UnescapeSegment reverses EscapeSegment.
func UnescapeSegment(segment string) string {
	return segmentUnescaper.Replace(segment)
}

// SplitPath returns the parent path and the escaped last segment of path.
// Escaped dots are not separators. ok is false for a top-level path.
func SplitPath(path string) (parent, last string, ok bool) {
	cut := -1
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '\\':
			i++
		case '.':
			cut = i
		}
	}
	if cut < 0 {
		return "", path, false
	}
	return path[:cut], path[cut+1:], true
}

// SegmentName returns the unescaped name of the last segment of path.
func SegmentName(path string) string {
	_, last, _ := SplitPath(path)
	return UnescapeSegment(last)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return EscapeSegment(name)
	}
	return prefix + PathSeparator + EscapeSegment(name)
}
