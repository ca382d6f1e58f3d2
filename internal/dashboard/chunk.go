package dashboard

import (
	"strings"
	"unicode/utf8"
)

// ChunkLines packs lines into successive fields named name, "name (cont.)",
// each at most limit characters. A single line longer than limit is cut.
func ChunkLines(name string, lines []string, limit int) []Field {
	if len(lines) == 0 || limit <= 0 {
		return nil
	}

	var (
		fields []Field
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if n == 0 {
			return
		}
		title := name
		if len(fields) > 0 {
			title = name + " (cont.)"
		}
		fields = append(fields, Field{Name: title, Value: cur.String()})
		cur.Reset()
		n = 0
	}

	for _, line := range lines {
		line = Truncate(line, limit)
		size := utf8.RuneCountInString(line)
		extra := size
		if n > 0 {
			extra++ // newline
		}
		if n+extra > limit {
			flush()
			extra = size
		}
		if n > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		n += extra
	}
	flush()
	return fields
}

// Truncate cuts s to at most limit runes, marking the cut with "…".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 1 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-1]) + "…"
}

// tailRunes keeps the last limit runes of s.
func tailRunes(s string, limit int) (string, bool) {
	r := []rune(s)
	if len(r) <= limit {
		return s, false
	}
	return string(r[len(r)-limit:]), true
}
