package jsonutil

import (
	"regexp"
	"strings"
)

// repair.go applies textual fixes to near-JSON model output before a parse
// retry: single-quote normalization, trailing separator removal, and merging
// of adjacent string fragments that lost their separating comma.

var (
	// `"foo" "bar"` inside an array: a dropped comma between two string
	// fragments. Merged into a single string rather than guessed apart.
	adjacentFragmentsRe = regexp.MustCompile(`"[ \t]+"`)

	// `, }` or `, ]`, trailing separators that strict JSON rejects.
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// Repair rewrites common structural mistakes in model output so that a strict
// JSON parse can be retried. It is intentionally conservative: every rewrite
// targets a corruption pattern observed in real responses, and text inside
// double-quoted strings is never touched.
func Repair(s string) string {
	s = normalizeQuotes(s)
	s = adjacentFragmentsRe.ReplaceAllString(s, " ")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return s
}

// normalizeQuotes converts single-quoted keys and values to double-quoted
// ones. A small state machine tracks whether the scanner is inside a
// double-quoted string (leave untouched), inside a single-quoted string
// (convert, escaping any embedded double quotes), or between tokens.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	const (
		outside = iota
		inDouble
		inSingle
	)
	state := outside
	escaped := false

	for _, r := range s {
		switch state {
		case outside:
			switch r {
			case '"':
				state = inDouble
				b.WriteRune(r)
			case '\'':
				state = inSingle
				b.WriteRune('"')
			default:
				b.WriteRune(r)
			}
		case inDouble:
			if escaped {
				escaped = false
				b.WriteRune(r)
				continue
			}
			switch r {
			case '\\':
				escaped = true
				b.WriteRune(r)
			case '"':
				state = outside
				b.WriteRune(r)
			default:
				b.WriteRune(r)
			}
		case inSingle:
			if escaped {
				escaped = false
				b.WriteRune(r)
				continue
			}
			switch r {
			case '\\':
				escaped = true
				b.WriteRune(r)
			case '\'':
				state = outside
				b.WriteRune('"')
			case '"':
				b.WriteString(`\"`)
			default:
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}
