package jsonutil

import (
	"encoding/json"
	"regexp"
	"strings"
)

// extract.go recovers individual fields by pattern-matching their labels
// directly against raw text. This is the last structural resort before a
// caller falls back to a canned record: it tolerates globally corrupted
// output where brace matching and repair both failed, as long as the field
// label and its delimiters survived.

var quotedItemRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// fieldValueRe builds a pattern matching `"field": "value"` with either quote
// style around the label and a double-quoted value (run Repair first so
// single-quoted values are already normalized).
func fieldValueRe(field string) *regexp.Regexp {
	return regexp.MustCompile(`["']?` + regexp.QuoteMeta(field) + `["']?\s*:\s*"((?:[^"\\]|\\.)*)"`)
}

// fieldListRe matches `"field": [ ... ]` capturing the bracketed body.
// The body must not contain a nested array.
func fieldListRe(field string) *regexp.Regexp {
	return regexp.MustCompile(`["']?` + regexp.QuoteMeta(field) + `["']?\s*:\s*\[([^\[\]]*)\]`)
}

func fieldBoolRe(field string) *regexp.Regexp {
	return regexp.MustCompile(`["']?` + regexp.QuoteMeta(field) + `["']?\s*:\s*(true|false)`)
}

// ExtractString recovers a single string field from raw text by label.
// Returns false if the label or a quoted value cannot be found.
func ExtractString(raw, field string) (string, bool) {
	repaired := Repair(raw)
	m := fieldValueRe(field).FindStringSubmatch(repaired)
	if m == nil {
		return "", false
	}
	return unescape(m[1]), true
}

// ExtractStringList recovers a string-array field from raw text by label.
// Quoted items inside the bracketed body are collected in order; anything
// unquoted between them is discarded. Returns false if no bracketed body
// with at least one quoted item is present.
func ExtractStringList(raw, field string) ([]string, bool) {
	repaired := Repair(raw)
	m := fieldListRe(field).FindStringSubmatch(repaired)
	if m == nil {
		return nil, false
	}

	var items []string
	for _, im := range quotedItemRe.FindAllStringSubmatch(m[1], -1) {
		item := strings.TrimSpace(unescape(im[1]))
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}

// ExtractBool recovers a boolean field from raw text by label.
func ExtractBool(raw, field string) (bool, bool) {
	m := fieldBoolRe(field).FindStringSubmatch(raw)
	if m == nil {
		return false, false
	}
	return m[1] == "true", true
}

// unescape resolves JSON escape sequences in a captured value. The capture
// came from inside a quoted string, so re-quoting it yields a parseable JSON
// string; on failure the raw capture is returned as-is.
func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
