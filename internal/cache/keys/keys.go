// Package keys builds canonical cache keys for discovery queries.
package keys

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Query kinds. Keys are prefixed with the kind so invalidation can sweep a
// whole kind with a prefix match.
const (
	KindFeed   = "feed"
	KindMap    = "map"
	KindDetail = "detail"
)

// Prefix is the invalidation prefix for a kind.
func Prefix(kind string) string { return kind + ":" }

// Key produces a stable key for (kind, params). Params are serialized
// through a deep key-sort so two logically equal values yield the same key
// regardless of field or map-key order. The readable segment is sanitized
// and truncated; the xxhash64 suffix keeps truncated keys distinct.
func Key(kind string, params any) string {
	canon := canonicalJSON(params)
	safe := sanitizeForKey(canon)

	const maxTextLen = 160
	if len(safe) > maxTextLen {
		safe = safe[:maxTextLen]
	}

	sum := xxhash.Sum64String(canon)
	return fmt.Sprintf("%s%s:q=%016x", Prefix(kind), safe, sum)
}

// canonicalJSON round-trips params through an untyped value so that
// encoding/json's sorted map-key output applies at every nesting level.
func canonicalJSON(params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%+v", params)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '.':
			out = r
		default:
			// any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
