package cache

import "strings"

// KeyDelimiter joins prefix and identifier in a cache key.
const KeyDelimiter = ":"

// Key builds the cache key "<prefix>:<identifier>".
//
// Example:
//
//	food-groups:query:all:none
func Key(prefix, identifier string) string {
	return prefix + KeyDelimiter + identifier
}

// Pattern returns the remote scan pattern "<prefix>:*" matching every key
// under prefix. Glob metacharacters inside prefix are escaped so the match
// stays a literal prefix match, like the local tier's.
func Pattern(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 2)
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteString(KeyDelimiter + "*")
	return b.String()
}
