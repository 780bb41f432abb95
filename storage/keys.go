package storage

import "strings"

// SanitizeKey reduces an arbitrary key to the character set [A-Za-z0-9_.-]
// so it is safe to use as a file name or an event session id. Every other
// rune is replaced with an underscore. Identical inputs always produce
// identical outputs, so sanitized keys remain stable lookup handles.
func SanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-':
			return r
		}
		return '_'
	}, key)
}
