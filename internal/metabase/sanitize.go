package metabase

import (
	"strings"
	"unicode"
)

// FileName builds "<id>_<name>.json" with the name made safe for any
// filesystem: whitespace, path separators, reserved punctuation and control
// characters all become underscores. Letters outside ASCII are kept.
func FileName(id, name string) string {
	return SanitizeName(id) + "_" + SanitizeName(name) + ".json"
}

// SanitizeName replaces characters that are unsafe in a file name.
func SanitizeName(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r):
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)

	// Leading dots would make the file hidden or refer to a parent.
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return "unnamed"
	}
	return s
}
