// Package slugs turns display names and ids into file names and entity ids.
//
// There are two strategies:
//   - File slugs: used for document file names, built on gosimple/slug.
//   - ID slugs: used to derive an entity id from a display name. These keep
//     the snake_case style content ids are written in.
package slugs

import (
	"strings"
	"unicode"

	goslug "github.com/gosimple/slug"
)

// Untitled is used when a slug would otherwise be empty.
const Untitled = "untitled"

// File converts an entity id to a file name stem.
func File(id string) string {
	s := goslug.Make(id)
	if s == "" {
		s = alnumWords(id)
	}
	if s == "" {
		return Untitled
	}
	return s
}

// alnumWords lowercases the letter and digit runs of s and joins them with
// dashes.
func alnumWords(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "-")
}

// ID converts a display name to a snake_case entity id: "The Dark Cellar"
// becomes "the_dark_cellar".
func ID(name string) string {
	s := goslug.Make(name)
	var b strings.Builder
	prevSep := false
	for _, r := range s {
		if r == '-' || r == '_' {
			if !prevSep && b.Len() > 0 {
				b.WriteByte('_')
				prevSep = true
			}
			continue
		}
		b.WriteRune(r)
		prevSep = false
	}
	return strings.TrimSuffix(b.String(), "_")
}
