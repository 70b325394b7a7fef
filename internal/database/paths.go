package database

import (
	"os"
	"strings"
	"unicode/utf8"
)

// Separator is the single separator stored in normalized paths.
const Separator = string(os.PathSeparator)

// NormalizePath converts both slash styles to Separator, collapses repeated
// separators and strips trailing ones. The root ("/") and the leading double
// separator of a network share path are kept.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}

	p = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return os.PathSeparator
		}
		return r
	}, p)

	unc := strings.HasPrefix(p, Separator+Separator)

	var b strings.Builder
	b.Grow(len(p))
	prevSep := false
	for _, r := range p {
		isSep := r == os.PathSeparator
		if isSep && prevSep {
			continue
		}
		b.WriteRune(r)
		prevSep = isSep
	}
	out := strings.TrimRight(b.String(), Separator)

	switch {
	case unc && out != "":
		return Separator + out
	case out == "":
		return Separator
	}
	return out
}

// PathKey returns the case-folded normalized form used for lookups.
func PathKey(p string) string {
	return strings.ToLower(NormalizePath(p))
}

// ParentPath returns the normalized parent of p, or "" when p has none
// (filesystem root, drive root, share host).
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "" || p == Separator {
		return ""
	}

	idx := strings.LastIndex(p, Separator)
	switch {
	case idx < 0:
		return ""
	case idx == 0:
		return Separator
	case idx == 1 && strings.HasPrefix(p, Separator+Separator):
		return ""
	}
	return p[:idx]
}

// BaseName returns the last element of p.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == Separator {
		return p
	}
	if idx := strings.LastIndex(p, Separator); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// JoinPath appends name to a normalized folder path.
func JoinPath(folder, name string) string {
	folder = NormalizePath(folder)
	if folder == "" {
		return name
	}
	return prefixOf(folder) + name
}

// IsUnder reports whether p equals ancestor or lies below it. The character
// after the ancestor prefix must be a separator, so /data never matches
// /database.
func IsUnder(p, ancestor string) bool {
	pk, ak := PathKey(p), PathKey(ancestor)
	if pk == "" || ak == "" {
		return false
	}
	return pk == ak || strings.HasPrefix(pk, prefixOf(ak))
}

// prefixOf returns key with exactly one trailing separator.
func prefixOf(key string) string {
	if strings.HasSuffix(key, Separator) {
		return key
	}
	return key + Separator
}

// prefixArgs returns the arguments for a "path_key = ? OR substr(path_key, 1, ?) = ?"
// filter. SQLite substr counts characters, not bytes.
func prefixArgs(key string) (string, int, string) {
	prefix := prefixOf(key)
	return key, utf8.RuneCountInString(prefix), prefix
}
