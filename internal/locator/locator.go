// Package locator builds the canonical external address of a snippet.
//
// A locator is the creation base address followed by the snippet name as a
// single, fully percent-encoded path segment:
//
//	Build("http://localhost:8080/snippets/", "a&b") → "http://localhost:8080/snippets/a%26b"
//
// Only the RFC 3986 unreserved characters (ALPHA / DIGIT / "-" / "." / "_" /
// "~") are left as-is. Everything else, including "/", "?", "#", "&", "+" and
// "%", is encoded byte by byte from its UTF-8 form, so the result is always
// exactly one path segment whatever the name contains.
package locator

import "strings"

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes every byte of name outside the unreserved set.
func Escape(name string) string {
	n := 0
	for i := 0; i < len(name); i++ {
		if !unreserved(name[i]) {
			n++
		}
	}
	if n == 0 {
		return name
	}

	var b strings.Builder
	b.Grow(len(name) + 2*n)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

// Build joins base and the escaped name. A missing trailing slash on base is
// added so the name always lands in its own segment.
func Build(base, name string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + Escape(name)
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
