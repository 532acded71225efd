// Package render turns message text into display output.
//
// Formatted content goes through a Renderer after NeutralizeMarkup has
// escaped any raw tags in it. Everything else goes through Plain.
package render

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Renderer renders lightweight markup to display output.
type Renderer interface {
	Render(markdown string, width int) (string, error)
}

// Plain returns text safe to show literally in a terminal: escape
// sequences and control characters other than newline and tab are removed.
func Plain(text string) string {
	text = ansi.Strip(text)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		case r >= 0x80 && r <= 0x9f:
			return -1
		}
		return r
	}, text)
}

// NeutralizeMarkup escapes raw tag openers so a markdown renderer shows
// them as text. Fenced code blocks and inline code spans are left alone
// because renderers already treat their contents literally.
func NeutralizeMarkup(src string) string {
	var sb strings.Builder
	sb.Grow(len(src) + len(src)/8)

	var fence string
	for _, line := range strings.SplitAfter(src, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(marker, fence):
				fence = ""
			}
			sb.WriteString(line)
			continue
		}
		if fence != "" {
			sb.WriteString(line)
			continue
		}
		escapeLine(&sb, line)
	}
	return sb.String()
}

func fenceMarker(line string) string {
	for _, ch := range []byte{'`', '~'} {
		n := 0
		for n < len(line) && line[n] == ch {
			n++
		}
		if n >= 3 {
			return line[:n]
		}
	}
	return ""
}

func escapeLine(sb *strings.Builder, line string) {
	for i := 0; i < len(line); {
		switch c := line[i]; {
		case c == '`':
			n := runLength(line, i, '`')
			if end := closingRun(line, i+n, n); end >= 0 {
				sb.WriteString(line[i:end])
				i = end
				continue
			}
			sb.WriteString(line[i : i+n])
			i += n
		case c == '<' && i+1 < len(line) && opensTag(line[i+1]):
			sb.WriteString("&lt;")
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
}

func runLength(s string, i int, ch byte) int {
	n := 0
	for i+n < len(s) && s[i+n] == ch {
		n++
	}
	return n
}

// closingRun returns the index just past a backtick run of exactly n
// starting at or after from, or -1.
func closingRun(s string, from, n int) int {
	for i := from; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		m := runLength(s, i, '`')
		if m == n {
			return i + m
		}
		i += m
	}
	return -1
}

func opensTag(c byte) bool {
	return c == '/' || c == '!' || c == '?' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
