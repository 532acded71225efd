package render

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// HTML renders markdown to sanitized HTML for transcripts.
type HTML struct {
	policy *bluemonday.Policy
}

func NewHTML() *HTML {
	return &HTML{policy: bluemonday.UGCPolicy()}
}

// Render converts markdown to HTML. Newlines are hard breaks and the
// common GitHub-style extensions are on. width is ignored.
func (h *HTML) Render(markdown string, _ int) (string, error) {
	out := blackfriday.Run(
		[]byte(NeutralizeMarkup(markdown)),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak),
	)
	return strings.TrimSpace(string(h.policy.SanitizeBytes(out))), nil
}

// PlainHTML escapes text for literal display inside HTML, keeping line breaks.
func PlainHTML(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>\n")
}
