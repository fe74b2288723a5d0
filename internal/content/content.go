package content

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	policy   = bluemonday.UGCPolicy()
	markdown = goldmark.New()
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is used for user-supplied plaintext like group chat names and media
// captions. Encrypted message bodies are never sanitized: they are opaque
// ciphertext passed through untouched.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// RenderMarkdown converts assistant-generated markdown to sanitized HTML.
// Assistant replies are the only plaintext messages in the system, so they
// are the only content rendered server-side.
func RenderMarkdown(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}
