// Package mailer delivers transactional email through a provider chosen at
// configuration time. Callers depend only on the Mailer interface.
package mailer

import (
	"context"
	"sort"
	"strings"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// RenderTemplate substitutes every {name} placeholder that has an entry in
// vars. Placeholders without an entry are left untouched.
func RenderTemplate(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// PlainText strips tags from an HTML body for the text/plain part.
func PlainText(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
