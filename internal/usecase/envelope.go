package usecase

import (
	"unicode/utf8"

	"telegram-relay-subscription/internal/domain/model"
)

// Telegram limits, counted in characters after entity parsing.
const (
	maxTextRunes    = 4096
	maxCaptionRunes = 1024
)

// envelope renders key with body appended to args and shortens body so the
// message fits the text or caption limit for kind.
func envelope(loc Localizer, kind model.ContentKind, key, body string, args ...interface{}) string {
	limit := maxCaptionRunes
	if kind == model.ContentText {
		limit = maxTextRunes
	}
	render := func(b string) string {
		return loc.T(key, append(append([]interface{}{}, args...), b)...)
	}
	out := render(body)
	if utf8.RuneCountInString(out) <= limit {
		return out
	}
	budget := limit - utf8.RuneCountInString(render(""))
	cut := ""
	if budget > 1 {
		cut = string([]rune(body)[:budget-1]) + "…"
	}
	out = render(cut)
	if r := []rune(out); len(r) > limit {
		out = string(r[:limit])
	}
	return out
}
