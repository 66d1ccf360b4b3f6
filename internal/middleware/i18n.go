package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// Index-aligned with localeCodes.
var (
	supportedLocales = []language.Tag{language.English, language.Korean}
	localeCodes      = []string{"en", "ko"}
	localeMatcher    = language.NewMatcher(supportedLocales)
)

// I18N stores the negotiated locale ("en" or "ko") in the request context.
// X-Locale wins over Accept-Language; defaultLocale applies when neither
// names a supported language.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	fallback, ok := matchLocale(defaultLocale)
	if !ok {
		fallback = "en"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, fallback)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if locale, ok := matchLocale(r.Header.Get("X-Locale")); ok {
		return locale
	}
	if locale, ok := matchLocale(r.Header.Get("Accept-Language")); ok {
		return locale
	}
	return fallback
}

func matchLocale(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	return localeCodes[idx], true
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
