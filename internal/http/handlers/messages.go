package handlers

import (
	"context"

	"bouquet/internal/middleware"
)

const msgCompositeComplete = "composite_complete"

var messages = map[string]map[string]string{
	msgCompositeComplete: {
		"en": "composite complete",
		"ko": "합성 완료",
	},
}

// localize returns the message for the request locale, falling back to English.
func localize(ctx context.Context, key string) string {
	texts, ok := messages[key]
	if !ok {
		return key
	}
	if text, ok := texts[middleware.LocaleFromContext(ctx)]; ok {
		return text
	}
	return texts["en"]
}
