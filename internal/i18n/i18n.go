// Package i18n localizes user-facing text. Spanish is the default language.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLang is used when no preference or header selects a language.
const DefaultLang = "es"

// Supported lists the languages with a locale file.
var Supported = []string{"es", "en"}

type ctxKey struct{}

var bundle atomic.Pointer[i18n.Bundle]

// Init builds the message bundle from the embedded locale files. lang is the
// bundle's fallback language. Calling Init again replaces the bundle.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, l := range Supported {
		name := "locales/" + l + ".json"
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read locale %s: %w", l, err)
		}
		if _, err := b.ParseMessageFileBytes(data, name); err != nil {
			return fmt.Errorf("parse locale %s: %w", l, err)
		}
	}
	bundle.Store(b)
	slog.Debug("locales loaded", "default", tag.String(), "languages", Supported)
	return nil
}

// Normalize returns lang when it is supported, DefaultLang otherwise.
func Normalize(lang string) string {
	for _, s := range Supported {
		if lang == s {
			return s
		}
	}
	return DefaultLang
}

// NewLocalizer creates a localizer for the given languages in preference
// order. Entries may be Accept-Language values.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle.Load(), append(langs, DefaultLang)...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFrom(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return NewLocalizer()
}

// localize falls back to the message ID so a missing key shows up on screen
// instead of blanking the page.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	s, err := localizerFrom(ctx).Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message. The count is available to the
// message as {{.Count}}.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}
