// Package alert turns errors into the single message shown to the user.
package alert

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/labcentral/labcentral/internal/accounts"
	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/exercises"
	"github.com/labcentral/labcentral/internal/grading"
	"github.com/labcentral/labcentral/internal/groups"
	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/lifecycle"
	"github.com/labcentral/labcentral/internal/questions"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/validate"
)

// Generic is the message ID used when nothing more specific applies.
const Generic = "AlertGeneric"

var sentinels = []struct {
	err error
	id  string
}{
	{session.ErrNotAuthenticated, "AlertNotAuthenticated"},
	{session.ErrPasswordChangeRequired, "AlertPasswordChangeRequired"},
	{session.ErrNoPendingPasswordChange, "AlertNoPendingPasswordChange"},
	{session.ErrPasswordMismatch, "AlertPasswordMismatch"},
	{session.ErrBlankPassword, "AlertBlankPassword"},
	{session.ErrBlankToken, "AlertBlankToken"},

	{exercises.ErrAdminOnly, "AlertAdminOnly"},
	{exercises.ErrBlankTitle, "AlertBlankTitle"},
	{exercises.ErrNotZip, "AlertNotZip"},
	{exercises.ErrArchiveTooLarge, "AlertArchiveTooLarge"},

	{lifecycle.ErrBusy, "AlertBusy"},
	{lifecycle.ErrNotRunning, "AlertNotRunning"},
	{lifecycle.ErrReadyTimeout, "AlertReadyTimeout"},

	{questions.ErrBlankAnswer, "AlertBlankAnswer"},
	{questions.ErrAlreadyAnswered, "AlertAlreadyAnswered"},
	{questions.ErrAdminOnly, "AlertAdminOnly"},
	{questions.ErrBlankQuestion, "AlertBlankQuestion"},
	{questions.ErrTooFewChoices, "AlertTooFewChoices"},
	{questions.ErrInvalidType, "AlertInvalidType"},
	{questions.ErrNegativeScore, "AlertNegativeScore"},

	{groups.ErrAlreadyGrouped, "AlertAlreadyGrouped"},
	{groups.ErrNoGroup, "AlertNoGroup"},
	{groups.ErrSelfPartner, "AlertSelfPartner"},

	{grading.ErrInvalidScore, "AlertInvalidScore"},
	{grading.ErrUnknownAnswer, "AlertUnknownAnswer"},
	{grading.ErrNoAssistant, "AlertNoAssistant"},

	{accounts.ErrEmptyQueue, "AlertEmptyQueue"},
	{accounts.ErrDuplicate, "AlertDuplicateUser"},
	{accounts.ErrOutOfRange, "AlertOutOfRange"},
}

// ID returns the message ID for err and, for field errors, its template data.
// It returns "" when the backend message should be shown instead.
func ID(err error) (string, map[string]any) {
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		data := map[string]any{"Field": fieldID(fe.Field)}
		if fe.Rule == "email" {
			return "AlertInvalidEmail", data
		}
		return "AlertRequired", data
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.id, nil
		}
	}
	if _, ok := api.ServerMessage(err); ok {
		return "", nil
	}
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return "AlertNotAuthenticated", nil
	case errors.Is(err, api.ErrNotFound):
		return "AlertNotFound", nil
	case errors.Is(err, context.DeadlineExceeded):
		return "AlertTimeout", nil
	}
	return Generic, nil
}

// Message returns the localized alert for err. Backend messages are shown
// as sent. Unknown errors are logged and replaced by a generic message.
func Message(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}
	id, data := ID(err)
	if id == "" {
		msg, _ := api.ServerMessage(err)
		return msg
	}
	if id == Generic {
		slog.Warn("unmapped error", "error", err)
	}
	if data != nil {
		data["Field"] = appI18n.T(ctx, data["Field"].(string))
		return appI18n.Td(ctx, id, data)
	}
	return appI18n.T(ctx, id)
}

// fieldID maps a json field name like "first_name" to "FieldFirstName".
func fieldID(field string) string {
	var b strings.Builder
	b.WriteString("Field")
	titler := cases.Title(language.Und)
	for _, part := range strings.Split(field, "_") {
		b.WriteString(titler.String(part))
	}
	return b.String()
}
