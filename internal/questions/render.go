package questions

import (
	"errors"

	"github.com/labcentral/labcentral/internal/model"
)

// Notice message IDs returned by RenderChoices when there is nothing to show.
const (
	NoticeNoChoices      = "ChoicesMissing"
	NoticeInvalidChoices = "ChoicesInvalid"
)

// Option is one displayable choice.
type Option struct {
	ID      int
	Label   string
	Correct bool // only set for admins
}

// RenderChoices turns the stored choices of q into display options. When
// they cannot be shown it returns a notice message ID instead.
func RenderChoices(q model.Question, isAdmin bool) ([]Option, string) {
	choices, err := model.ParseChoices(q.Choices)
	if errors.Is(err, model.ErrNoChoices) {
		return nil, NoticeNoChoices
	}
	if err != nil {
		return nil, NoticeInvalidChoices
	}
	out := make([]Option, 0, len(choices))
	for _, c := range choices {
		opt := Option{ID: c.ID, Label: c.Text}
		if isAdmin && c.Correct {
			opt.Label += CorrectMarker
			opt.Correct = true
		}
		out = append(out, opt)
	}
	return out, ""
}
