package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labcentral/labcentral/internal/model"
)

// GradeMode selects which kind of answer a score patch applies to.
type GradeMode string

const (
	ModeIndividual GradeMode = "individual"
	ModeGroup      GradeMode = "group"
)

// ScorePatch is the body of an answer grading call. A nil Score is sent as
// null and marks the answer ungraded.
type ScorePatch struct {
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback,omitempty"`
}

// AdminAnswers returns every individual and group answer of an exercise.
func (c *Client) AdminAnswers(ctx context.Context, exerciseID int64) (*model.GradingSheet, error) {
	var out model.GradingSheet
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/admin/exercise/%d/answers", exerciseID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchAnswer sets the score and feedback of one answer.
func (c *Client) PatchAnswer(ctx context.Context, mode GradeMode, answerID int64, patch ScorePatch) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/admin/answer/%s/%d", mode, answerID), patch, nil)
}
