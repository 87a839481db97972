package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labcentral/labcentral/internal/model"
)

// ListQuestions returns the active questions of an exercise.
func (c *Client) ListQuestions(ctx context.Context, exerciseID int64) ([]model.Question, error) {
	var out []model.Question
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d/questions", exerciseID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateQuestion adds a question and returns its id.
func (c *Client) CreateQuestion(ctx context.Context, exerciseID int64, p model.QuestionPayload) (int64, error) {
	var out struct {
		QuestionID int64 `json:"question_id"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/exercise/%d/questions", exerciseID), p, &out); err != nil {
		return 0, err
	}
	return out.QuestionID, nil
}

// UpdateQuestion replaces the editable fields of a question.
func (c *Client) UpdateQuestion(ctx context.Context, exerciseID, questionID int64, p model.QuestionPayload) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/exercise/%d/question/%d", exerciseID, questionID), p, nil)
}

// DeleteQuestion removes a question.
func (c *Client) DeleteQuestion(ctx context.Context, exerciseID, questionID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/exercise/%d/question/%d", exerciseID, questionID), nil, nil)
}

// SubmitAnswer records the session user's answer to a question.
func (c *Client) SubmitAnswer(ctx context.Context, exerciseID, questionID int64, text string) error {
	in := map[string]string{"answer_text": text}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/exercise/%d/question/%d/answer", exerciseID, questionID), in, nil)
}

// MyAnswers returns the session user's answers keyed by question id.
func (c *Client) MyAnswers(ctx context.Context, exerciseID int64) (map[int64]model.Answer, error) {
	out := map[int64]model.Answer{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d/my_answers", exerciseID), nil, &out); err != nil {
		return nil, err
	}
	for qid, a := range out {
		a.QuestionID = qid
		out[qid] = a
	}
	return out, nil
}

// MyGroupScores returns the answers of the session user's group keyed by question id.
func (c *Client) MyGroupScores(ctx context.Context, exerciseID int64) (map[int64]model.GroupAnswer, error) {
	out := map[int64]model.GroupAnswer{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d/my_group_scores", exerciseID), nil, &out); err != nil {
		return nil, err
	}
	for qid, a := range out {
		a.QuestionID = qid
		out[qid] = a
	}
	return out, nil
}
