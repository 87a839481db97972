package model

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoChoices is returned when a multiple-choice question has no options stored.
var ErrNoChoices = errors.New("question has no choices")

// Choice is one option of a multiple-choice question.
type Choice struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// EncodeChoices renders choices the way the backend stores them.
func EncodeChoices(choices []Choice) (string, error) {
	if choices == nil {
		choices = []Choice{}
	}
	b, err := json.Marshal(choices)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseChoices decodes a stored choices value.
func ParseChoices(raw string) ([]Choice, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoChoices
	}
	var choices []Choice
	if err := json.Unmarshal([]byte(raw), &choices); err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		return nil, ErrNoChoices
	}
	return choices, nil
}
