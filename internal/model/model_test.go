package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAnswerUnmarshalBothForms(t *testing.T) {
	raw := `{"3": "plain text", "4": {"answer_text": "object", "score": 2.5, "feedback": "ok"}}`

	var answers map[int64]Answer
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if answers[3].AnswerText != "plain text" {
		t.Errorf("answers[3] = %+v, want bare text", answers[3])
	}
	a := answers[4]
	if a.AnswerText != "object" || a.Feedback != "ok" {
		t.Errorf("answers[4] = %+v", a)
	}
	if a.Score == nil || *a.Score != 2.5 {
		t.Errorf("answers[4].Score = %v, want 2.5", a.Score)
	}
}

func TestParseBackendStatus(t *testing.T) {
	tests := []struct {
		in   string
		want ContainerStatus
	}{
		{"running", StatusRunning},
		{" Running ", StatusRunning},
		{"stopped", StatusStopped},
		{"not_found", StatusStopped},
		{"", StatusStopped},
		{"exited", StatusStopped},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseBackendStatus(tt.in); got != tt.want {
				t.Errorf("ParseBackendStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		status   ContainerStatus
		canStart bool
		canStop  bool
	}{
		{StatusStopped, true, false},
		{StatusStarting, false, false},
		{StatusRunning, false, true},
		{StatusStopping, false, false},
		{StatusTimedOut, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanStart(); got != tt.canStart {
				t.Errorf("CanStart() = %v, want %v", got, tt.canStart)
			}
			if got := tt.status.CanStop(); got != tt.canStop {
				t.Errorf("CanStop() = %v, want %v", got, tt.canStop)
			}
		})
	}
}

func TestEncodeChoicesMatchesBrowserEncoding(t *testing.T) {
	got, err := EncodeChoices([]Choice{
		{ID: 0, Text: "UNION", Correct: true},
		{ID: 1, Text: "JOIN"},
	})
	if err != nil {
		t.Fatalf("EncodeChoices: %v", err)
	}
	want := `[{"id":0,"text":"UNION","correct":true},{"id":1,"text":"JOIN","correct":false}]`
	if got != want {
		t.Errorf("EncodeChoices = %s, want %s", got, want)
	}
}

func TestParseChoices(t *testing.T) {
	if _, err := ParseChoices(""); !errors.Is(err, ErrNoChoices) {
		t.Errorf("empty: got %v, want ErrNoChoices", err)
	}
	if _, err := ParseChoices("[]"); !errors.Is(err, ErrNoChoices) {
		t.Errorf("empty array: got %v, want ErrNoChoices", err)
	}
	if _, err := ParseChoices("{not json"); err == nil {
		t.Error("malformed: expected error")
	}
	choices, err := ParseChoices(`[{"id":1,"text":"a","correct":true}]`)
	if err != nil {
		t.Fatalf("ParseChoices: %v", err)
	}
	if len(choices) != 1 || !choices[0].Correct {
		t.Errorf("choices = %+v", choices)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (User{Email: "a@b.c"}).DisplayName(); got != "a@b.c" {
		t.Errorf("DisplayName() = %q, want email fallback", got)
	}
	if got := (User{Email: "a@b.c", FirstName: "Ana", LastName: "Paz"}).DisplayName(); got != "Ana Paz" {
		t.Errorf("DisplayName() = %q, want 'Ana Paz'", got)
	}
}
