package model

import "time"

// GradingExport is the top-level JSON structure for a grading sheet export.
type GradingExport struct {
	ExerciseID int64                 `json:"exercise_id"`
	Title      string                `json:"title"`
	ExportedAt time.Time             `json:"exported_at"`
	MaxScore   float64               `json:"max_score"`
	Students   []StudentResult       `json:"students"`
	Groups     []GroupAnswerRow      `json:"group_answers"`
	Ungraded   int                   `json:"ungraded"`
	Answers    []IndividualAnswerRow `json:"individual_answers"`
}

// StudentResult aggregates one student's graded answers.
type StudentResult struct {
	Email    string  `json:"email"`
	Answered int     `json:"answered"`
	Graded   int     `json:"graded"`
	Score    float64 `json:"score"`
}
