package grading

import "github.com/brainspark/engine/internal/llm"

// gradeSchema is the JSON structure the model must return for one
// grading pass. Validated by the llm layer before it reaches the grader.
var gradeSchema = &llm.Schema{
	Name:        "grade-result",
	Description: "Rubric-based assessment of a student response against a reference answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"percentage": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"maximum":     100,
				"description": "Overall score as a percentage of full marks",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "Grader's confidence in this assessment",
			},
			"feedback": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{"type": "string"},
					"whatWasRight": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"whatWasMissing": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"misconceptions": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"suggestions": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []any{"summary", "whatWasRight", "whatWasMissing", "misconceptions", "suggestions"},
			},
			"rubricScores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"criterion": map[string]any{"type": "string"},
						"score":     map[string]any{"type": "integer", "minimum": 0},
						"maxScore":  map[string]any{"type": "integer", "minimum": 1},
						"feedback":  map[string]any{"type": "string"},
					},
					"required": []any{"criterion", "score", "maxScore"},
				},
			},
		},
		"required": []any{"percentage", "confidence", "feedback", "rubricScores"},
	},
}
