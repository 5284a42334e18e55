package grading

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/brainspark/engine/internal/content"
)

const standardSystemPrompt = `You are an expert educational assessor. You grade student answers
against a reference answer and rubric, producing specific, constructive
feedback. Acknowledge what the student got right even in weak answers,
name missing concepts precisely, and correct misconceptions gently.
Scoring bands: 80-100 demonstrates clear understanding, 40-79 partial
understanding with gaps, 0-39 significant misunderstanding.`

const strictSystemPrompt = `You are a senior examiner performing a second-pass review of an
ambiguous grading case. Apply the rubric strictly: award marks only for
claims explicitly present in the student's answer, never for implied or
charitable readings. Distinguish restated question text from actual
reasoning. Scoring bands: 80-100 demonstrates clear understanding,
40-79 partial understanding with gaps, 0-39 significant
misunderstanding. State your confidence honestly.`

var gradeMessageTmpl = template.Must(template.New("grade").Parse(`QUESTION ({{.Subject}}, difficulty {{.Difficulty}}/5, {{.QCS}} marks):
"""
{{.Stem}}
"""

REFERENCE ANSWER:
"""
{{.ReferenceAnswer}}
"""
{{if .Rubric}}
RUBRIC:
"""
{{.Rubric}}
"""
{{end}}
STUDENT'S ANSWER:
"""
{{.StudentAnswer}}
"""

Grade the student's answer against the reference{{if .Rubric}} and rubric{{end}}.
Return per-criterion rubric scores that sum consistently with the
overall percentage.`))

type gradePromptData struct {
	*content.Question
	StudentAnswer string
}

func buildGradeMessage(q *content.Question, studentAnswer string) (string, error) {
	var b bytes.Buffer
	err := gradeMessageTmpl.Execute(&b, gradePromptData{Question: q, StudentAnswer: studentAnswer})
	if err != nil {
		return "", fmt.Errorf("build grade prompt: %w", err)
	}
	return b.String(), nil
}
