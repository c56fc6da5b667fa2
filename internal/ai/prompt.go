package ai

import (
	"fmt"
	"strings"

	"github.com/quizforge/quiz-service/internal/grading"
)

const systemPrompt = "You are an exam evaluator. Grade the student's answer " +
	"against the model answer fairly and consistently, awarding partial credit " +
	"where it is deserved. Respond only with the JSON object requested."

func buildPrompt(q grading.Question, studentAnswer string) string {
	var sb strings.Builder
	sb.WriteString("QUESTION: " + q.Text + "\n\n")

	if len(q.Options) > 0 {
		sb.WriteString("OPTIONS:\n")
		for i, opt := range q.Options {
			fmt.Fprintf(&sb, "%c) %s\n", 'A'+i, opt)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("MODEL ANSWER (not shown to student):\n" + q.Answer + "\n\n")
	sb.WriteString("STUDENT ANSWER:\n" + studentAnswer + "\n\n")
	fmt.Fprintf(&sb, "MAX MARKS: %g\n\n", q.MaxMarks())

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- Compare the student answer with the model answer for correctness and completeness.\n")
	sb.WriteString("- marks may be fractional, from 0 to MAX MARKS.\n")
	sb.WriteString("- isCorrect is true only when the answer deserves full or near-full marks.\n")
	sb.WriteString("- List the key points the student covered and the ones they missed.\n")
	sb.WriteString("\nRespond ONLY with a JSON object with these fields:\n")
	sb.WriteString(`{"isCorrect": <true/false>, "marks": <number 0 to MAX MARKS>, "confidence": <number 0 to 1>, "feedback": "<brief feedback>", "keyPointsFound": ["..."], "keyPointsMissing": ["..."]}`)
	sb.WriteString("\n")

	return sb.String()
}
