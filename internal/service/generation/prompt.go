package generation

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"lernguide/internal/models"
)

// MaxInlineRunes caps the text of one document inlined into a text-only prompt.
const MaxInlineRunes = 20000

var detailHints = map[models.DetailLevel]string{
	models.DetailOverview: "Keep it short: only the essential points.",
	models.DetailStandard: "Use a balanced level of detail.",
	models.DetailDetailed: "Be thorough and include intermediate reasoning.",
	models.DetailELI5:     "Explain as simply as possible, using everyday language.",
}

var taskFormats = map[Task]string{
	TaskGuide:      `a JSON array of steps: [{"title": string, "content": string}]`,
	TaskSolve:      `a JSON array of solved questions: [{"question": string, "steps": [string], "answer": string}]`,
	TaskConcepts:   `a JSON array of key concepts: [{"term": string, "definition": string}]`,
	TaskFlashcards: `a JSON array of flashcards: [{"front": string, "back": string}]`,
	TaskGradeExam:  `a JSON array of graded answers: [{"question": string, "userAnswer": string, "feedback": string, "correct": boolean}]`,
}

var taskInstructions = map[Task]string{
	TaskGuide:      "Write a step-by-step study guide for the lecture material.",
	TaskSolve:      "Solve every question of the practice sheet step by step using the lecture material.",
	TaskConcepts:   "Extract the key concepts of the lecture material with concise definitions.",
	TaskFlashcards: "Create flashcards that cover the lecture material.",
	TaskGradeExam:  "Grade the student's answers to the practice sheet questions and give short feedback.",
}

// systemPrompt describes the task, the answer format and the user's settings.
func systemPrompt(req *Request) string {
	var b strings.Builder
	b.WriteString("You are a study assistant for university students. ")
	b.WriteString(taskInstructions[req.Task])
	b.WriteString("\nAnswer only with ")
	b.WriteString(taskFormats[req.Task])
	b.WriteString(". Do not wrap the JSON in prose.")
	if hint, ok := detailHints[req.Options.DetailLevel]; ok {
		b.WriteString("\n")
		b.WriteString(hint)
	}
	if req.Options.StrictContext {
		b.WriteString("\nUse only information found in the provided documents.")
	}
	return b.String()
}

// userPrompt lists the attached documents and, for grading, the answers.
func userPrompt(req *Request) (string, error) {
	var b strings.Builder
	b.WriteString("Lecture documents:")
	for _, doc := range req.Documents {
		fmt.Fprintf(&b, "\n- %s (%s)", doc.Name, doc.MimeType)
	}
	if req.Practice != nil {
		fmt.Fprintf(&b, "\nPractice sheet: %s (%s)", req.Practice.Name, req.Practice.MimeType)
	}
	if req.Task == TaskGradeExam {
		answers, err := sonic.MarshalString(req.Answers)
		if err != nil {
			return "", fmt.Errorf("marshal exam answers: %w", err)
		}
		b.WriteString("\nStudent answers:\n")
		b.WriteString(answers)
	}
	return b.String(), nil
}

// textExtractor returns the readable text of a document, or false when the
// document has none the model can use.
type textExtractor func(doc *models.Document) (string, bool)

func rawText(doc *models.Document) (string, bool) {
	if !IsTextual(doc.MimeType) {
		return "", false
	}
	return string(doc.Data), true
}

// buildMessages renders a request as text-only messages. Textual documents are
// inlined; binary documents are referenced by name only.
func buildMessages(req *Request, extract textExtractor) ([]models.Message, error) {
	if extract == nil {
		extract = rawText
	}
	user, err := userPrompt(req)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString(user)
	for _, doc := range req.Documents {
		text, ok := extract(doc)
		writeDocument(&b, "Lecture document", doc.Name, text, ok)
	}
	if req.Practice != nil {
		text, ok := extract(req.Practice)
		writeDocument(&b, "Practice sheet", req.Practice.Name, text, ok)
	}
	return []models.Message{
		{Role: models.RoleSystem, Content: systemPrompt(req)},
		{Role: models.RoleUser, Content: b.String()},
	}, nil
}

func writeDocument(b *strings.Builder, label, name, text string, readable bool) {
	fmt.Fprintf(b, "\n\n=== %s: %s ===\n", label, name)
	if !readable {
		b.WriteString("[binary content not available to this model]")
		return
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > MaxInlineRunes {
		b.WriteString(string(runes[:MaxInlineRunes]))
		b.WriteString("\n[truncated]")
		return
	}
	b.WriteString(string(runes))
}

// IsTextual reports media types whose bytes can be inlined as text.
func IsTextual(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case mt == "application/json", mt == "application/xml", mt == "application/x-markdown":
		return true
	}
	return false
}
