package assist

import (
	"fmt"
	"strings"

	"github.com/kalambet/peerfuse/internal/engine"
	"github.com/kalambet/peerfuse/internal/profile"
)

const systemPrompt = `You are a friendly study assistant for university students. Use plain language a beginner can follow. Do not use markdown headings.`

const jsonRule = `Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.`

func explainPrompt(a, b profile.Profile) []engine.Message {
	var sb strings.Builder
	sb.WriteString("Two students were matched based on complementary strengths and weaknesses.\n\n")
	fmt.Fprintf(&sb, "Student A (%s): Strengths: %s | Weaknesses: %s\n", a.Name, strings.Join(a.Strengths, ", "), strings.Join(a.Weaknesses, ", "))
	fmt.Fprintf(&sb, "Student B (%s): Strengths: %s | Weaknesses: %s\n\n", b.Name, strings.Join(b.Strengths, ", "), strings.Join(b.Weaknesses, ", "))
	sb.WriteString("In two short sentences, explain why these two students would complement each other as study partners.")
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func notesPrompt(topic string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Explain the topic %q in simple, beginner-friendly bullet point notes. Keep each point short. Start every point with \"- \".", topic)},
	}
}

func flashcardsPrompt(topic string, n int) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt + "\n\n" + jsonRule},
		{Role: "user", Content: fmt.Sprintf("Create %d flashcard question and answer pairs for the topic %q.", n, topic)},
	}
}

func quizPrompt(topic string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt + "\n\n" + jsonRule},
		{Role: "user", Content: fmt.Sprintf("Create a short quiz for the topic %q with 3 questions at different difficulty levels: one EASY, one MEDIUM and one HARD, in that order. Give the answer to each.", topic)},
	}
}

func flashcardsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]*engine.Schema{
			"cards": {
				Type: "array",
				Items: &engine.Schema{
					Type: "object",
					Properties: map[string]*engine.Schema{
						"question": {Type: "string"},
						"answer":   {Type: "string"},
					},
					Required: []string{"question", "answer"},
				},
			},
		},
		Required: []string{"cards"},
	}
}

func quizSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]*engine.Schema{
			"questions": {
				Type: "array",
				Items: &engine.Schema{
					Type: "object",
					Properties: map[string]*engine.Schema{
						"level":    {Type: "string", Description: "One of: EASY, MEDIUM, HARD"},
						"question": {Type: "string"},
						"answer":   {Type: "string"},
					},
					Required: []string{"level", "question", "answer"},
				},
			},
		},
		Required: []string{"questions"},
	}
}
