package assist

import (
	"strings"
	"testing"

	"github.com/kalambet/peerfuse/internal/engine"
)

func TestPromptsCarryTopic(t *testing.T) {
	tests := []struct {
		name string
		msgs []string
		want []string
	}{
		{"notes", contents(notesPrompt("binary search")), []string{`"binary search"`, "bullet point"}},
		{"flashcards", contents(flashcardsPrompt("binary search", 5)), []string{"5 flashcard", "ONLY a single valid JSON"}},
		{"quiz", contents(quizPrompt("binary search")), []string{"EASY", "MEDIUM", "HARD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := strings.Join(tt.msgs, "\n")
			for _, w := range tt.want {
				if !strings.Contains(all, w) {
					t.Errorf("prompt missing %q:\n%s", w, all)
				}
			}
		})
	}
}

func contents(msgs []engine.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
