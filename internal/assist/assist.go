// Package assist generates study material with a text-generation engine:
// match explanations, beginner notes, flashcards and short quizzes.
// Matching never depends on it; every failure is returned to the caller
// for display as plain text.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kalambet/peerfuse/internal/engine"
	"github.com/kalambet/peerfuse/internal/profile"
)

// ErrUnavailable is returned when no engine is configured.
var ErrUnavailable = errors.New("AI unavailable: configure a text generation provider to enable study tools")

// ErrEmptyTopic is returned for a blank topic.
var ErrEmptyTopic = errors.New("topic is required")

const (
	DefaultTimeout  = 60 * time.Second
	DefaultCacheTTL = 30 * time.Minute
	cacheSize       = 256
	flashcardCount  = 5
)

// Quiz difficulty levels, in the order questions are returned.
const (
	LevelEasy   = "EASY"
	LevelMedium = "MEDIUM"
	LevelHard   = "HARD"
)

// Card is one flashcard.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Question is one quiz question.
type Question struct {
	Level    string `json:"level"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Options configures an Assistant.
type Options struct {
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Assistant produces study material. Generated results are cached per
// kind and topic so repeated requests do not hit the engine.
type Assistant struct {
	engine  engine.Engine
	model   string
	timeout time.Duration
	logger  *slog.Logger
	cache   *expirable.LRU[string, string]
}

// New creates an Assistant. A nil engine yields an Assistant whose every
// call returns ErrUnavailable.
func New(e engine.Engine, opts Options) *Assistant {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Assistant{
		engine:  e,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		cache:   expirable.NewLRU[string, string](cacheSize, nil, opts.CacheTTL),
	}
}

// Available reports whether an engine is configured.
func (a *Assistant) Available() bool {
	return a != nil && a.engine != nil
}

// ExplainMatch returns a two-sentence explanation of why x and y complement
// each other.
func (a *Assistant) ExplainMatch(ctx context.Context, x, y profile.Profile) (string, error) {
	key := "explain\x00" + strings.ToLower(x.Name) + "\x00" + strings.ToLower(y.Name) +
		"\x00" + strings.Join(x.Strengths, ",") + "\x00" + strings.Join(x.Weaknesses, ",") +
		"\x00" + strings.Join(y.Strengths, ",") + "\x00" + strings.Join(y.Weaknesses, ",")
	return a.generate(ctx, key, explainPrompt(x, y), nil)
}

// Notes returns beginner-friendly bullet notes on topic.
func (a *Assistant) Notes(ctx context.Context, topic string) (string, error) {
	topic, err := cleanTopic(topic)
	if err != nil {
		return "", err
	}
	return a.generate(ctx, "notes\x00"+strings.ToLower(topic), notesPrompt(topic), nil)
}

// Flashcards returns question and answer cards on topic.
func (a *Assistant) Flashcards(ctx context.Context, topic string) ([]Card, error) {
	topic, err := cleanTopic(topic)
	if err != nil {
		return nil, err
	}
	raw, err := a.generate(ctx, "flashcards\x00"+strings.ToLower(topic), flashcardsPrompt(topic, flashcardCount), flashcardsSchema())
	if err != nil {
		return nil, err
	}
	var out struct {
		Cards []Card `json:"cards"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		a.forget("flashcards\x00" + strings.ToLower(topic))
		return nil, fmt.Errorf("decoding flashcards: %w", err)
	}
	cards := out.Cards[:0]
	for _, c := range out.Cards {
		c.Question = strings.TrimSpace(c.Question)
		c.Answer = strings.TrimSpace(c.Answer)
		if c.Question != "" {
			cards = append(cards, c)
		}
	}
	if len(cards) == 0 {
		a.forget("flashcards\x00" + strings.ToLower(topic))
		return nil, fmt.Errorf("no flashcards generated for %q", topic)
	}
	return cards, nil
}

// Quiz returns three questions on topic ordered EASY, MEDIUM, HARD.
func (a *Assistant) Quiz(ctx context.Context, topic string) ([]Question, error) {
	topic, err := cleanTopic(topic)
	if err != nil {
		return nil, err
	}
	key := "quiz\x00" + strings.ToLower(topic)
	raw, err := a.generate(ctx, key, quizPrompt(topic), quizSchema())
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []Question `json:"questions"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		a.forget(key)
		return nil, fmt.Errorf("decoding quiz: %w", err)
	}
	qs := orderByLevel(out.Questions)
	if len(qs) == 0 {
		a.forget(key)
		return nil, fmt.Errorf("no quiz questions generated for %q", topic)
	}
	return qs, nil
}

func (a *Assistant) generate(ctx context.Context, key string, msgs []engine.Message, schema *engine.Schema) (string, error) {
	if !a.Available() {
		return "", ErrUnavailable
	}
	if v, ok := a.cache.Get(key); ok {
		return v, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	out, err := a.engine.Chat(ctx, a.model, msgs, schema)
	if err != nil {
		a.logger.Warn("study assistant request failed", "model", a.model, "error", err)
		return "", fmt.Errorf("generating response: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generating response: empty reply from model %s", a.model)
	}
	a.logger.Debug("study assistant response", "model", a.model, "took", time.Since(start))
	a.cache.Add(key, out)
	return out, nil
}

func (a *Assistant) forget(key string) {
	a.cache.Remove(key)
}

func cleanTopic(topic string) (string, error) {
	topic = strings.Join(strings.Fields(topic), " ")
	if topic == "" {
		return "", ErrEmptyTopic
	}
	return topic, nil
}

// decodeJSON unmarshals the first JSON object in raw, tolerating code
// fences and prose around it.
func decodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

// orderByLevel normalizes levels and returns questions sorted EASY, MEDIUM,
// HARD, keeping the model's order within a level. Unknown levels sort last.
func orderByLevel(qs []Question) []Question {
	rank := map[string]int{LevelEasy: 0, LevelMedium: 1, LevelHard: 2}
	buckets := make([][]Question, 4)
	for _, q := range qs {
		q.Level = strings.ToUpper(strings.Trim(strings.TrimSpace(q.Level), "[]"))
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Question == "" {
			continue
		}
		r, ok := rank[q.Level]
		if !ok {
			r = 3
		}
		buckets[r] = append(buckets[r], q)
	}
	var out []Question
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}
