// Package answer builds prompts from retrieved chunks and asks chat models to answer them.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
)

// DefaultMaxTokens is the maximum context length before truncation (in tokens).
const DefaultMaxTokens = 6000

// DefaultModels are the Groq-hosted models offered for side-by-side comparison.
var DefaultModels = []string{
	"llama3-8b-8192",
	"gemma2-9b-it",
	"llama-3.1-8b-instant",
}

// ContextSeparator sits between chunks in the prompt context.
const ContextSeparator = "\n---\n"

// ErrEmptyResponse is returned when a completion has no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// ModelAnswer is one model's reply in a comparison.
type ModelAnswer struct {
	Model string
	Text  string
	Err   error
}

// Generator asks OpenAI-compatible chat models to answer prompts.
type Generator struct {
	client    *openai.Client
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a generator. maxTokens <= 0 means DefaultMaxTokens.
func NewGenerator(client *openai.Client, maxTokens int, logger *slog.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// BuildPrompt places chunks, separated by ContextSeparator, ahead of the question.
func BuildPrompt(query string, chunks []string) string {
	return formatPrompt(query, strings.Join(chunks, ContextSeparator))
}

func formatPrompt(query, context string) string {
	return fmt.Sprintf("You are a helpful assistant reading the following document excerpts:\n---\n%s\n---\nAnswer the user's question: \"%s\"\n", context, query)
}

// Prompt is BuildPrompt with the context truncated to the generator's token budget.
func (g *Generator) Prompt(query string, chunks []string) string {
	return formatPrompt(query, g.truncateContent(strings.Join(chunks, ContextSeparator)))
}

// Answer sends prompt to model and returns the first choice's content.
func (g *Generator) Answer(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with %s failed: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", model, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Compare asks every model the same prompt, in order. A failing model does not
// stop the others; its error is recorded in its ModelAnswer.
func (g *Generator) Compare(ctx context.Context, models []string, prompt string) []ModelAnswer {
	answers := make([]ModelAnswer, len(models))
	for i, model := range models {
		text, err := g.Answer(ctx, model, prompt)
		if err != nil {
			g.logger.Warn("Model query failed", "model", model, "error", err)
		}
		answers[i] = ModelAnswer{Model: model, Text: text, Err: err}
	}
	return answers
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}

	g.logger.Warn("Truncating prompt context",
		"from_chars", len(content),
		"to_chars", maxChars,
		"estimated_tokens", g.maxTokens,
	)

	// Back off to a rune boundary.
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
