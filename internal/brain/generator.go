package brain

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/llm"
)

// Greetings start a fresh exchange: the generator short-circuits with the
// greeting sentinel instead of synthesizing SQL, and callers honoring
// ResetOnGreeting discard any existing history for the user.
var greetingPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|yo)[.!?]*$`)

const generatorMaxTokens = 800

// Generator turns a natural-language question plus conversation context into
// validated read-only SQL via one text-generation call.
type Generator struct {
	client        llm.Client
	schema        SchemaContext
	historyWindow int

	// ResetOnGreeting controls the fresh-start policy: when a greeting is
	// detected, the caller should clear the user's history for this turn.
	ResetOnGreeting bool
}

func NewGenerator(client llm.Client, schema SchemaContext, historyWindow int, resetOnGreeting bool) *Generator {
	if historyWindow <= 0 {
		historyWindow = 6
	}
	return &Generator{
		client:          client,
		schema:          schema,
		historyWindow:   historyWindow,
		ResetOnGreeting: resetOnGreeting,
	}
}

// IsGreeting reports whether the trimmed question is a bare greeting.
func (g *Generator) IsGreeting(question string) bool {
	return greetingPattern.MatchString(strings.TrimSpace(question))
}

// Generate produces the tri-state generation result. Greetings never reach
// the provider; everything else is one completion passed through ValidateSQL.
func (g *Generator) Generate(ctx context.Context, question string, history []conversation.Turn) (GeneratedSQL, error) {
	if g.IsGreeting(question) {
		return GeneratedSQL{Kind: KindGreeting}, nil
	}

	prompt := g.renderPrompt(question, history)
	text, err := g.client.Complete(ctx, llm.Request{
		System:    g.schema.GeneratorSystem(),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: generatorMaxTokens,
	})
	if err != nil {
		return GeneratedSQL{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	return ValidateSQL(text)
}

func (g *Generator) renderPrompt(question string, history []conversation.Turn) string {
	var b strings.Builder
	b.WriteString("CONVERSATION HISTORY:\n")
	b.WriteString(renderHistory(history, g.historyWindow))
	b.WriteString("\n\nLATEST USER QUESTION: \"")
	b.WriteString(question)
	b.WriteString("\"\n\n")
	b.WriteString("Analyze the full conversation history; the question may be a follow-up. ")
	b.WriteString("Write one comprehensive query that answers the latest question.\n\nSQL query:")
	return b.String()
}

func renderHistory(history []conversation.Turn, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) == 0 {
		return "This is the beginning of the conversation."
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case conversation.RoleUser:
			lines = append(lines, "Previous User Question: "+turn.Content)
		case conversation.RoleAssistant:
			lines = append(lines, "Previous AI Response: "+turn.Content)
		}
	}
	return strings.Join(lines, "\n")
}
