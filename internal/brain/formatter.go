package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/llm"
	"github.com/filflo/brain/internal/warehouse"
)

const formatterMaxTokens = 1000

// FormatKind tags a formatting outcome.
type FormatKind string

const (
	FormatNarration FormatKind = "narration"
	FormatFallback  FormatKind = "fallback"
)

// FormatResult is the explicit tagged result of the narration step: either
// narration text or an error detail, never an ambiguous shape.
type FormatResult struct {
	Kind   FormatKind
	Text   string
	Detail string
}

// Formatter narrates query results as a business-oriented explanation via a
// second text-generation call. It never fails the pipeline: provider errors
// degrade to a deterministic templated narration.
type Formatter struct {
	client        llm.Client
	schema        SchemaContext
	previewRows   int
	historyWindow int
	log           zerolog.Logger
}

func NewFormatter(client llm.Client, schema SchemaContext, previewRows, historyWindow int, log zerolog.Logger) *Formatter {
	if previewRows <= 0 {
		previewRows = 10
	}
	if historyWindow <= 0 {
		historyWindow = 6
	}
	return &Formatter{
		client:        client,
		schema:        schema,
		previewRows:   previewRows,
		historyWindow: historyWindow,
		log:           log,
	}
}

// Format narrates results for the original question. Only a capped preview
// of the rows is serialized into the prompt; the caller still returns the
// full result set to the client.
func (f *Formatter) Format(ctx context.Context, results []warehouse.Row, question string, history []conversation.Turn) FormatResult {
	text, err := f.client.Complete(ctx, llm.Request{
		System:    f.schema.FormatterSystem(),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: f.renderPrompt(results, question, history)}},
		MaxTokens: formatterMaxTokens,
	})
	if err != nil {
		f.log.Warn().Err(err).Msg("narration call failed, using templated fallback")
		return FormatResult{Kind: FormatFallback, Text: fallbackNarration(len(results), question), Detail: err.Error()}
	}
	return FormatResult{Kind: FormatNarration, Text: text}
}

func (f *Formatter) renderPrompt(results []warehouse.Row, question string, history []conversation.Turn) string {
	preview := results
	if len(preview) > f.previewRows {
		preview = preview[:f.previewRows]
	}
	previewJSON, err := json.MarshalIndent(preview, "", " ")
	if err != nil {
		previewJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("CONVERSATION HISTORY:\n")
	b.WriteString(renderHistory(history, f.historyWindow))
	b.WriteString("\n\nLATEST USER QUESTION: \"")
	b.WriteString(question)
	b.WriteString("\"\n\nDATA ANALYSIS:\n")
	fmt.Fprintf(&b, "I found %d records. Here's a sample of what that data looks like:\n", len(results))
	b.Write(previewJSON)
	b.WriteString("\n\nYOUR TASK:\n")
	b.WriteString("1. Start with a clear, direct answer to the question.\n")
	b.WriteString("2. Explain the key observations from the data conversationally.\n")
	b.WriteString("3. Explain the operational impact for the warehouse.\n")
	b.WriteString("4. End with a relevant follow-up question to keep the conversation going.\n")
	return b.String()
}

// fallbackNarration is the deterministic degraded response computed purely
// from the row count and the question.
func fallbackNarration(rowCount int, question string) string {
	if rowCount == 0 {
		return fmt.Sprintf("I couldn't find any data matching %q. "+
			"Try rephrasing the question or asking about a different product, customer, or order status.", question)
	}
	plural := "records"
	if rowCount == 1 {
		plural = "record"
	}
	return fmt.Sprintf("I found %d %s for %q. "+
		"The full results are attached below; I couldn't generate a narrative summary right now.", rowCount, plural, question)
}
