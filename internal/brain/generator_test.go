package brain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/llm"
)

func TestIsGreeting(t *testing.T) {
	gen := NewGenerator(llm.NewMockClient(nil), DefaultSchemaContext(), 6, true)

	greetings := []string{"hi", "Hi", "HI", "hello", "Hello!", "hey", "hey?", "yo", "  hi  ", "hi!!"}
	for _, q := range greetings {
		if !gen.IsGreeting(q) {
			t.Errorf("IsGreeting(%q) = false, want true", q)
		}
	}

	notGreetings := []string{"hi there", "hello, show me sales", "high inventory", "history", "heyday", "show me top products"}
	for _, q := range notGreetings {
		if gen.IsGreeting(q) {
			t.Errorf("IsGreeting(%q) = true, want false", q)
		}
	}
}

func TestGenerateGreetingSkipsProvider(t *testing.T) {
	called := false
	client := llm.NewMockClient(func(llm.Request) (string, error) {
		called = true
		return "SELECT 1", nil
	})
	gen := NewGenerator(client, DefaultSchemaContext(), 6, true)

	got, err := gen.Generate(context.Background(), "Hello!", []conversation.Turn{
		{Role: conversation.RoleUser, Content: "earlier question"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Kind != KindGreeting {
		t.Fatalf("Kind = %q, want %q", got.Kind, KindGreeting)
	}
	if called {
		t.Fatalf("provider was called for a greeting")
	}
}

func TestGeneratePromptContainsContext(t *testing.T) {
	var captured llm.Request
	client := llm.NewMockClient(func(req llm.Request) (string, error) {
		captured = req
		return "SELECT product_name FROM Dim_Product LIMIT 5", nil
	})
	gen := NewGenerator(client, DefaultSchemaContext(), 6, true)

	history := make([]conversation.Turn, 0, 10)
	for i := 0; i < 5; i++ {
		history = append(history,
			conversation.Turn{Role: conversation.RoleUser, Content: "question " + string(rune('0'+i)), CreatedAt: time.Now()},
			conversation.Turn{Role: conversation.RoleAssistant, Content: "answer " + string(rune('0'+i)), CreatedAt: time.Now()},
		)
	}

	got, err := gen.Generate(context.Background(), "Which of those sold best?", history)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Kind != KindStatement {
		t.Fatalf("Kind = %q, want %q", got.Kind, KindStatement)
	}

	if !strings.Contains(captured.System, "Fact_Sales") {
		t.Errorf("system prompt missing schema block")
	}
	if !strings.Contains(captured.System, "date_key is always NULL") {
		t.Errorf("system prompt missing query rules")
	}
	if captured.MaxTokens != generatorMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", captured.MaxTokens, generatorMaxTokens)
	}

	prompt := captured.Messages[0].Content
	if !strings.Contains(prompt, `LATEST USER QUESTION: "Which of those sold best?"`) {
		t.Errorf("prompt missing verbatim question:\n%s", prompt)
	}
	// Only the last 6 turns make it into the window.
	if strings.Contains(prompt, "question 1") {
		t.Errorf("prompt contains turn outside the history window")
	}
	if !strings.Contains(prompt, "Previous User Question: question 2") {
		t.Errorf("prompt missing oldest in-window turn:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Previous AI Response: answer 4") {
		t.Errorf("prompt missing newest assistant turn:\n%s", prompt)
	}
}

func TestGenerateEmptyHistoryMarker(t *testing.T) {
	var captured llm.Request
	client := llm.NewMockClient(func(req llm.Request) (string, error) {
		captured = req
		return "SELECT 1", nil
	})
	gen := NewGenerator(client, DefaultSchemaContext(), 6, true)

	if _, err := gen.Generate(context.Background(), "What is our fill rate?", nil); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(captured.Messages[0].Content, "This is the beginning of the conversation.") {
		t.Errorf("prompt missing empty-history marker")
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	client := llm.NewMockClient(func(llm.Request) (string, error) {
		return "", errors.New("401 authentication_error")
	})
	gen := NewGenerator(client, DefaultSchemaContext(), 6, true)

	_, err := gen.Generate(context.Background(), "What is our fill rate?", nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("error = %v, want ErrGenerationFailed", err)
	}
}

func TestGeneratePropagatesValidation(t *testing.T) {
	client := llm.NewMockClient(func(llm.Request) (string, error) {
		return "DROP TABLE Fact_Sales", nil
	})
	gen := NewGenerator(client, DefaultSchemaContext(), 6, true)

	_, err := gen.Generate(context.Background(), "Please delete everything", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
}
