package brain

import (
	"fmt"
	"regexp"
	"strings"
)

// SQLKind tags the tri-state outcome of generation: a runnable statement, a
// greeting sentinel with no query, or a direct natural-language answer.
type SQLKind string

const (
	KindStatement SQLKind = "statement"
	KindGreeting  SQLKind = "greeting"
	KindDirect    SQLKind = "direct"
)

// GeneratedSQL is the validated output of the SQL generator.
type GeneratedSQL struct {
	Kind SQLKind
	Text string
}

// ValidationError reports why generated text was rejected. This validator is
// a denylist heuristic, not a parser-level guarantee; the warehouse role
// should still be read-only at the engine level.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sql rejected: %s", e.Reason)
}

var fencePattern = regexp.MustCompile("(?i)```sql")

var denylist = []struct {
	pattern *regexp.Regexp
	reason  string
}{
	{regexp.MustCompile(`(?i)\bDROP\s`), "DROP statement"},
	{regexp.MustCompile(`(?i)\bDELETE\s`), "DELETE statement"},
	{regexp.MustCompile(`(?i)\bINSERT\s`), "INSERT statement"},
	{regexp.MustCompile(`(?i)\bUPDATE\s`), "UPDATE statement"},
	{regexp.MustCompile(`(?i)\bCREATE\s`), "CREATE statement"},
	{regexp.MustCompile(`(?i)\bALTER\s`), "ALTER statement"},
	{regexp.MustCompile(`(?i)\bTRUNCATE\s`), "TRUNCATE statement"},
	{regexp.MustCompile(`(?i)\bEXEC\s`), "EXEC statement"},
	{regexp.MustCompile(`(?i)\bEXECUTE\s`), "EXECUTE statement"},
	{regexp.MustCompile(`(?i);\s*DROP`), "stacked DROP"},
	{regexp.MustCompile(`(?i);\s*DELETE`), "stacked DELETE"},
}

var commentMarkers = []struct {
	literal string
	reason  string
}{
	{"--", "inline comment"},
	{"/*", "block comment open"},
	{"*/", "block comment close"},
}

// ValidateSQL sanitizes raw generator output and applies the read-only
// policy filter.
//
// Markdown fences are stripped first. Lines that are pure SQL line comments
// are then dropped to form the executable view; if nothing remains the whole
// cleaned text is a direct natural-language answer and passes through
// untouched. Otherwise the executable view must be free of mutating keywords
// and comment-based injection markers, and must start with SELECT or WITH.
// The returned statement is the cleaned text, not the comment-stripped view.
func ValidateSQL(raw string) (GeneratedSQL, error) {
	cleaned := fencePattern.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	executable := stripCommentLines(cleaned)
	if executable == "" {
		return GeneratedSQL{Kind: KindDirect, Text: cleaned}, nil
	}

	for _, d := range denylist {
		if d.pattern.MatchString(executable) {
			return GeneratedSQL{}, &ValidationError{Reason: d.reason}
		}
	}
	for _, m := range commentMarkers {
		if strings.Contains(executable, m.literal) {
			return GeneratedSQL{}, &ValidationError{Reason: m.reason}
		}
	}

	fields := strings.Fields(executable)
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
	default:
		return GeneratedSQL{}, &ValidationError{Reason: "statement must start with SELECT or WITH"}
	}

	return GeneratedSQL{Kind: KindStatement, Text: cleaned}, nil
}

func stripCommentLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
