package extraction

import (
	"encoding/json"
	"strings"

	"github.com/transparentcare/billcheck/internal/bill"
)

// UnstructuredInputError means the extraction service returned free text
// instead of the structured bill contract. The core declines to guess a
// structure out of prose.
type UnstructuredInputError struct {
	Snippet string
}

func (e *UnstructuredInputError) Error() string {
	return "extraction returned unstructured text instead of a bill object"
}

// snippet truncates raw model output for error reporting.
func snippet(text string) string {
	const max = 120
	if len(text) > max {
		return text[:max] + "…"
	}
	return text
}

// parseBillJSON parses the JSON response from the vision model into the
// raw bill contract. Model responses often wrap the object in markdown
// fences or surrounding prose; everything outside the outermost braces
// is discarded.
func parseBillJSON(text string) (*bill.RawBill, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil, &UnstructuredInputError{Snippet: snippet(text)}
	}
	text = text[startIdx : endIdx+1]

	var raw bill.RawBill
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &UnstructuredInputError{Snippet: snippet(text)}
	}

	// Clean up header fields
	raw.Patient = strings.TrimSpace(raw.Patient)
	raw.Date = strings.TrimSpace(raw.Date)
	raw.Provider = strings.TrimSpace(raw.Provider)

	return &raw, nil
}
