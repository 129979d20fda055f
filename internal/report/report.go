package report

import (
	"time"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/pricing"
)

// State tracks one processing run through the pipeline. Error is
// terminal for a run, but the service accepts a fresh run with corrected
// input at any time.
type State string

const (
	StateIdle            State = "idle"
	StateParsing         State = "parsing"
	StateComparing       State = "comparing"
	StateReady           State = "ready"
	StateLetterGenerated State = "letter_generated"
	StateError           State = "error"
)

// BillReport is the output of one processing run: the normalized bill
// plus one comparison result per charge. Results are derived from the
// bill and table at processing time and are recomputed in full on
// reprocessing, never incrementally updated.
type BillReport struct {
	ID          string                     `json:"id"`
	Bill        *bill.Bill                 `json:"bill"`
	Results     []pricing.ComparisonResult `json:"results"`
	State       State                      `json:"state"`
	SourceFile  string                     `json:"source_file,omitempty"`
	ContentType string                     `json:"content_type,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// FlaggedCount returns the number of charges billed above reference.
func (r *BillReport) FlaggedCount() int {
	count := 0
	for _, result := range r.Results {
		if result.Status == pricing.StatusHigher {
			count++
		}
	}
	return count
}
