package dispute

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/pricing"
)

// Letter is a generated dispute letter. It is immutable once generated;
// regenerating produces a new instance. GeneratedAt is attached by the
// caller so letter bodies stay byte-comparable.
type Letter struct {
	GeneratedAt  time.Time `json:"generated_at"`
	Body         string    `json:"body"`
	FlaggedCount int       `json:"flagged_count"`
}

// ErrNothingToDispute means no charge was billed above its reference
// price. It is a valid, expected outcome, not a failure.
var ErrNothingToDispute = errors.New("no charges above reference price")

const salutation = `To Whom It May Concern,

I am writing to dispute the following charges on my medical bill. Each of the charges listed below was billed above the published reference price for the coded service:

`

const closing = `
I request an itemized review of these charges and a corrected statement reflecting the reference prices above.

Sincerely,
`

// Generate renders a plain-text dispute letter for every charge billed
// above its reference price. Generation is idempotent and side-effect
// free: identical results always yield an identical letter body.
func Generate(b *bill.Bill, results []pricing.ComparisonResult) (*Letter, error) {
	var flagged []pricing.ComparisonResult
	for _, r := range results {
		if r.Status == pricing.StatusHigher {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) == 0 {
		return nil, ErrNothingToDispute
	}

	var body strings.Builder
	body.WriteString(salutation)

	for _, r := range flagged {
		fmt.Fprintf(&body, "%s %s: billed %s (reference %s)\n",
			r.Code.Kind, r.Code.Value, r.PatientTotalPrice, *r.ReferencePrice)
	}

	body.WriteString(closing)
	if b.Patient != "" {
		body.WriteString(b.Patient)
		body.WriteString("\n")
	}

	return &Letter{
		Body:         body.String(),
		FlaggedCount: len(flagged),
	}, nil
}
