package bill

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/transparentcare/billcheck/internal/money"
)

// MalformedBillError means the extraction result cannot be normalized into
// a Bill: no charges, a charge with neither name nor amount, or an amount
// that fails money parsing.
type MalformedBillError struct {
	Reason string
}

func (e *MalformedBillError) Error() string {
	return "malformed bill: " + e.Reason
}

var (
	cptPattern = regexp.MustCompile(`\(CPT\s+([A-Za-z0-9]+)\)`)
	ndcPattern = regexp.MustCompile(`\(NDC\s+([0-9A-Za-z-]+)\)`)
	qtyPrefix  = regexp.MustCompile(`(?i)^(\d+)\s*x\s+`)
)

// Parser normalizes raw extraction results into canonical Bills.
//
// Code and quantity resolution is best-effort: names like
// "CT Head (CPT 70450)" or "2 x Office Visit" carry hints that are
// extracted with first-match-wins semantics, and anything the heuristics
// cannot resolve degrades to no code and quantity 1 rather than failing
// the whole bill.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse validates and normalizes a raw extraction result into a Bill.
func (p *Parser) Parse(raw *RawBill) (*Bill, error) {
	if raw == nil {
		return nil, &MalformedBillError{Reason: "no extraction result"}
	}
	if len(raw.Charges) == 0 {
		return nil, &MalformedBillError{Reason: "bill has no charges"}
	}

	charges := make([]Charge, 0, len(raw.Charges))
	for i, rc := range raw.Charges {
		name := strings.TrimSpace(rc.Name)
		if name == "" && strings.TrimSpace(rc.Amount) == "" {
			return nil, &MalformedBillError{Reason: fmt.Sprintf("charge %d has neither name nor amount", i+1)}
		}

		amount, err := money.Parse(rc.Amount)
		if err != nil {
			return nil, &MalformedBillError{Reason: fmt.Sprintf("charge %d amount: %v", i+1, err)}
		}

		id := i + 1
		if rc.ID != nil {
			id = *rc.ID
		}

		charges = append(charges, Charge{
			ID:          id,
			Name:        name,
			Code:        resolveCode(rc),
			Quantity:    resolveQuantity(rc),
			Amount:      amount,
			Description: strings.TrimSpace(rc.Description),
		})
	}

	// Subtotal is a reported value, not derived. A missing or garbled
	// subtotal does not invalidate the bill.
	subtotal, err := money.Parse(raw.Subtotal)
	if err != nil {
		slog.Warn("Bill subtotal not parseable, defaulting to zero", "subtotal", raw.Subtotal)
		subtotal = 0
	}

	return &Bill{
		Patient:     strings.TrimSpace(raw.Patient),
		ServiceDate: strings.TrimSpace(raw.Date),
		Provider:    strings.TrimSpace(raw.Provider),
		Charges:     charges,
		Subtotal:    subtotal,
	}, nil
}

// resolveCode returns the explicit code if the extractor supplied one,
// else tries a CPT pattern in the charge name, then an NDC pattern.
func resolveCode(rc RawCharge) *BillingCode {
	if rc.Code != nil && rc.Code.Value != "" {
		code := *rc.Code
		return &code
	}
	if m := cptPattern.FindStringSubmatch(rc.Name); m != nil {
		return &BillingCode{Kind: CodeCPT, Value: m[1]}
	}
	if m := ndcPattern.FindStringSubmatch(rc.Name); m != nil {
		return &BillingCode{Kind: CodeNDC, Value: m[1]}
	}
	return nil
}

// resolveQuantity returns the explicit quantity if supplied and valid,
// else parses a "<digits> x " prefix from the charge name. A zero or
// malformed hint falls back to 1.
func resolveQuantity(rc RawCharge) int {
	if rc.Quantity != nil && *rc.Quantity >= 1 {
		return *rc.Quantity
	}
	if m := qtyPrefix.FindStringSubmatch(rc.Name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			return n
		}
	}
	return 1
}
