package pricing

import (
	"errors"
	"fmt"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/money"
)

// Status classifies one charge against its reference price.
type Status string

const (
	// StatusHigher means the billed line total exceeds the reference price.
	StatusHigher Status = "higher"
	// StatusLower means the billed line total is below the reference price.
	StatusLower Status = "lower"
	// StatusEqual means the billed line total matches the reference price.
	StatusEqual Status = "equal"
	// StatusNoReferenceMatch means the charge has a code but the table has
	// no entry for it.
	StatusNoReferenceMatch Status = "no_reference_match"
	// StatusNoCode means no billing code could be resolved for the charge.
	StatusNoCode Status = "no_code"
)

// ComparisonResult is the classification of one charge.
type ComparisonResult struct {
	ChargeID          int               `json:"charge_id"`
	Code              *bill.BillingCode `json:"code,omitempty"`
	Quantity          int               `json:"quantity"`
	PatientUnitPrice  money.Money       `json:"patient_unit_price"`
	PatientTotalPrice money.Money       `json:"patient_total_price"`
	ReferencePrice    *money.Money      `json:"reference_price,omitempty"`
	Status            Status            `json:"status"`
}

// ErrZeroQuantity guards the unit price division. The parser's
// quantity >= 1 invariant makes it unreachable in practice.
var ErrZeroQuantity = errors.New("charge quantity is zero")

// Compare classifies every charge on the bill against the reference
// table, one result per charge in charge order. It is a pure function:
// identical inputs always produce identical results.
func Compare(b *bill.Bill, table *ReferenceTable) ([]ComparisonResult, error) {
	results := make([]ComparisonResult, 0, len(b.Charges))

	for _, charge := range b.Charges {
		if charge.Quantity == 0 {
			return nil, fmt.Errorf("charge %d: %w", charge.ID, ErrZeroQuantity)
		}

		result := ComparisonResult{
			ChargeID:          charge.ID,
			Code:              charge.Code,
			Quantity:          charge.Quantity,
			PatientUnitPrice:  charge.UnitPrice(),
			PatientTotalPrice: charge.Amount,
		}

		switch {
		case charge.Code == nil:
			result.Status = StatusNoCode
		default:
			reference, ok := table.Lookup(charge.Code.Value)
			if !ok {
				result.Status = StatusNoReferenceMatch
				break
			}
			result.ReferencePrice = &reference
			switch {
			case charge.Amount > reference:
				result.Status = StatusHigher
			case charge.Amount < reference:
				result.Status = StatusLower
			default:
				result.Status = StatusEqual
			}
		}

		results = append(results, result)
	}

	return results, nil
}
