package bill

import "github.com/transparentcare/billcheck/internal/money"

// CodeKind identifies the coding system a billing code belongs to.
type CodeKind string

const (
	// CodeCPT is a Current Procedural Terminology code for a procedure.
	CodeCPT CodeKind = "CPT"
	// CodeNDC is a National Drug Code for a drug product.
	CodeNDC CodeKind = "NDC"
)

// BillingCode is a standardized identifier used as the join key against
// reference pricing.
type BillingCode struct {
	Kind  CodeKind `json:"kind"`
	Value string   `json:"value"`
}

// Charge is one billed line item on a Bill.
type Charge struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Code        *BillingCode `json:"code,omitempty"`
	Quantity    int          `json:"quantity"`
	Amount      money.Money  `json:"amount"` // line total in cents, not unit price
	Description string       `json:"description,omitempty"`
}

// UnitPrice derives the per-unit price from the line total.
func (c Charge) UnitPrice() money.Money {
	return c.Amount.Div(c.Quantity)
}

// Bill is one normalized medical bill. It is immutable after parsing:
// downstream comparison and letter generation only read it.
type Bill struct {
	Patient     string      `json:"patient"`
	ServiceDate string      `json:"service_date"` // free-form, as printed on the document
	Provider    string      `json:"provider"`
	Charges     []Charge    `json:"charges"`
	Subtotal    money.Money `json:"subtotal"` // as displayed, not recomputed from charges
}
