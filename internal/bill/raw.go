package bill

// RawBill is the bill-shaped object produced by the upstream extraction
// service. All amounts arrive as display strings; code and quantity are
// optional enrichments the extractor may or may not supply.
type RawBill struct {
	Patient  string      `json:"patient"`
	Date     string      `json:"date"`
	Provider string      `json:"provider"`
	Charges  []RawCharge `json:"charges"`
	Subtotal string      `json:"subtotal"`
}

// RawCharge is one line item as reported by the extraction service.
type RawCharge struct {
	ID          *int         `json:"id,omitempty"`
	Name        string       `json:"name"`
	Amount      string       `json:"amount"`
	Description string       `json:"description,omitempty"`
	Code        *BillingCode `json:"code,omitempty"`
	Quantity    *int         `json:"quantity,omitempty"`
}
