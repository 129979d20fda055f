package extraction

import "github.com/transparentcare/billcheck/internal/bill"

// Extractor is the boundary to the external vision/LLM service that
// turns a photographed or uploaded bill document into the bill-shaped
// object consumed by the parser. Implementations own their own timeouts;
// callers receive either a value or a typed failure.
type Extractor interface {
	// ExtractBill analyzes a bill image/PDF and returns the extracted bill
	ExtractBill(document []byte, contentType string) (*bill.RawBill, error)
	// Close closes the extractor and releases resources
	Close() error
}
