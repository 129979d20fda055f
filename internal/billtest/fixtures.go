// Package billtest holds the shared sample bill and reference pricing
// fixtures consumed by the test suites, so no suite re-declares its own.
package billtest

import (
	"strings"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/pricing"
)

// SampleReferenceData is a small reference price snapshot covering the
// coded charges of SampleRawBill.
const SampleReferenceData = `code,price
99285,900.00
70450,850.00
80053,120.00
`

// SampleRawBill returns the extraction result for the sample City
// General Hospital bill. Against SampleReferenceData it classifies as:
// charge 1 higher, charge 2 equal, charge 3 higher, charge 4 no_code.
func SampleRawBill() *bill.RawBill {
	return &bill.RawBill{
		Patient:  "John Doe",
		Date:     "2023-05-15",
		Provider: "City General Hospital",
		Charges: []bill.RawCharge{
			{
				Name:        "Emergency Room Visit (CPT 99285)",
				Amount:      "$1,250.00",
				Description: "Initial assessment and treatment in the emergency department.",
			},
			{
				Name:        "CT Scan - Head (CPT 70450)",
				Amount:      "$850.00",
				Description: "Computed tomography scan of the head.",
			},
			{
				Name:        "2 x Comprehensive Metabolic Panel (CPT 80053)",
				Amount:      "$320.00",
				Description: "Complete blood count and metabolic panel tests.",
			},
			{
				Name:        "Physician Fee",
				Amount:      "$475.00",
				Description: "Professional services provided by your physician.",
			},
		},
		Subtotal: "$2,895.00",
	}
}

// SampleTable loads SampleReferenceData into a reference table. It
// panics on failure since the fixture data is a compile-time constant.
func SampleTable() *pricing.ReferenceTable {
	table, err := pricing.Load(strings.NewReader(SampleReferenceData))
	if err != nil {
		panic(err)
	}
	return table
}
