package pricing

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/transparentcare/billcheck/internal/bill"
	"github.com/transparentcare/billcheck/internal/money"
)

var _ = Describe("Compare", func() {
	var (
		b       *bill.Bill
		table   *ReferenceTable
		results []ComparisonResult
		err     error
	)

	BeforeEach(func() {
		var loadErr error
		table, loadErr = Load(strings.NewReader("code,price\n99285,900.00\n70450,850.00\n"))
		Expect(loadErr).NotTo(HaveOccurred())

		b = &bill.Bill{
			Patient: "Jane Doe",
			Charges: []bill.Charge{
				{
					ID:       1,
					Name:     "ER Visit (CPT 99285)",
					Code:     &bill.BillingCode{Kind: bill.CodeCPT, Value: "99285"},
					Quantity: 1,
					Amount:   money.Money(125000),
				},
			},
		}
	})

	JustBeforeEach(func() {
		results, err = Compare(b, table)
	})

	When("a charge exceeds its reference price", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return one result per charge", func() {
			Expect(results).To(HaveLen(1))
		})

		It("should classify the charge as higher", func() {
			Expect(results[0].Status).To(Equal(StatusHigher))
		})

		It("should report the line total as the patient price", func() {
			Expect(results[0].PatientTotalPrice).To(Equal(money.Money(125000)))
		})

		It("should attach the reference price", func() {
			Expect(results[0].ReferencePrice).NotTo(BeNil())
			Expect(*results[0].ReferencePrice).To(Equal(money.Money(90000)))
		})
	})

	When("a charge equals its reference price", func() {
		BeforeEach(func() {
			b.Charges[0].Amount = money.Money(90000)
		})

		It("should classify the charge as equal", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(StatusEqual))
		})
	})

	When("a charge is below its reference price", func() {
		BeforeEach(func() {
			b.Charges[0].Amount = money.Money(50000)
		})

		It("should classify the charge as lower", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(StatusLower))
		})
	})

	When("the table has no entry for the code", func() {
		BeforeEach(func() {
			b.Charges[0].Code = &bill.BillingCode{Kind: bill.CodeCPT, Value: "99999"}
		})

		It("should classify the charge as no_reference_match", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(StatusNoReferenceMatch))
		})

		It("should leave the reference price nil", func() {
			Expect(results[0].ReferencePrice).To(BeNil())
		})
	})

	When("a charge has no code", func() {
		BeforeEach(func() {
			b.Charges[0].Code = nil
		})

		It("should classify the charge as no_code regardless of table contents", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(StatusNoCode))
			Expect(results[0].ReferencePrice).To(BeNil())
		})
	})

	When("comparing a multi-charge bill", func() {
		BeforeEach(func() {
			b.Charges = []bill.Charge{
				{ID: 1, Code: &bill.BillingCode{Kind: bill.CodeCPT, Value: "99285"}, Quantity: 1, Amount: money.Money(125000)},
				{ID: 2, Code: &bill.BillingCode{Kind: bill.CodeCPT, Value: "70450"}, Quantity: 1, Amount: money.Money(85000)},
				{ID: 3, Quantity: 1, Amount: money.Money(47500)},
			}
		})

		It("should preserve charge order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ChargeID).To(Equal(1))
			Expect(results[1].ChargeID).To(Equal(2))
			Expect(results[2].ChargeID).To(Equal(3))
		})

		It("should classify each charge independently", func() {
			Expect(results[0].Status).To(Equal(StatusHigher))
			Expect(results[1].Status).To(Equal(StatusEqual))
			Expect(results[2].Status).To(Equal(StatusNoCode))
		})

		It("should be deterministic across invocations", func() {
			again, againErr := Compare(b, table)
			Expect(againErr).NotTo(HaveOccurred())
			Expect(again).To(Equal(results))
		})
	})

	When("a charge derives a unit price from its quantity", func() {
		BeforeEach(func() {
			b.Charges[0].Quantity = 30
			b.Charges[0].Amount = money.Money(4500)
		})

		It("should report the per-unit price", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].PatientUnitPrice).To(Equal(money.Money(150)))
		})
	})

	When("a charge has a zero quantity", func() {
		BeforeEach(func() {
			b.Charges[0].Quantity = 0
		})

		It("returns the zero quantity error", func() {
			Expect(err).To(MatchError(ErrZeroQuantity))
		})
	})
})
