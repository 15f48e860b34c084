// File path: internal/oms/fingerprint_test.go
package oms

import "testing"

func TestFingerprintStable(t *testing.T) {
	order := Order{
		JobNumber: "4521",
		Status:    "Approved",
		Customer:  Customer{Company: "Acme Printing Co"},
		Pricing:   Pricing{Subtotal: 100, Tax: 8, Total: 108},
		LineItems: []LineItem{{Description: "Flyers", Quantity: 1000, UnitPrice: 0.1}},
	}
	if Fingerprint(order) != Fingerprint(order) {
		t.Fatal("fingerprint must be deterministic")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	base := Order{JobNumber: "4521", Status: "Approved"}
	changed := base
	changed.Status = "In Production"
	if Fingerprint(base) == Fingerprint(changed) {
		t.Fatal("status change must change the fingerprint")
	}

	priced := base
	priced.Pricing.Total = 250
	if Fingerprint(base) == Fingerprint(priced) {
		t.Fatal("pricing change must change the fingerprint")
	}
}

func TestFingerprintTagOrderIrrelevant(t *testing.T) {
	a := Order{JobNumber: "1", Tags: []Tag{{Text: "reprint"}, {Text: "rush"}}}
	b := Order{JobNumber: "1", Tags: []Tag{{Text: "rush"}, {Text: "reprint"}}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("tag ordering must not affect the fingerprint")
	}
}
