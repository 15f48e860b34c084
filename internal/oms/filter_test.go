// File path: internal/oms/filter_test.go
package oms

import (
	"testing"
	"time"
)

func testClock(t *testing.T) Clock {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Wednesday mid-afternoon.
	return FixedClock(time.Date(2024, 3, 6, 15, 30, 0, 0, loc), loc)
}

func TestIsOverdue(t *testing.T) {
	clock := testClock(t)
	cases := []struct {
		name  string
		order Order
		want  bool
	}{
		{"past due open", Order{Status: "In Production", RequestedShipDate: "2024-03-01"}, true},
		{"past due shipped", Order{Status: "Shipped", RequestedShipDate: "2024-03-01"}, false},
		{"past due closed", Order{Status: "Closed", RequestedShipDate: "2024-03-01"}, false},
		{"due today", Order{Status: "Approved", RequestedShipDate: "2024-03-06"}, false},
		{"due tomorrow", Order{Status: "Approved", RequestedShipDate: "2024-03-07"}, false},
		{"no due date", Order{Status: "Approved"}, false},
		{"unparseable date", Order{Status: "Approved", RequestedShipDate: "soon"}, false},
		{"slash format past due", Order{Status: "Pending", RequestedShipDate: "3/1/2024"}, true},
	}
	pred := IsOverdue(clock)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pred(tc.order); got != tc.want {
				t.Fatalf("IsOverdue(%q/%q) = %v, want %v", tc.order.Status, tc.order.RequestedShipDate, got, tc.want)
			}
		})
	}
}

func TestDueToday(t *testing.T) {
	clock := testClock(t)
	pred := DueToday(clock)
	if !pred(Order{RequestedShipDate: "2024-03-06"}) {
		t.Fatal("order due on the reference day should match")
	}
	if pred(Order{RequestedShipDate: "2024-03-05"}) {
		t.Fatal("order due yesterday should not match")
	}
	if pred(Order{RequestedShipDate: "2024-03-07"}) {
		t.Fatal("order due tomorrow should not match")
	}
}

func TestDueWithin(t *testing.T) {
	clock := testClock(t)
	pred := DueWithin(clock, 7)
	cases := []struct {
		date string
		want bool
	}{
		{"2024-03-06", true},
		{"2024-03-13", true},
		{"2024-03-14", false},
		{"2024-03-05", false},
	}
	for _, tc := range cases {
		if got := pred(Order{Status: "Approved", RequestedShipDate: tc.date}); got != tc.want {
			t.Errorf("DueWithin(7) on %s = %v, want %v", tc.date, got, tc.want)
		}
	}
	if pred(Order{Status: "Shipped", RequestedShipDate: "2024-03-07"}) {
		t.Fatal("shipped order should not count as upcoming work")
	}
}

func TestIsRush(t *testing.T) {
	pred := IsRush()
	for _, priority := range []string{"rush", "RUSH", "Must", "MUST "} {
		if !pred(Order{Priority: priority}) {
			t.Errorf("priority %q should count as rush", priority)
		}
	}
	for _, priority := range []string{"", "normal", "standard"} {
		if pred(Order{Priority: priority}) {
			t.Errorf("priority %q should not count as rush", priority)
		}
	}
}

func TestStatusIsAndCustomerMatches(t *testing.T) {
	order := Order{
		Status:   "Waiting for Proof Approval",
		Customer: Customer{Company: "Acme Printing Co", Contact: "Dana Reyes"},
	}
	if !StatusIs("proof")(order) {
		t.Fatal("substring status match expected")
	}
	if StatusIs("shipped")(order) {
		t.Fatal("non-matching status should not match")
	}
	if !CustomerMatches("acme")(order) {
		t.Fatal("company match expected")
	}
	if !CustomerMatches("dana")(order) {
		t.Fatal("contact match expected")
	}
	if CustomerMatches("globex")(order) {
		t.Fatal("unrelated customer should not match")
	}
}

func TestAndNarrows(t *testing.T) {
	clock := testClock(t)
	orders := []Order{
		{JobNumber: "100", Status: "Approved", Customer: Customer{Company: "Acme"}, RequestedShipDate: "2024-03-01"},
		{JobNumber: "101", Status: "Approved", Customer: Customer{Company: "Globex"}, RequestedShipDate: "2024-03-01"},
		{JobNumber: "102", Status: "Shipped", Customer: Customer{Company: "Acme"}, RequestedShipDate: "2024-03-01"},
	}
	got := Filter(orders, And(CustomerMatches("acme"), IsOverdue(clock)))
	if len(got) != 1 || got[0].JobNumber != "100" {
		t.Fatalf("expected only job 100, got %+v", got)
	}
}

func TestDedupeByJobNumber(t *testing.T) {
	orders := []Order{
		{JobNumber: "100", Status: "exact"},
		{JobNumber: "101"},
		{JobNumber: "100", Status: "vector"},
		{JobNumber: ""},
		{JobNumber: ""},
	}
	got := DedupeByJobNumber(orders)
	if len(got) != 4 {
		t.Fatalf("expected 4 orders after dedupe, got %d", len(got))
	}
	if got[0].Status != "exact" {
		t.Fatal("first occurrence should win")
	}
}
