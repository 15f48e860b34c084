// File path: internal/rag/fallback_test.go
package rag

import (
	"strings"
	"testing"

	"github.com/coastalgraphics/orderdesk/internal/oms"
)

func TestIsAggregateFollowUp(t *testing.T) {
	positives := []string{
		"what's the total?",
		"add up those orders",
		"how much is that altogether",
		"sum them please",
	}
	for _, query := range positives {
		if !IsAggregateFollowUp(query) {
			t.Errorf("IsAggregateFollowUp(%q) = false, want true", query)
		}
	}
	negatives := []string{
		"show overdue orders",
		"job 4521",
		"orders for Acme",
	}
	for _, query := range negatives {
		if IsAggregateFollowUp(query) {
			t.Errorf("IsAggregateFollowUp(%q) = true, want false", query)
		}
	}
}

func TestAggregateAnswer(t *testing.T) {
	orders := []oms.Order{
		{JobNumber: "100", Pricing: oms.Pricing{Total: 150}},
		{JobNumber: "101", Pricing: oms.Pricing{Total: 250}},
	}
	got := AggregateAnswer(orders)
	if !strings.Contains(got, "$400.00") {
		t.Fatalf("expected $400.00 in %q", got)
	}
	if !strings.Contains(got, "2 orders") {
		t.Fatalf("expected order count in %q", got)
	}
}

func TestAggregateAnswerSingleOrder(t *testing.T) {
	got := AggregateAnswer([]oms.Order{{JobNumber: "4521", Pricing: oms.Pricing{Total: 99.5}}})
	if !strings.Contains(got, "4521") || !strings.Contains(got, "$99.50") {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestFallbackAnswerEmpty(t *testing.T) {
	got := FallbackAnswer("overdue orders", nil)
	if !strings.Contains(got, "No orders found") {
		t.Fatalf("unexpected empty answer %q", got)
	}
	if !strings.Contains(got, "overdue orders") {
		t.Fatalf("empty answer should echo the query, got %q", got)
	}
}

func TestNoResultsAnswerBlankQuery(t *testing.T) {
	got := NoResultsAnswer("  ")
	if !strings.Contains(got, "No orders found") {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestFallbackAnswerSingle(t *testing.T) {
	order := oms.Order{
		JobNumber:         "4521",
		Status:            "In Production",
		Customer:          oms.Customer{Company: "Acme Printing Co"},
		RequestedShipDate: "2024-03-08",
		Pricing:           oms.Pricing{Total: 1234.56},
	}
	got := FallbackAnswer("job 4521", []oms.Order{order})
	for _, want := range []string{"4521", "Acme Printing Co", "in production", "2024-03-08", "$1234.56"} {
		if !strings.Contains(got, want) {
			t.Errorf("answer %q missing %q", got, want)
		}
	}
}

func TestFallbackAnswerSummary(t *testing.T) {
	orders := []oms.Order{
		{JobNumber: "100", Status: "Approved", Pricing: oms.Pricing{Total: 100}},
		{JobNumber: "101", Status: "Approved", Pricing: oms.Pricing{Total: 100}},
		{JobNumber: "102", Status: "Pending", Pricing: oms.Pricing{Total: 50}},
	}
	got := FallbackAnswer("orders", orders)
	for _, want := range []string{"Found 3 orders", "$250.00", "2 approved", "1 pending"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
}

func TestFallbackAnswerTruncatesListing(t *testing.T) {
	orders := make([]oms.Order, 8)
	for i := range orders {
		orders[i] = oms.Order{JobNumber: string(rune('a' + i)), Status: "Approved"}
	}
	got := FallbackAnswer("orders", orders)
	if !strings.Contains(got, "and 3 more") {
		t.Fatalf("expected truncation note in %q", got)
	}
}

func TestNotFoundAnswer(t *testing.T) {
	got := NotFoundAnswer("999")
	if !strings.Contains(got, "999") || !strings.Contains(got, "not found") {
		t.Fatalf("unexpected answer %q", got)
	}
}
