// File path: internal/rag/fallback.go
package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coastalgraphics/orderdesk/internal/oms"
)

var aggregateCues = []string{
	"total", "sum", "add up", "add them", "altogether", "all together",
	"combined", "how much",
}

// IsAggregateFollowUp reports whether the query asks for arithmetic over the
// previously shown orders rather than a new search.
func IsAggregateFollowUp(query string) bool {
	q := strings.ToLower(query)
	for _, cue := range aggregateCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

// AggregateAnswer sums the totals of the given orders and reports the result.
func AggregateAnswer(orders []oms.Order) string {
	var total float64
	for _, order := range orders {
		total += order.Pricing.Total
	}
	if len(orders) == 1 {
		return fmt.Sprintf("The total for job %s is %s.", orders[0].JobNumber, oms.FormatCurrency(total))
	}
	return fmt.Sprintf("The combined total for those %d orders is %s.", len(orders), oms.FormatCurrency(total))
}

// NoResultsAnswer is the fixed response for an empty result set; it names the
// query so the user can see what was searched for.
func NoResultsAnswer(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "No orders found matching your request."
	}
	return fmt.Sprintf("No orders found matching %q. Try a job number, a customer name, or a status like approved or shipped.", query)
}

// FallbackAnswer is the deterministic, LLM-free rendering of a result set:
// a count, a status breakdown, the combined value, and the first few orders.
func FallbackAnswer(query string, orders []oms.Order) string {
	if len(orders) == 0 {
		return NoResultsAnswer(query)
	}
	if len(orders) == 1 {
		return describeSingle(orders[0])
	}

	byStatus := make(map[string]int)
	var total float64
	for _, order := range orders {
		status := strings.ToLower(strings.TrimSpace(order.Status))
		if status == "" {
			status = "unknown"
		}
		byStatus[status]++
		total += order.Pricing.Total
	}
	statuses := make([]string, 0, len(byStatus))
	for status := range byStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d orders", len(orders))
	if total != 0 {
		fmt.Fprintf(&b, " totaling %s", oms.FormatCurrency(total))
	}
	b.WriteString(".")
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%d %s", byStatus[status], status))
	}
	fmt.Fprintf(&b, " Status breakdown: %s.", strings.Join(parts, ", "))

	shown := orders
	if len(shown) > 5 {
		shown = shown[:5]
	}
	b.WriteString("\n")
	for _, order := range shown {
		fmt.Fprintf(&b, "\n- Job %s", order.JobNumber)
		if order.Customer.Company != "" {
			fmt.Fprintf(&b, " for %s", order.Customer.Company)
		}
		if order.Status != "" {
			fmt.Fprintf(&b, " (%s)", order.Status)
		}
		if order.RequestedShipDate != "" {
			fmt.Fprintf(&b, ", due %s", order.RequestedShipDate)
		}
	}
	if len(orders) > len(shown) {
		fmt.Fprintf(&b, "\n\n...and %d more.", len(orders)-len(shown))
	}
	return b.String()
}

func describeSingle(order oms.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s", order.JobNumber)
	if order.Customer.Company != "" {
		fmt.Fprintf(&b, " for %s", order.Customer.Company)
	}
	if order.Status != "" {
		fmt.Fprintf(&b, " is %s", strings.ToLower(order.Status))
	}
	b.WriteString(".")
	if order.Description != "" {
		fmt.Fprintf(&b, " %s.", oms.Truncate(strings.TrimRight(order.Description, "."), 160))
	}
	if order.RequestedShipDate != "" {
		fmt.Fprintf(&b, " Due %s.", order.RequestedShipDate)
	}
	if order.Pricing.Total != 0 {
		fmt.Fprintf(&b, " Total %s.", oms.FormatCurrency(order.Pricing.Total))
	}
	return b.String()
}

// NotFoundAnswer is the response for an explicit job-number miss.
func NotFoundAnswer(jobNumber string) string {
	return fmt.Sprintf("Job %s was not found in the order system. Double-check the number, or ask me to search by customer or description instead.", jobNumber)
}
