// File path: internal/oms/filter.go
package oms

import (
	"strings"
	"time"
)

// Clock carries the reference instant and business timezone for date-relative
// filtering. Handlers build one per request; tests pin it.
type Clock struct {
	Now time.Time
	Loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now().In(loc), Loc: loc}
}

// FixedClock is used by tests to make "today" deterministic.
func FixedClock(now time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: now.In(loc), Loc: loc}
}

func (c Clock) today() time.Time {
	year, month, day := c.Now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, c.Loc)
}

// Predicate is a structured filter over one order. Predicates compose with
// And so multi-pattern queries (status plus customer) narrow rather than
// widen the result set.
type Predicate func(Order) bool

func And(preds ...Predicate) Predicate {
	return func(order Order) bool {
		for _, pred := range preds {
			if pred != nil && !pred(order) {
				return false
			}
		}
		return true
	}
}

func Filter(orders []Order, pred Predicate) []Order {
	if pred == nil {
		return orders
	}
	var out []Order
	for _, order := range orders {
		if pred(order) {
			out = append(out, order)
		}
	}
	return out
}

// terminalStatuses are workflow states where an order no longer counts as
// outstanding work for overdue purposes.
var terminalStatuses = map[string]struct{}{
	"closed":    {},
	"shipped":   {},
	"completed": {},
}

func isTerminalStatus(status string) bool {
	_, ok := terminalStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

func StatusIs(keyword string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	return func(order Order) bool {
		if needle == "" {
			return true
		}
		return strings.Contains(strings.ToLower(order.Status), needle)
	}
}

// IsRush matches priority values the OMS uses for expedited work. "MUST" is
// the strongest tier and always counts as rush.
func IsRush() Predicate {
	return func(order Order) bool {
		priority := strings.ToLower(strings.TrimSpace(order.Priority))
		return priority == "rush" || priority == "must"
	}
}

func CustomerMatches(name string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(name))
	return func(order Order) bool {
		if needle == "" {
			return true
		}
		if strings.Contains(strings.ToLower(order.Customer.Company), needle) {
			return true
		}
		return strings.Contains(strings.ToLower(order.Customer.Contact), needle)
	}
}

// IsOverdue matches orders whose requested ship date is before today and whose
// status is still open.
func IsOverdue(clock Clock) Predicate {
	today := clock.today()
	return func(order Order) bool {
		if isTerminalStatus(order.Status) {
			return false
		}
		due, ok := ParseOrderDate(order.RequestedShipDate, clock.Loc)
		if !ok {
			return false
		}
		return due.Before(today)
	}
}

func DueToday(clock Clock) Predicate {
	today := clock.today()
	tomorrow := today.AddDate(0, 0, 1)
	return func(order Order) bool {
		due, ok := ParseOrderDate(order.RequestedShipDate, clock.Loc)
		if !ok {
			return false
		}
		return !due.Before(today) && due.Before(tomorrow)
	}
}

func DueWithin(clock Clock, days int) Predicate {
	today := clock.today()
	horizon := today.AddDate(0, 0, days+1)
	return func(order Order) bool {
		if isTerminalStatus(order.Status) {
			return false
		}
		due, ok := ParseOrderDate(order.RequestedShipDate, clock.Loc)
		if !ok {
			return false
		}
		return !due.Before(today) && due.Before(horizon)
	}
}

// DedupeByJobNumber keeps the first occurrence of each job number, preserving
// order. Used when merging structured and semantic result sets.
func DedupeByJobNumber(orders []Order) []Order {
	seen := make(map[string]struct{}, len(orders))
	out := make([]Order, 0, len(orders))
	for _, order := range orders {
		key := strings.TrimSpace(order.JobNumber)
		if key == "" {
			out = append(out, order)
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, order)
	}
	return out
}
