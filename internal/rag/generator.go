// File path: internal/rag/generator.go
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/llm"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/session"
)

const (
	// Above this many orders the prompt switches from full order detail to
	// one line per order, keeping token usage bounded.
	deepDetailLimit = 3
	maxPromptOrders = 20
	historyWindow   = 6
	localStubPrefix = "[local-stub]"
)

// Answer is one generated (or fallback) response.
type Answer struct {
	Message   string
	Generated bool
}

// Generator turns a retrieved order set plus conversation state into a
// natural-language answer. Aggregate follow-ups are computed directly from
// the session's last shown orders; everything else goes through the LLM with
// a deterministic fallback when no real provider is available.
type Generator struct {
	provider llm.Provider
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate answers query against orders. sess supplies conversation history
// and the previous result set for follow-up arithmetic.
func (g *Generator) Generate(ctx context.Context, query string, orders []oms.Order, sess session.Session) (Answer, error) {
	if IsAggregateFollowUp(query) && len(sess.Context.ShownOrders) > 0 {
		// Recompute from what the user was just shown; no retrieval, no
		// LLM, no chance of a hallucinated total.
		return Answer{Message: AggregateAnswer(sess.Context.ShownOrders)}, nil
	}
	if len(orders) == 0 {
		// Nothing to ground a completion on; answer deterministically so
		// the model cannot invent orders.
		return Answer{Message: NoResultsAnswer(query)}, nil
	}

	serialized := serializeOrders(orders, query)
	prompt, err := g.buildPrompt(query, serialized, sess)
	if err != nil {
		common.Logger().Warn("rag: prompt render failed, using fallback", "error", err)
		return Answer{Message: FallbackAnswer(query, orders)}, nil
	}

	messages := g.buildMessages(prompt, sess)
	reply, err := g.provider.Chat(ctx, messages)
	if err != nil {
		common.Logger().Warn("rag: chat completion failed, using fallback", "provider", g.provider.Name(), "error", err)
		return Answer{Message: FallbackAnswer(query, orders)}, nil
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || strings.HasPrefix(reply, localStubPrefix) {
		return Answer{Message: FallbackAnswer(query, orders)}, nil
	}
	return Answer{Message: reply, Generated: true}, nil
}

func (g *Generator) buildPrompt(query, serialized string, sess session.Session) (string, error) {
	last := strings.TrimSpace(sess.Context.LastQuery)
	if last != "" && looksLikeFollowUp(query) {
		return renderFollowUpPrompt(serialized, last, query)
	}
	return renderAnswerPrompt(serialized, query)
}

func (g *Generator) buildMessages(prompt string, sess session.Session) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}
	history := sess.Messages
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	return messages
}

// serializeOrders renders orders for the prompt. Small result sets get full
// detail; larger ones get one summary line each. Detail sections are included
// only when the query asks about them.
func serializeOrders(orders []oms.Order, query string) string {
	if len(orders) == 0 {
		return "(no matching orders)"
	}
	if len(orders) > maxPromptOrders {
		orders = orders[:maxPromptOrders]
	}
	var b strings.Builder
	if len(orders) <= deepDetailLimit {
		sections := sectionsFor(query)
		for i, order := range orders {
			if i > 0 {
				b.WriteString("\n")
			}
			writeOrderDetail(&b, order, sections)
		}
	} else {
		for _, order := range orders {
			writeOrderLine(&b, order)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type promptSections struct {
	pricing   bool
	lineItems bool
	shipments bool
	history   bool
}

func sectionsFor(query string) promptSections {
	q := strings.ToLower(query)
	has := func(terms ...string) bool {
		for _, term := range terms {
			if strings.Contains(q, term) {
				return true
			}
		}
		return false
	}
	s := promptSections{
		pricing:   has("price", "pricing", "cost", "total", "invoice", "charge", "$"),
		lineItems: has("item", "line", "quantity", "progress", "machine", "press"),
		shipments: has("ship", "deliver", "address", "sent"),
		history:   has("history", "happened", "changed", "when did"),
	}
	if !s.pricing && !s.lineItems && !s.shipments && !s.history {
		// No section cue: show everything, the set is small anyway.
		return promptSections{pricing: true, lineItems: true, shipments: true, history: true}
	}
	return s
}

func writeOrderDetail(b *strings.Builder, order oms.Order, sections promptSections) {
	fmt.Fprintf(b, "Job %s", order.JobNumber)
	if order.OrderNumber != "" {
		fmt.Fprintf(b, " (order %s)", order.OrderNumber)
	}
	b.WriteString("\n")
	if order.Customer.Company != "" || order.Customer.Contact != "" {
		fmt.Fprintf(b, "  Customer: %s", order.Customer.Company)
		if order.Customer.Contact != "" {
			fmt.Fprintf(b, " (%s)", order.Customer.Contact)
		}
		b.WriteString("\n")
	}
	if order.Status != "" {
		fmt.Fprintf(b, "  Status: %s\n", order.Status)
	}
	if order.Priority != "" {
		fmt.Fprintf(b, "  Priority: %s\n", order.Priority)
	}
	if order.Description != "" {
		fmt.Fprintf(b, "  Description: %s\n", oms.Truncate(order.Description, 200))
	}
	if order.DateEntered != "" {
		fmt.Fprintf(b, "  Entered: %s\n", order.DateEntered)
	}
	if order.RequestedShipDate != "" {
		fmt.Fprintf(b, "  Due: %s\n", order.RequestedShipDate)
	}
	if sections.pricing && order.Pricing.Total != 0 {
		fmt.Fprintf(b, "  Pricing: subtotal %s, tax %s, total %s\n",
			oms.FormatCurrency(order.Pricing.Subtotal),
			oms.FormatCurrency(order.Pricing.Tax),
			oms.FormatCurrency(order.Pricing.Total))
	}
	if sections.lineItems && len(order.LineItems) > 0 {
		b.WriteString("  Line items:\n")
		for _, item := range order.LineItems {
			fmt.Fprintf(b, "    - %s x%d @ %s (%.0f%% complete", item.Description, item.Quantity,
				oms.FormatCurrency(item.UnitPrice), item.ProgressPct)
			if item.Machine != "" {
				fmt.Fprintf(b, ", %s", item.Machine)
			}
			b.WriteString(")\n")
		}
	}
	if sections.shipments && len(order.Shipments) > 0 {
		b.WriteString("  Shipments:\n")
		for _, shipment := range order.Shipments {
			state := "pending"
			if shipment.Shipped {
				state = "shipped " + shipment.ShipDate
			}
			fmt.Fprintf(b, "    - %s, %s %s %s (%s)\n", shipment.Address, shipment.City, shipment.State, shipment.Zip, state)
		}
	}
	if sections.history && len(order.History) > 0 {
		b.WriteString("  History:\n")
		events := order.History
		if len(events) > 5 {
			events = events[len(events)-5:]
		}
		for _, event := range events {
			fmt.Fprintf(b, "    - %s %s %s\n", event.Timestamp, event.Event, event.Detail)
		}
	}
}

func writeOrderLine(b *strings.Builder, order oms.Order) {
	fmt.Fprintf(b, "- Job %s | %s | %s", order.JobNumber, order.Customer.Company, order.Status)
	if order.RequestedShipDate != "" {
		fmt.Fprintf(b, " | due %s", order.RequestedShipDate)
	}
	if order.Pricing.Total != 0 {
		fmt.Fprintf(b, " | %s", oms.FormatCurrency(order.Pricing.Total))
	}
	b.WriteString("\n")
}

var followUpCues = []string{
	"what about", "those", "these", "them", "that one", "the same",
	"and the", "how about",
}

func looksLikeFollowUp(query string) bool {
	q := strings.ToLower(query)
	for _, cue := range followUpCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}
