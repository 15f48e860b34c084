// File path: internal/rag/generator_test.go
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/coastalgraphics/orderdesk/internal/llm"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/session"
)

type fakeProvider struct {
	reply    string
	err      error
	calls    int
	lastSeen []llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.lastSeen = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	return make([][]float32, len(input)), nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestGenerateUsesProviderReply(t *testing.T) {
	provider := &fakeProvider{reply: "Job 4521 is in production and ships Friday."}
	gen := NewGenerator(provider)
	answer, err := gen.Generate(context.Background(), "status of job 4521", []oms.Order{{JobNumber: "4521"}}, session.Session{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !answer.Generated {
		t.Fatal("provider reply should mark the answer generated")
	}
	if answer.Message != provider.reply {
		t.Fatalf("message = %q", answer.Message)
	}
}

func TestGenerateFallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	gen := NewGenerator(provider)
	orders := []oms.Order{{JobNumber: "100", Status: "Approved"}}
	answer, err := gen.Generate(context.Background(), "orders", orders, session.Session{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer.Generated {
		t.Fatal("fallback answer must not be marked generated")
	}
	if !strings.Contains(answer.Message, "100") {
		t.Fatalf("fallback should describe the order set, got %q", answer.Message)
	}
}

func TestGenerateEmptySetSkipsProvider(t *testing.T) {
	provider := &fakeProvider{reply: "Sure! Here are some orders I made up."}
	gen := NewGenerator(provider)
	answer, err := gen.Generate(context.Background(), "orders for Hooli", nil, session.Session{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times for an empty result set", provider.calls)
	}
	if answer.Generated {
		t.Fatal("empty-set answer must not be marked generated")
	}
	if !strings.Contains(answer.Message, "No orders found") || !strings.Contains(answer.Message, "orders for Hooli") {
		t.Fatalf("message = %q", answer.Message)
	}
}

func TestGenerateFallsBackOnLocalStub(t *testing.T) {
	provider := &fakeProvider{reply: "[local-stub] orders"}
	gen := NewGenerator(provider)
	answer, err := gen.Generate(context.Background(), "orders", []oms.Order{{JobNumber: "100"}}, session.Session{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer.Generated {
		t.Fatal("stub echo must route to the deterministic fallback")
	}
}

func TestGenerateAggregateSkipsProvider(t *testing.T) {
	provider := &fakeProvider{reply: "should not be used"}
	gen := NewGenerator(provider)
	sess := session.Session{Context: session.Context{
		ShownOrders: []oms.Order{
			{JobNumber: "100", Pricing: oms.Pricing{Total: 150}},
			{JobNumber: "101", Pricing: oms.Pricing{Total: 250}},
		},
	}}
	answer, err := gen.Generate(context.Background(), "what's the total?", nil, sess)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("aggregate follow-up must not call the provider")
	}
	if !strings.Contains(answer.Message, "$400.00") {
		t.Fatalf("expected $400.00 in %q", answer.Message)
	}
}

func TestGenerateIncludesHistoryWindow(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	gen := NewGenerator(provider)
	sess := session.Session{}
	for i := 0; i < 10; i++ {
		sess.Messages = append(sess.Messages, session.Message{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}
	if _, err := gen.Generate(context.Background(), "orders", nil, sess); err != nil {
		t.Fatalf("generate: %v", err)
	}
	// system + bounded history + current prompt
	if len(provider.lastSeen) != 1+historyWindow+1 {
		t.Fatalf("message count = %d, want %d", len(provider.lastSeen), 1+historyWindow+1)
	}
	if provider.lastSeen[0].Role != "system" {
		t.Fatal("first message must be the system prompt")
	}
	if provider.lastSeen[1].Content != "m4" {
		t.Fatalf("history window should start at m4, got %q", provider.lastSeen[1].Content)
	}
}

func TestSerializeOrdersCompactVsDeep(t *testing.T) {
	small := []oms.Order{{
		JobNumber: "100",
		Status:    "Approved",
		LineItems: []oms.LineItem{{Description: "Flyers", Quantity: 1000}},
	}}
	deep := serializeOrders(small, "what line items are on it?")
	if !strings.Contains(deep, "Line items:") {
		t.Fatalf("small sets should get full detail, got %q", deep)
	}

	var many []oms.Order
	for i := 0; i < 10; i++ {
		many = append(many, oms.Order{
			JobNumber: fmt.Sprintf("%d", 100+i),
			Status:    "Approved",
			LineItems: []oms.LineItem{{Description: "Flyers", Quantity: 1000}},
		})
	}
	compact := serializeOrders(many, "what line items are on them?")
	if strings.Contains(compact, "Line items:") {
		t.Fatal("large sets should serialize one line per order")
	}
	if !strings.Contains(compact, "- Job 100") {
		t.Fatalf("compact form missing order line: %q", compact)
	}
}

func TestSerializeOrdersSectionSelection(t *testing.T) {
	order := oms.Order{
		JobNumber: "100",
		Pricing:   oms.Pricing{Subtotal: 100, Tax: 8, Total: 108},
		LineItems: []oms.LineItem{{Description: "Flyers", Quantity: 1000}},
		Shipments: []oms.Shipment{{Address: "1 Main St", City: "Albany", State: "NY", Zip: "12207"}},
	}
	got := serializeOrders([]oms.Order{order}, "how much does it cost?")
	if !strings.Contains(got, "Pricing:") {
		t.Fatalf("pricing question should include the pricing section: %q", got)
	}
	if strings.Contains(got, "Shipments:") {
		t.Fatalf("pricing question should not include shipments: %q", got)
	}
}

func TestSerializeOrdersEmpty(t *testing.T) {
	if got := serializeOrders(nil, "anything"); !strings.Contains(got, "no matching orders") {
		t.Fatalf("empty set serialization = %q", got)
	}
}
