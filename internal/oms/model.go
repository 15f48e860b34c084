// File path: internal/oms/model.go
package oms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Order is the canonical unit of work. Scraped snapshots and the live OMS API
// disagree on field casing (JobNumber vs jobNumber), so decoding goes through
// an alias-aware unmarshaller and everything downstream sees one shape.
// JobNumber is the stable identity used for dedup, cache keys and vector ids;
// every other field may be stale or partially populated.
type Order struct {
	JobNumber         string         `json:"jobNumber"`
	OrderNumber       string         `json:"orderNumber,omitempty"`
	Status            string         `json:"status,omitempty"`
	Priority          string         `json:"priority,omitempty"`
	Customer          Customer       `json:"customer"`
	Description       string         `json:"description,omitempty"`
	DateEntered       string         `json:"dateEntered,omitempty"`
	RequestedShipDate string         `json:"requestedShipDate,omitempty"`
	Pricing           Pricing        `json:"pricing"`
	LineItems         []LineItem     `json:"lineItems,omitempty"`
	Shipments         []Shipment     `json:"shipments,omitempty"`
	Tags              []Tag          `json:"tags,omitempty"`
	History           []HistoryEvent `json:"history,omitempty"`
	LastUpdated       string         `json:"lastUpdated,omitempty"`
}

type Customer struct {
	Company   string `json:"company,omitempty"`
	Contact   string `json:"contact,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	PriceTier string `json:"priceTier,omitempty"`
}

type Pricing struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type LineItem struct {
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	ProgressPct float64 `json:"progressPct"`
	Machine     string  `json:"machine,omitempty"`
}

type Shipment struct {
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Shipped  bool   `json:"shipped"`
	ShipDate string `json:"shipDate,omitempty"`
}

type Tag struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

type HistoryEvent struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := normalizeKeys(raw)
	o.JobNumber = decodeString(fields, "jobnumber", "job", "jobno")
	o.OrderNumber = decodeString(fields, "ordernumber", "orderno")
	o.Status = decodeString(fields, "status", "orderstatus")
	o.Priority = decodeString(fields, "priority")
	o.Description = decodeString(fields, "description", "jobdescription")
	o.DateEntered = decodeString(fields, "dateentered", "entered", "createdat")
	o.RequestedShipDate = decodeString(fields, "requestedshipdate", "datedue", "duedate", "shipdate")
	o.LastUpdated = decodeString(fields, "lastupdated", "updatedat")
	if msg, ok := fields["customer"]; ok {
		if err := json.Unmarshal(msg, &o.Customer); err != nil {
			return fmt.Errorf("decode customer: %w", err)
		}
	} else {
		// Flat scrapes carry customer fields at the top level.
		o.Customer = Customer{
			Company: decodeString(fields, "customercompany", "company"),
			Contact: decodeString(fields, "customercontact", "contact"),
		}
	}
	if msg, ok := fields["pricing"]; ok {
		if err := json.Unmarshal(msg, &o.Pricing); err != nil {
			return fmt.Errorf("decode pricing: %w", err)
		}
	} else {
		o.Pricing = Pricing{
			Subtotal: decodeNumber(fields, "subtotal"),
			Tax:      decodeNumber(fields, "tax"),
			Total:    decodeNumber(fields, "total", "totaldue"),
		}
	}
	if o.Pricing.Total == 0 {
		if total := decodeNumber(fields, "totaldue"); total != 0 {
			o.Pricing.Total = total
		}
	}
	decodeList(fields, &o.LineItems, "lineitems", "items")
	decodeList(fields, &o.Shipments, "shipments")
	decodeList(fields, &o.Tags, "tags")
	decodeList(fields, &o.History, "history", "productionhistory")
	return nil
}

func normalizeKeys(raw map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", ""))
		if normalized == "" {
			continue
		}
		if _, exists := out[normalized]; !exists {
			out[normalized] = value
		}
	}
	return out
}

func decodeString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		msg, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(msg, &value); err == nil {
			return strings.TrimSpace(value)
		}
		// Some scrapes emit job numbers as bare integers.
		var number json.Number
		if err := json.Unmarshal(msg, &number); err == nil {
			return number.String()
		}
	}
	return ""
}

func decodeNumber(fields map[string]json.RawMessage, keys ...string) float64 {
	for _, key := range keys {
		msg, ok := fields[key]
		if !ok {
			continue
		}
		var value float64
		if err := json.Unmarshal(msg, &value); err == nil {
			return value
		}
		var text string
		if err := json.Unmarshal(msg, &text); err == nil {
			cleaned := strings.TrimSpace(strings.TrimPrefix(text, "$"))
			cleaned = strings.ReplaceAll(cleaned, ",", "")
			if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func decodeList(fields map[string]json.RawMessage, target interface{}, keys ...string) {
	for _, key := range keys {
		msg, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, target); err == nil {
			return
		}
	}
}

var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
}

// ParseOrderDate parses the date formats observed in scraped order data. The
// returned time is interpreted in the supplied location.
func ParseOrderDate(value string, loc *time.Location) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range orderDateLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatCurrency renders an amount the way the chat surface displays money.
func FormatCurrency(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// EmbeddingText builds the free-text serialization of an order used both for
// embedding generation and for fingerprinting. Field order is fixed so the
// fingerprint stays stable across fetches.
func (o Order) EmbeddingText() string {
	var b strings.Builder
	write := func(label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	write("Job", o.JobNumber)
	write("Order", o.OrderNumber)
	write("Customer", o.Customer.Company)
	write("Contact", o.Customer.Contact)
	write("Status", o.Status)
	write("Priority", o.Priority)
	write("Description", o.Description)
	write("Entered", o.DateEntered)
	write("Due", o.RequestedShipDate)
	if o.Pricing.Total != 0 {
		write("Total", FormatCurrency(o.Pricing.Total))
	}
	for _, item := range o.LineItems {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("Item: %s x%d", desc, item.Quantity))
		if item.Machine != "" {
			b.WriteString(" on " + item.Machine)
		}
		b.WriteString("\n")
	}
	for _, tag := range o.Tags {
		write("Tag", tag.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Truncate returns at most limit runes of text, used when projecting order
// descriptions into vector metadata.
func Truncate(text string, limit int) string {
	cleaned := strings.TrimSpace(text)
	runes := []rune(cleaned)
	if limit <= 0 || len(runes) <= limit {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:limit]))
}
