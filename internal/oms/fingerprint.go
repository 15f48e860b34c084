// File path: internal/oms/fingerprint.go
package oms

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint derives a stable hash for an order based on the fields that feed
// its indexed representation. Repeated fetches of an unchanged order produce
// the same fingerprint, which is what drives incremental vector sync.
func Fingerprint(order Order) string {
	hasher := sha256.New()
	write := func(parts ...string) {
		for _, part := range parts {
			if part == "" {
				continue
			}
			_, _ = hasher.Write([]byte(part))
			_, _ = hasher.Write([]byte{0})
		}
	}

	write(order.JobNumber, order.OrderNumber, order.Status, order.Priority)
	write(order.Customer.Company, order.Customer.Contact, order.Customer.PriceTier)
	write(order.Description, order.DateEntered, order.RequestedShipDate)
	if order.Pricing.Total != 0 || order.Pricing.Subtotal != 0 {
		write(fmt.Sprintf("%.2f|%.2f|%.2f", order.Pricing.Subtotal, order.Pricing.Tax, order.Pricing.Total))
	}
	for _, item := range order.LineItems {
		write(fmt.Sprintf("%s|%d|%.2f|%.1f|%s", item.Description, item.Quantity, item.UnitPrice, item.ProgressPct, item.Machine))
	}
	for _, shipment := range order.Shipments {
		write(fmt.Sprintf("%s|%s|%t|%s", shipment.Address, shipment.City, shipment.Shipped, shipment.ShipDate))
	}
	if len(order.Tags) > 0 {
		tags := make([]string, 0, len(order.Tags))
		for _, tag := range order.Tags {
			trimmed := strings.TrimSpace(tag.Text)
			if trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
		sort.Strings(tags)
		write(strings.Join(tags, ";"))
	}

	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum)
}
