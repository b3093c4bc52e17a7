package ticketimport

import (
	"strings"

	"github.com/festops/festops/internal/domain"
)

// Target field keys for the ticket-sale schema.
const (
	FieldSaleDate   = "sale_date"
	FieldPrice      = "price"
	FieldZoneName   = "zone_name"
	FieldChannel    = "channel"
	FieldBuyerEmail = "buyer_email"
	FieldQuantity   = "quantity"
	FieldIsResale   = "is_resale"
	FieldTicketType = "ticket_type"
	FieldOrderRef   = "order_ref"
)

// DefaultSchema returns the fixed target schema every import maps onto.
// The slice order is the display order for the mapping UI.
func DefaultSchema() []domain.TargetFieldSpec {
	return []domain.TargetFieldSpec{
		{Key: FieldSaleDate, Label: "Sale Date", Required: true, Type: domain.TypeDate},
		{Key: FieldPrice, Label: "Price", Required: true, Type: domain.TypeCurrency},
		{Key: FieldZoneName, Label: "Zone", Required: false, Type: domain.TypeText},
		{Key: FieldChannel, Label: "Sales Channel", Required: false, Type: domain.TypeText},
		{Key: FieldBuyerEmail, Label: "Buyer Email", Required: false, Type: domain.TypeText},
		{Key: FieldQuantity, Label: "Quantity", Required: false, Type: domain.TypeInteger},
		{Key: FieldIsResale, Label: "Resale", Required: false, Type: domain.TypeBoolean},
		{Key: FieldTicketType, Label: "Ticket Type", Required: false, Type: domain.TypeText},
		{Key: FieldOrderRef, Label: "Order Reference", Required: false, Type: domain.TypeText},
	}
}

// SchemaField looks up a spec by key. Returns false for unknown keys.
func SchemaField(key string) (domain.TargetFieldSpec, bool) {
	for _, spec := range DefaultSchema() {
		if spec.Key == key {
			return spec, true
		}
	}
	return domain.TargetFieldSpec{}, false
}

// columnAliases maps lowercase source header names to target fields.
// Ticketing platforms export wildly different headers for the same thing;
// when several raw headers mean the same field they all map here. Spanish
// aliases cover the platforms most festivals in the domain use.
var columnAliases = map[string]string{
	// Sale date
	"sale_date":     FieldSaleDate,
	"sale date":     FieldSaleDate,
	"date":          FieldSaleDate,
	"fecha":         FieldSaleDate,
	"fecha venta":   FieldSaleDate,
	"fecha_venta":   FieldSaleDate,
	"purchase_date": FieldSaleDate,
	"order_date":    FieldSaleDate,
	"created":       FieldSaleDate,

	// Price
	"price":    FieldPrice,
	"precio":   FieldPrice,
	"amount":   FieldPrice,
	"importe":  FieldPrice,
	"total":    FieldPrice,
	"pvp":      FieldPrice,
	"subtotal": FieldPrice,

	// Zone
	"zone":      FieldZoneName,
	"zone_name": FieldZoneName,
	"zona":      FieldZoneName,
	"area":      FieldZoneName,
	"sector":    FieldZoneName,
	"section":   FieldZoneName,

	// Channel
	"channel":       FieldChannel,
	"canal":         FieldChannel,
	"sales_channel": FieldChannel,
	"origen":        FieldChannel,

	// Buyer email
	"email":       FieldBuyerEmail,
	"buyer_email": FieldBuyerEmail,
	"correo":      FieldBuyerEmail,
	"e-mail":      FieldBuyerEmail,
	"mail":        FieldBuyerEmail,

	// Quantity
	"quantity": FieldQuantity,
	"qty":      FieldQuantity,
	"cantidad": FieldQuantity,
	"tickets":  FieldQuantity,
	"entradas": FieldQuantity,

	// Resale flag
	"is_resale": FieldIsResale,
	"resale":    FieldIsResale,
	"reventa":   FieldIsResale,

	// Ticket type
	"ticket_type": FieldTicketType,
	"type":        FieldTicketType,
	"tipo":        FieldTicketType,
	"tarifa":      FieldTicketType,
	"tier":        FieldTicketType,

	// Order reference
	"order_ref":    FieldOrderRef,
	"order":        FieldOrderRef,
	"order_id":     FieldOrderRef,
	"reference":    FieldOrderRef,
	"referencia":   FieldOrderRef,
	"localizador":  FieldOrderRef,
	"booking_code": FieldOrderRef,
}

// SuggestMapping guesses an initial target->source mapping from the
// decoded column names. It is a convenience for the mapping UI only: the
// operator's explicit choices always replace it, and required-field
// coverage is still enforced by Validate, never assumed from here.
// When two source columns alias the same target the first one wins.
func SuggestMapping(columns []string) map[string]string {
	suggested := make(map[string]string)
	for _, col := range columns {
		normalized := strings.ToLower(strings.TrimSpace(col))
		normalized = strings.Trim(normalized, "\"'")
		target, ok := columnAliases[normalized]
		if !ok {
			continue
		}
		if _, taken := suggested[target]; !taken {
			suggested[target] = col
		}
	}
	return suggested
}
