package domain

import "time"

// SemanticType describes how a raw cell value must be coerced before it can
// be stored in a ticket sale field.
type SemanticType string

const (
	TypeDate     SemanticType = "date"
	TypeCurrency SemanticType = "currency"
	TypeInteger  SemanticType = "integer"
	TypeBoolean  SemanticType = "boolean"
	TypeText     SemanticType = "text"
)

// TargetFieldSpec declares one field of the fixed ticket-sale schema that
// imported spreadsheets are mapped onto. The set of specs is defined once
// per deployment and never changes during an import session.
type TargetFieldSpec struct {
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Required bool         `json:"required"`
	Type     SemanticType `json:"type"`
}

// TicketSale is a single normalized ticket sale, the unit persisted by a
// committed import batch. Null-able fields use pointers so that "unknown"
// survives the trip to the database as SQL NULL.
type TicketSale struct {
	ID         string     `json:"id" db:"id"`
	BatchID    string     `json:"batch_id" db:"batch_id"`
	Provider   string     `json:"provider" db:"provider"`
	SaleDate   time.Time  `json:"sale_date" db:"sale_date"`
	Price      float64    `json:"price" db:"price"`
	ZoneName   *string    `json:"zone_name,omitempty" db:"zone_name"`
	Channel    *string    `json:"channel,omitempty" db:"channel"`
	BuyerEmail *string    `json:"buyer_email,omitempty" db:"buyer_email"`
	Quantity   *int64     `json:"quantity,omitempty" db:"quantity"`
	IsResale   *bool      `json:"is_resale,omitempty" db:"is_resale"`
	TicketType *string    `json:"ticket_type,omitempty" db:"ticket_type"`
	OrderRef   *string    `json:"order_ref,omitempty" db:"order_ref"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// SalesAggregate is one bucket of the grouped sales statistics consumed by
// the recommendation layer and the dashboard charts.
type SalesAggregate struct {
	GroupKey    string  `json:"group_key"`
	TicketCount int     `json:"ticket_count"`
	Revenue     float64 `json:"revenue"`
}
