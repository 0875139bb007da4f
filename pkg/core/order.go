package core

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Channel payloads and API responses carry plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Side is the direction of an order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// OrderType determines which price fields an order must carry
type OrderType string

const (
	TypeLimit      OrderType = "LIMIT"
	TypeMarket     OrderType = "MARKET"
	TypeStopMarket OrderType = "STOP_MARKET"
)

func (t OrderType) Valid() bool {
	return t == TypeLimit || t == TypeMarket || t == TypeStopMarket
}

// OrderStatus is the lifecycle state of an order.
// Transitions: PENDING -> PROCESSED, PENDING -> CANCELED. Never reverses.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusProcessed OrderStatus = "PROCESSED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// Terminal reports whether the status is final. A terminal order is immutable.
func (s OrderStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusCanceled
}

// EventStatus is the outcome of one execution attempt
type EventStatus string

const (
	EventFilled   EventStatus = "FILLED"
	EventRejected EventStatus = "REJECTED"
	EventCanceled EventStatus = "CANCELED"
)

// Order is the durable record of a user's order intent and its lifecycle status.
// It is created by the gateway and mutated only by the execution worker thereafter.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`     // zero when not set (MARKET)
	StopPrice decimal.Decimal `json:"stopPrice"` // zero unless STOP_MARKET
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Validate checks the order-defining fields.
// LIMIT and STOP_MARKET need a positive price; STOP_MARKET also needs a stop price.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "required"}
	}
	if !o.Side.Valid() {
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if !o.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be LIMIT, MARKET or STOP_MARKET"}
	}
	if !o.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if (o.Type == TypeLimit || o.Type == TypeStopMarket) && !o.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "required for " + string(o.Type) + " orders"}
	}
	if o.Type == TypeStopMarket && !o.StopPrice.IsPositive() {
		return &ValidationError{Field: "stopPrice", Reason: "required for STOP_MARKET orders"}
	}
	return nil
}

// OrderEvent is an immutable, appended record of one execution outcome.
// The event log is never mutated or deleted, only appended.
type OrderEvent struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	UserID    string          `json:"userId"`
	Status    EventStatus     `json:"status"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// Closed reports whether an event marks its order as closed for cancellation.
func (s EventStatus) Closed() bool {
	return s == EventFilled || s == EventCanceled || s == EventRejected
}
