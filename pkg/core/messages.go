package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Channel topics. The gateway publishes commands, the execution worker
// publishes status events.
const (
	TopicSubmit = "commands:order:submit"
	TopicCancel = "commands:order:cancel"
	TopicStatus = "events:order:status"
)

// SubmitCommand is the wire trigger that causes the execution worker to act.
// It is transient: the durable record is the Order row written before publish.
type SubmitCommand struct {
	OrderID   string          `json:"orderId"`
	UserID    string          `json:"userId"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price,omitempty"`
	StopPrice decimal.Decimal `json:"stopPrice,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (c *SubmitCommand) Validate() error {
	if c.OrderID == "" || c.UserID == "" {
		return fmt.Errorf("submit command: missing orderId/userId")
	}
	if c.Symbol == "" || !c.Side.Valid() || !c.Type.Valid() {
		return fmt.Errorf("submit command %s: malformed order fields", c.OrderID)
	}
	if !c.Quantity.IsPositive() {
		return fmt.Errorf("submit command %s: quantity must be positive", c.OrderID)
	}
	return nil
}

// CancelCommand requests best-effort cancellation of a pending order.
type CancelCommand struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *CancelCommand) Validate() error {
	if c.OrderID == "" || c.UserID == "" {
		return fmt.Errorf("cancel command: missing orderId/userId")
	}
	return nil
}

// StatusEvent is the persisted OrderEvent plus denormalized symbol/side
// for presentation, published once per terminal outcome.
type StatusEvent struct {
	OrderEvent
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
}

func (e *StatusEvent) Validate() error {
	if e.OrderID == "" || e.UserID == "" {
		return fmt.Errorf("status event: missing orderId/userId")
	}
	if !e.Status.Closed() {
		return fmt.Errorf("status event %s: unknown status %q", e.OrderID, e.Status)
	}
	return nil
}

// Decode helpers validate payloads at the channel boundary before dispatch.

func DecodeSubmitCommand(data []byte) (*SubmitCommand, error) {
	var cmd SubmitCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("decode submit command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

func DecodeCancelCommand(data []byte) (*CancelCommand, error) {
	var cmd CancelCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("decode cancel command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

func DecodeStatusEvent(data []byte) (*StatusEvent, error) {
	var ev StatusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode status event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
