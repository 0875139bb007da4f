// Package gateway validates and persists order intents, emits commands on
// the command channel, and serves the read paths clients poll.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/bus"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/ledger"
)

type Gateway struct {
	store core.OrderStore
	bus   bus.Bus
	log   *zap.SugaredLogger
	now   func() time.Time
}

func New(store core.OrderStore, b bus.Bus, log *zap.SugaredLogger) *Gateway {
	return &Gateway{store: store, bus: b, log: log, now: time.Now}
}

// SubmitRequest carries the order-defining fields of an intake request.
type SubmitRequest struct {
	Symbol    string          `json:"symbol"`
	Side      core.Side       `json:"side"`
	Type      core.OrderType  `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	StopPrice decimal.Decimal `json:"stopPrice"`
}

// SubmitOrder validates the request, persists a PENDING order and then
// publishes the submit command. The record must be durably written before
// the command goes out so the worker can always resolve the order id.
func (g *Gateway) SubmitOrder(ctx context.Context, userID string, req SubmitRequest) (*core.Order, error) {
	order := &core.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    core.StatusPending,
		CreatedAt: g.now(),
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := g.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	cmd := core.SubmitCommand{
		OrderID:   order.ID,
		UserID:    userID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Type:      order.Type,
		Quantity:  order.Quantity,
		Price:     order.Price,
		StopPrice: order.StopPrice,
		Timestamp: g.now(),
	}
	payload, err := json.Marshal(&cmd)
	if err != nil {
		return nil, fmt.Errorf("encode submit command: %w", err)
	}
	if err := g.bus.Publish(ctx, core.TopicSubmit, payload); err != nil {
		// The order stays PENDING; the read paths will still show it.
		g.log.Errorw("submit_publish_failed", "order_id", order.ID, "err", err)
		return nil, fmt.Errorf("publish submit command: %w", err)
	}

	g.log.Infow("order_submitted", "order_id", order.ID, "user_id", userID,
		"symbol", order.Symbol, "side", order.Side, "type", order.Type)
	return order, nil
}

// CancelOrder checks the cancel preconditions and publishes a cancel
// command. It does not change order status itself; the execution worker
// owns that transition.
func (g *Gateway) CancelOrder(ctx context.Context, userID, orderID string) error {
	order, err := g.store.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return core.ErrOrderClosed
	}
	events, err := g.store.ListEventsByOrder(ctx, userID, orderID)
	if err != nil {
		return fmt.Errorf("load order events: %w", err)
	}
	for _, ev := range events {
		if ev.Status.Closed() {
			return core.ErrOrderClosed
		}
	}

	cmd := core.CancelCommand{
		OrderID:   orderID,
		UserID:    userID,
		Symbol:    order.Symbol,
		Timestamp: g.now(),
	}
	payload, err := json.Marshal(&cmd)
	if err != nil {
		return fmt.Errorf("encode cancel command: %w", err)
	}
	if err := g.bus.Publish(ctx, core.TopicCancel, payload); err != nil {
		return fmt.Errorf("publish cancel command: %w", err)
	}

	g.log.Infow("cancel_submitted", "order_id", orderID, "user_id", userID)
	return nil
}

// OrderWithEvents is an order joined with its appended event history.
type OrderWithEvents struct {
	core.Order
	Events []*core.OrderEvent `json:"events"`
}

func (g *Gateway) ListOrders(ctx context.Context, userID string) ([]OrderWithEvents, error) {
	orders, err := g.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]OrderWithEvents, 0, len(orders))
	for _, o := range orders {
		events, err := g.store.ListEventsByOrder(ctx, userID, o.ID)
		if err != nil {
			return nil, err
		}
		if events == nil {
			events = []*core.OrderEvent{}
		}
		out = append(out, OrderWithEvents{Order: *o, Events: events})
	}
	return out, nil
}

// Position is a per-symbol net size derived from processed orders.
type Position struct {
	Symbol string          `json:"symbol"`
	Size   decimal.Decimal `json:"size"`
}

// ListPositions derives net position per symbol from the first FILLED event
// of each PROCESSED order.
func (g *Gateway) ListPositions(ctx context.Context, userID string) ([]Position, error) {
	orders, err := g.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}

	var fills []ledger.Fill
	for _, o := range orders {
		if o.Status != core.StatusProcessed {
			continue
		}
		events, err := g.store.ListEventsByOrder(ctx, userID, o.ID)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.Status == core.EventFilled {
				fills = append(fills, ledger.Fill{
					Symbol:   o.Symbol,
					Side:     o.Side,
					Quantity: ev.Quantity,
					Price:    ev.Price,
				})
				break
			}
		}
	}

	sizes := ledger.ReducePositions(fills)
	out := make([]Position, 0, len(sizes))
	for symbol, size := range sizes {
		out = append(out, Position{Symbol: symbol, Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Balance is one asset row of the derived balance view.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// Balances replays the user's FILLED events over the seed allocation.
func (g *Gateway) Balances(ctx context.Context, userID string) ([]Balance, error) {
	orders, err := g.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	events, err := g.store.ListEventsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var fills []ledger.Fill
	for _, ev := range events {
		if ev.Status != core.EventFilled {
			continue
		}
		o, ok := byID[ev.OrderID]
		if !ok {
			continue
		}
		fills = append(fills, ledger.Fill{
			Symbol:   o.Symbol,
			Side:     o.Side,
			Quantity: ev.Quantity,
			Price:    ev.Price,
		})
	}

	balances := ledger.ReduceBalances(ledger.SeedBalances(), fills)
	out := make([]Balance, 0, len(balances))
	for asset, free := range balances {
		out = append(out, Balance{Asset: asset, Free: free, Locked: decimal.Zero})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

// SaveCredentials stores the user's venue API keys for the worker to use.
func (g *Gateway) SaveCredentials(ctx context.Context, userID string, c core.Credentials) error {
	if c.APIKey == "" || c.APISecret == "" {
		return &core.ValidationError{Field: "apiKey", Reason: "apiKey and apiSecret are required"}
	}
	return g.store.SaveCredentials(ctx, userID, c)
}
