// Package execution consumes the command channel, resolves each order
// against the external venue and publishes the terminal status event.
//
// Venue errors are never propagated to the caller: every submit command
// resolves to exactly one FILLED or REJECTED event, every cancel command
// to at most one CANCELED event.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/bus"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
)

type Config struct {
	// Workers bounds concurrent message handling within one instance so a
	// slow venue call stalls only its own order, not the whole queue.
	Workers int
	// Sandbox masks venue failures as deterministic simulated fills.
	// Live mode resolves them to REJECTED instead.
	Sandbox bool
	// DefaultFillPrice backs the simulated fill when the command carries
	// no price (MARKET orders).
	DefaultFillPrice decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		Workers:          8,
		Sandbox:          true,
		DefaultFillPrice: decimal.NewFromInt(50000),
	}
}

type Worker struct {
	store core.OrderStore
	bus   bus.Bus
	venue Venue
	log   *zap.SugaredLogger
	cfg   Config
	sem   chan struct{}
	now   func() time.Time
}

func NewWorker(store core.OrderStore, b bus.Bus, venue Venue, cfg Config, log *zap.SugaredLogger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Worker{
		store: store,
		bus:   b,
		venue: venue,
		log:   log,
		cfg:   cfg,
		sem:   make(chan struct{}, cfg.Workers),
		now:   time.Now,
	}
}

// Start subscribes to both command topics. Each message is handled in its
// own goroutine, bounded by the worker pool.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.bus.Subscribe(ctx, core.TopicSubmit, w.dispatch(w.handleSubmit)); err != nil {
		return err
	}
	if err := w.bus.Subscribe(ctx, core.TopicCancel, w.dispatch(w.handleCancel)); err != nil {
		return err
	}
	w.log.Infow("execution_worker_started", "pool_size", w.cfg.Workers, "sandbox", w.cfg.Sandbox)
	return nil
}

func (w *Worker) dispatch(handle func(ctx context.Context, payload []byte)) bus.Handler {
	return func(ctx context.Context, payload []byte) {
		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func() {
			defer func() { <-w.sem }()
			handle(ctx, payload)
		}()
	}
}

func (w *Worker) handleSubmit(ctx context.Context, payload []byte) {
	cmd, err := core.DecodeSubmitCommand(payload)
	if err != nil {
		w.log.Warnw("submit_command_invalid", "err", err)
		return
	}
	w.log.Infow("submit_command_received", "order_id", cmd.OrderID)

	status, fillPrice := w.resolve(ctx, cmd)

	changed, err := w.store.TransitionOrder(ctx, cmd.UserID, cmd.OrderID, core.StatusPending, core.StatusProcessed)
	if err != nil {
		// Poison message: no channel-level retry exists, the order stays PENDING.
		w.log.Errorw("order_transition_failed", "order_id", cmd.OrderID, "err", err)
		return
	}
	if !changed {
		w.log.Warnw("duplicate_submit_dropped", "order_id", cmd.OrderID)
		return
	}

	event := &core.OrderEvent{
		ID:        uuid.NewString(),
		OrderID:   cmd.OrderID,
		UserID:    cmd.UserID,
		Status:    status,
		Price:     fillPrice,
		Quantity:  cmd.Quantity,
		Timestamp: w.now(),
	}
	if err := w.store.AppendEvent(ctx, event); err != nil {
		w.log.Errorw("event_append_failed", "order_id", cmd.OrderID, "err", err)
		return
	}

	w.publishStatus(ctx, event, cmd.Symbol, cmd.Side)
	w.log.Infow("order_resolved", "order_id", cmd.OrderID, "status", status, "price", fillPrice)
}

// resolve runs the external placement and returns the terminal outcome.
func (w *Worker) resolve(ctx context.Context, cmd *core.SubmitCommand) (core.EventStatus, decimal.Decimal) {
	creds, err := w.store.GetCredentials(ctx, cmd.UserID)
	if err != nil {
		if !errors.Is(err, core.ErrCredentialsMissing) {
			w.log.Errorw("credentials_load_failed", "order_id", cmd.OrderID, "err", err)
		}
		// Fatal for this order, never retried.
		w.log.Warnw("order_rejected_no_credentials", "order_id", cmd.OrderID, "user_id", cmd.UserID)
		return core.EventRejected, decimal.Zero
	}

	resp, err := w.venue.PlaceOrder(ctx, creds, VenueOrder{
		Symbol:   cmd.Symbol,
		Side:     cmd.Side,
		Type:     cmd.Type,
		Quantity: cmd.Quantity,
		Price:    cmd.Price,
	})
	if err != nil {
		if !w.cfg.Sandbox {
			w.log.Warnw("venue_call_failed_live", "order_id", cmd.OrderID, "err", err)
			return core.EventRejected, decimal.Zero
		}
		w.log.Warnw("venue_call_failed_simulating_fill", "order_id", cmd.OrderID, "err", err)
		if cmd.Price.IsPositive() {
			return core.EventFilled, cmd.Price
		}
		return core.EventFilled, w.cfg.DefaultFillPrice
	}

	return core.EventFilled, fillPrice(resp, cmd.Price)
}

// fillPrice prefers the venue's returned price, then the first reported
// fill, then the caller's submitted price.
func fillPrice(resp *VenueResponse, submitted decimal.Decimal) decimal.Decimal {
	if resp.Price.IsPositive() {
		return resp.Price
	}
	for _, f := range resp.Fills {
		if f.Price.IsPositive() {
			return f.Price
		}
	}
	return submitted
}

func (w *Worker) handleCancel(ctx context.Context, payload []byte) {
	cmd, err := core.DecodeCancelCommand(payload)
	if err != nil {
		w.log.Warnw("cancel_command_invalid", "err", err)
		return
	}
	w.log.Infow("cancel_command_received", "order_id", cmd.OrderID)

	order, err := w.store.GetOrder(ctx, cmd.UserID, cmd.OrderID)
	if err != nil {
		w.log.Errorw("cancel_order_load_failed", "order_id", cmd.OrderID, "err", err)
		return
	}

	// Best-effort venue cancel; local cancellation proceeds regardless.
	if creds, err := w.store.GetCredentials(ctx, cmd.UserID); err == nil {
		if err := w.venue.CancelOrder(ctx, creds, order.Symbol, cmd.OrderID); err != nil {
			w.log.Warnw("venue_cancel_failed", "order_id", cmd.OrderID, "err", err)
		}
	}

	changed, err := w.store.TransitionOrder(ctx, cmd.UserID, cmd.OrderID, core.StatusPending, core.StatusCanceled)
	if err != nil {
		w.log.Errorw("order_transition_failed", "order_id", cmd.OrderID, "err", err)
		return
	}
	if !changed {
		// Already canceled or processed: idempotent no-op, no second event.
		w.log.Infow("cancel_noop", "order_id", cmd.OrderID, "status", order.Status)
		return
	}

	event := &core.OrderEvent{
		ID:        uuid.NewString(),
		OrderID:   cmd.OrderID,
		UserID:    cmd.UserID,
		Status:    core.EventCanceled,
		Price:     decimal.Zero,
		Quantity:  decimal.Zero,
		Timestamp: w.now(),
	}
	if err := w.store.AppendEvent(ctx, event); err != nil {
		w.log.Errorw("event_append_failed", "order_id", cmd.OrderID, "err", err)
		return
	}

	w.publishStatus(ctx, event, order.Symbol, order.Side)
	w.log.Infow("order_canceled", "order_id", cmd.OrderID)
}

func (w *Worker) publishStatus(ctx context.Context, ev *core.OrderEvent, symbol string, side core.Side) {
	statusEv := core.StatusEvent{OrderEvent: *ev, Symbol: symbol, Side: side}
	payload, err := json.Marshal(&statusEv)
	if err != nil {
		w.log.Errorw("status_event_encode_failed", "order_id", ev.OrderID, "err", err)
		return
	}
	if err := w.bus.Publish(ctx, core.TopicStatus, payload); err != nil {
		w.log.Errorw("status_event_publish_failed", "order_id", ev.OrderID, "err", err)
	}
}
