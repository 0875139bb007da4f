// Package node wires the store, the channel binding and the three pipeline
// services into one process. The services still communicate only through
// the bus and the store contract, so they can be split across binaries by
// switching the bus to the gossip binding.
package node

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rohit02k5/QuantyX-Trading-Platform/params"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/bus"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/core"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/execution"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/fanout"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/gateway"
	"github.com/rohit02k5/QuantyX-Trading-Platform/pkg/storage"
)

type Node struct {
	cfg   params.Config
	log   *zap.SugaredLogger
	store core.OrderStore
	bus   bus.Bus

	Gateway *gateway.Server
	Worker  *execution.Worker
	Fanout  *fanout.Service
}

func New(ctx context.Context, cfg params.Config, log *zap.SugaredLogger) (*Node, error) {
	store, err := storage.NewPebbleStore(filepath.Join(cfg.DataDir, "orders.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var b bus.Bus
	switch cfg.Bus.Mode {
	case "gossip":
		b, err = bus.NewGossipBus(ctx, bus.GossipConfig{
			ListenAddr: cfg.Bus.ListenAddr,
			Bootstrap:  cfg.Bus.Bootstrap,
			Logger:     log,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init gossip bus: %w", err)
		}
	default:
		b = bus.NewInProcBus()
	}

	gw := gateway.New(store, b, log)
	venue := execution.NewRESTVenue(cfg.Venue.BaseURL, cfg.Venue.Timeout)
	worker := execution.NewWorker(store, b, venue, execution.Config{
		Workers:          cfg.Execution.Workers,
		Sandbox:          cfg.Execution.Sandbox,
		DefaultFillPrice: cfg.Execution.DefaultFillPrice,
	}, log)

	return &Node{
		cfg:     cfg,
		log:     log,
		store:   store,
		bus:     b,
		Gateway: gateway.NewServer(gw, cfg.JWTSecret, cfg.Gateway.RatePerMin, log),
		Worker:  worker,
		Fanout:  fanout.NewService(cfg.JWTSecret, log),
	}, nil
}

// Start launches the worker and both servers. It returns once the context
// is canceled or a server fails.
func (n *Node) Start(ctx context.Context) error {
	if err := n.Worker.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- n.Fanout.Start(ctx, n.cfg.Fanout.Addr, n.bus)
	}()
	go func() {
		errCh <- n.Gateway.Start(n.cfg.Gateway.Addr)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (n *Node) Close() {
	n.bus.Close()
	n.store.Close()
}
