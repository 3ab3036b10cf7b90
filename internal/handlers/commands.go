package handlers

import (
	"context"
	"fmt"

	"github.com/tpncalc/virtualblot/internal/dispatcher"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// Command names registered by Register.
const (
	CmdIngest    = "ingest"
	CmdNormalize = "normalize"
	CmdRender    = "render"
	CmdProfile   = "profile"
	CmdStore     = "store"
)

// Register wires the service operations into d. A positive storeBuffer makes
// "store" asynchronous with a queue of that size; the result of a queued store
// is "queued" rather than the stored path.
func (s *Service) Register(d *dispatcher.Dispatcher, storeBuffer int) {
	d.Register(CmdIngest, func(ctx context.Context, e dispatcher.Event) (any, error) {
		req, err := payload[IngestRequest](e)
		if err != nil {
			return nil, err
		}
		return s.Ingest(ctx, req)
	}, dispatcher.Logged())

	d.Register(CmdNormalize, func(ctx context.Context, e dispatcher.Event) (any, error) {
		req, err := payload[NormalizeRequest](e)
		if err != nil {
			return nil, err
		}
		return s.Normalize(ctx, req)
	}, dispatcher.Logged())

	d.Register(CmdRender, func(ctx context.Context, e dispatcher.Event) (any, error) {
		req, err := payload[RenderRequest](e)
		if err != nil {
			return nil, err
		}
		return s.Render(ctx, req)
	}, dispatcher.Logged())

	d.Register(CmdProfile, func(ctx context.Context, e dispatcher.Event) (any, error) {
		req, err := payload[ProfileRequest](e)
		if err != nil {
			return nil, err
		}
		return s.Profile(ctx, req)
	}, dispatcher.Logged())

	storeOpts := []dispatcher.Option{dispatcher.Logged()}
	if storeBuffer > 0 {
		storeOpts = append(storeOpts, dispatcher.Buffered(storeBuffer))
	}
	d.Register(CmdStore, func(ctx context.Context, e dispatcher.Event) (any, error) {
		b, err := payload[*core.Bundle](e)
		if err != nil {
			return nil, err
		}
		return s.Store(ctx, b)
	}, storeOpts...)
}

func payload[T any](e dispatcher.Event) (T, error) {
	v, ok := e.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}
	return v, nil
}
