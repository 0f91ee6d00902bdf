package services

import (
	"context"

	"github.com/BlindPI/arccm-backend/internal/realtime"
	"github.com/BlindPI/arccm-backend/internal/realtime/bus"
)

type Emitter interface {
	Emit(ctx context.Context, msg realtime.Message)
}

// BusEmitter publishes through redis; per-key binder subscriptions feed it
// back to every hub, this process included.
type BusEmitter struct{ Bus bus.Bus }

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.Message) {
	_ = e.Bus.Publish(ctx, msg)
}

// BinderEmitter additionally echoes the message to in-process binder
// subscribers without waiting for the bus round-trip.
type BinderEmitter struct {
	Next   Emitter
	Binder *realtime.ChannelBinder
}

func (e *BinderEmitter) Emit(ctx context.Context, msg realtime.Message) {
	if e.Binder != nil {
		e.Binder.BroadcastLocal(msg)
	}
	if e.Next != nil {
		e.Next.Emit(ctx, msg)
	}
}
