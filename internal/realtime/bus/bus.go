package bus

import (
	"context"

	"github.com/BlindPI/arccm-backend/internal/realtime"
)

// Bus carries realtime messages between processes. OpenChannel binds a single
// channel key; the ChannelBinder refcounts these so each key holds at most
// one backend subscription per process.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	OpenChannel(ctx context.Context, key string, onMsg func(m realtime.Message)) (close func(), err error)
	Close() error
}
