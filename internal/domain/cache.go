package domain

import "context"

// ViewCache holds the latest derived views per market so readers outside the
// engine process can serve them.
type ViewCache interface {
	SetSnapshot(ctx context.Context, market string, snap BandSnapshot) error
	GetSnapshot(ctx context.Context, market string, mode Mode) (BandSnapshot, error)
	SetTop(ctx context.Context, market string, top TopLevels) error
	GetTop(ctx context.Context, market string) (TopLevels, error)
	Markets(ctx context.Context) ([]string, error)
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Message is one delivery from a bus subscription.
type Message struct {
	Channel string
	Payload []byte
}
