package domain

import (
	"fmt"
	"strings"
)

// Venue identifies the market a stream belongs to.
type Venue string

const (
	VenueSpot    Venue = "spot"
	VenueFutures Venue = "futures"
)

// Channel identifies the kind of records held by a log.
type Channel string

const (
	ChannelBands Channel = "bands"
	ChannelDepth Channel = "depth"
)

// StreamKey addresses one ordered append-only log. Its Redis key has the
// form "<venue>:<symbol>:<channel>".
type StreamKey struct {
	Venue   Venue
	Symbol  string
	Channel Channel
}

// Key returns the log-store key for the stream.
func (k StreamKey) Key() string {
	return string(k.Venue) + ":" + k.Symbol + ":" + string(k.Channel)
}

func (k StreamKey) String() string {
	return k.Key()
}

// Market returns the "<venue>:<symbol>" prefix shared by the bands and depth
// logs of one market.
func (k StreamKey) Market() string {
	return string(k.Venue) + ":" + k.Symbol
}

// ParseStreamKey parses a "<venue>:<symbol>:<channel>" key.
func ParseStreamKey(s string) (StreamKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return StreamKey{}, fmt.Errorf("parse stream key %q: want venue:symbol:channel", s)
	}
	ch := Channel(parts[2])
	if ch != ChannelBands && ch != ChannelDepth {
		return StreamKey{}, fmt.Errorf("parse stream key %q: %w", s, ErrUnknownChannel)
	}
	return StreamKey{Venue: Venue(parts[0]), Symbol: parts[1], Channel: ch}, nil
}
