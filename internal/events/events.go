package events

import "context"

// Stream all wager events are published to.
const StreamWager = "events:wager"

// Event types
const (
	EventWagerCreated       = "wager_created"
	EventWagerStatusChanged = "wager_status_changed"
	EventWagerJoined        = "wager_joined"
	EventDepositRecorded    = "deposit_recorded"
	EventWagerSettled       = "wager_settled"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
