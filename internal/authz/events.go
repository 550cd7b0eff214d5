package authz

import "github.com/google/uuid"

// Bus is a minimal in-process event bus carrying PermissionsChanged
// notifications (§9 design notes: "any mutation that can affect
// authorization publishes PermissionsChanged(user_id) locally"). It
// replaces scattered `invalidate_user_permissions_cache` call sites
// with a single publish point and a single subscriber: the Engine.
type Bus struct {
	ch chan uuid.UUID
}

// NewBus creates a bus with a modest buffer so a burst of invalidations
// (e.g. deleting a role held by many users) never blocks the mutating
// transaction's caller.
func NewBus() *Bus {
	return &Bus{ch: make(chan uuid.UUID, 256)}
}

// Publish announces that a user's effective permissions may have
// changed. Never blocks: when the buffer is full the new event is
// dropped, and the Engine's short cache TTL catches up on a later read.
func (b *Bus) Publish(userID uuid.UUID) {
	select {
	case b.ch <- userID:
	default:
	}
}

// PublishAll announces a change for every id in ids.
func (b *Bus) PublishAll(ids []uuid.UUID) {
	for _, id := range ids {
		b.Publish(id)
	}
}

func (b *Bus) events() <-chan uuid.UUID {
	return b.ch
}
