package repository

import (
	"context"

	"chatapp/internal/domain/entity"
	"chatapp/internal/reconcile"
)

// MessageChangeHandler receives one change-feed event for a message document.
// On removal the message carries at least its DocumentID. Delivery is
// asynchronous on a background goroutine.
type MessageChangeHandler func(message *entity.Message, kind reconcile.ChangeKind)

// MessageRepository owns one user's message partitions, laid out as
// messages/{ownerId}/{partnerId}/{messageId}. Store writes a single copy;
// the fan-out to the partner's partition is driven by the send path in the
// usecase layer, one independent write per copy.
type MessageRepository interface {
	Store(ctx context.Context, ownerID, partnerID string, message *entity.Message) error
	List(ctx context.Context, ownerID, partnerID string, limit, offset int) ([]*entity.Message, int64, error)

	// Subscribe opens a live feed over the owner's partition for the given
	// partner, ordered by creation time ascending. The current backlog is
	// delivered first as a burst of added events, then changes as they land.
	Subscribe(ctx context.Context, ownerID, partnerID string, fn MessageChangeHandler) (Subscription, error)

	MarkRead(ctx context.Context, ownerID, partnerID, messageID string) error
	MarkAllRead(ctx context.Context, ownerID, partnerID string) error
}
